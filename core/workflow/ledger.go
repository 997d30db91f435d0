package workflow

import (
	"sync"
)

// TransferResult is the outcome of a ledger transfer. Anything other than
// TransferSucceeded is ambiguous or a failure and must not be assumed to have
// moved funds.
type TransferResult int

const (
	TransferSucceeded TransferResult = iota
	TransferReturnedFalse
	TransferReverted
	// TransferNoData means the call completed but returned nothing. A
	// conformant ledger has this counted as success; on other ledgers the
	// balances decide.
	TransferNoData
)

func (r TransferResult) String() string {
	switch r {
	case TransferSucceeded:
		return "succeeded"
	case TransferReturnedFalse:
		return "returned_false"
	case TransferReverted:
		return "reverted"
	case TransferNoData:
		return "no_data"
	default:
		return "unknown"
	}
}

// Ledger is the external token ledger. Transfers are fallible.
type Ledger interface {
	Symbol() string
	// Conformant reports whether a TransferNoData result can be trusted.
	Conformant() bool
	BalanceOf(owner Address) uint64
	Allowance(owner, spender Address) uint64
	Transfer(from, to Address, amount uint64) TransferResult
	TransferFrom(spender, from, to Address, amount uint64) TransferResult
	Approve(owner, spender Address, amount uint64) TransferResult
}

// Settled reports whether result alone shows a completed transfer on l.
func Settled(l Ledger, result TransferResult) bool {
	switch result {
	case TransferSucceeded:
		return true
	case TransferNoData:
		return l.Conformant()
	default:
		return false
	}
}

// settleTransfer runs transfer and decides whether amount moved from from to
// to. A no-data result on a non-conformant ledger is judged by the balance
// change it left behind: the transfer counts only if both sides moved by
// exactly amount.
func settleTransfer(l Ledger, from, to Address, amount uint64, transfer func() TransferResult) (TransferResult, bool) {
	fromBefore, toBefore := l.BalanceOf(from), l.BalanceOf(to)
	result := transfer()
	if Settled(l, result) {
		return result, true
	}
	if result != TransferNoData {
		return result, false
	}
	fromAfter, toAfter := l.BalanceOf(from), l.BalanceOf(to)
	moved := fromAfter <= fromBefore && fromBefore-fromAfter == amount &&
		toAfter >= toBefore && toAfter-toBefore == amount
	return result, moved
}

// TransferRecord describes a transfer observed by a MemoryLedger hook.
type TransferRecord struct {
	Spender Address
	From    Address
	To      Address
	Amount  uint64
	Result  TransferResult
}

type allowanceKey struct {
	owner, spender Address
}

// MemoryLedger is an in-memory token ledger with failure injection. Hooks run
// after the ledger lock is released so they may call back into the ledger or
// into the modules that initiated the transfer.
type MemoryLedger struct {
	mu         sync.Mutex
	symbol     string
	conformant bool
	balances   map[Address]uint64
	allowances map[allowanceKey]uint64
	failures   map[Address]TransferResult
	dropped    map[Address]struct{}
	hook       func(TransferRecord)
}

// NewMemoryLedger creates an empty conformant ledger.
func NewMemoryLedger(symbol string) *MemoryLedger {
	return &MemoryLedger{
		symbol:     symbol,
		conformant: true,
		balances:   make(map[Address]uint64),
		allowances: make(map[allowanceKey]uint64),
		failures:   make(map[Address]TransferResult),
		dropped:    make(map[Address]struct{}),
	}
}

// Symbol returns the token symbol.
func (l *MemoryLedger) Symbol() string { return l.symbol }

// Conformant reports whether no-data transfer results are trusted.
func (l *MemoryLedger) Conformant() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conformant
}

// SetConformant toggles trust in no-data transfer results.
func (l *MemoryLedger) SetConformant(conformant bool) {
	l.mu.Lock()
	l.conformant = conformant
	l.mu.Unlock()
}

// Mint credits amount to an account.
func (l *MemoryLedger) Mint(to Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := l.balances[to] + amount
	if next < amount {
		return fail("mint", ErrAmountOverflow)
	}
	l.balances[to] = next
	return nil
}

// FailTransfersTo makes every transfer towards recipient end with result
// without moving funds. TransferNoData moves funds and only reports no data.
func (l *MemoryLedger) FailTransfersTo(recipient Address, result TransferResult) {
	l.mu.Lock()
	l.failures[recipient] = result
	l.mu.Unlock()
}

// DropTransfersTo makes every transfer towards recipient report
// TransferNoData without moving funds.
func (l *MemoryLedger) DropTransfersTo(recipient Address) {
	l.mu.Lock()
	l.dropped[recipient] = struct{}{}
	l.mu.Unlock()
}

// ClearFailures removes every injected failure.
func (l *MemoryLedger) ClearFailures() {
	l.mu.Lock()
	l.failures = make(map[Address]TransferResult)
	l.dropped = make(map[Address]struct{})
	l.mu.Unlock()
}

// SetTransferHook installs fn to observe every transfer attempt.
func (l *MemoryLedger) SetTransferHook(fn func(TransferRecord)) {
	l.mu.Lock()
	l.hook = fn
	l.mu.Unlock()
}

// BalanceOf returns the balance of owner.
func (l *MemoryLedger) BalanceOf(owner Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[owner]
}

// Allowance returns how much spender may pull from owner.
func (l *MemoryLedger) Allowance(owner, spender Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[allowanceKey{owner, spender}]
}

// Approve sets the allowance of spender over owner's balance.
func (l *MemoryLedger) Approve(owner, spender Address, amount uint64) TransferResult {
	if owner.IsZero() || spender.IsZero() {
		return TransferReverted
	}
	l.mu.Lock()
	l.allowances[allowanceKey{owner, spender}] = amount
	l.mu.Unlock()
	return TransferSucceeded
}

// Transfer moves amount from one account to another.
func (l *MemoryLedger) Transfer(from, to Address, amount uint64) TransferResult {
	return l.move(ZeroAddress, from, to, amount)
}

// TransferFrom moves amount from one account to another using spender's allowance.
func (l *MemoryLedger) TransferFrom(spender, from, to Address, amount uint64) TransferResult {
	if spender.IsZero() {
		return TransferReverted
	}
	return l.move(spender, from, to, amount)
}

func (l *MemoryLedger) move(spender, from, to Address, amount uint64) TransferResult {
	l.mu.Lock()
	result := l.applyLocked(spender, from, to, amount)
	hook := l.hook
	l.mu.Unlock()

	if hook != nil {
		hook(TransferRecord{Spender: spender, From: from, To: to, Amount: amount, Result: result})
	}
	return result
}

func (l *MemoryLedger) applyLocked(spender, from, to Address, amount uint64) TransferResult {
	if from.IsZero() || to.IsZero() {
		return TransferReverted
	}
	if _, ok := l.dropped[to]; ok {
		return TransferNoData
	}
	if injected, ok := l.failures[to]; ok && injected != TransferNoData {
		return injected
	}
	if l.balances[from] < amount {
		return TransferReverted
	}
	if l.balances[to]+amount < l.balances[to] {
		return TransferReverted
	}
	if !spender.IsZero() {
		key := allowanceKey{from, spender}
		if l.allowances[key] < amount {
			return TransferReverted
		}
		l.allowances[key] -= amount
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	if _, ok := l.failures[to]; ok {
		return TransferNoData
	}
	return TransferSucceeded
}
