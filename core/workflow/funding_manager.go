package workflow

// FundingManager holds the deposited payment tokens of a workflow. Depositors
// can withdraw what they put in; the workflow itself can move tokens to its
// modules when they are short.
type FundingManager struct {
	address  Address
	workflow *Workflow
	deposits map[Address]uint64
	total    uint64
}

// NewFundingManager creates the funding manager and registers it with wf.
func NewFundingManager(address Address, wf *Workflow) (*FundingManager, error) {
	fm := &FundingManager{
		address:  address,
		workflow: wf,
		deposits: make(map[Address]uint64),
	}
	if err := wf.RegisterModule(address, fm, CapFundingManager); err != nil {
		return nil, err
	}
	return fm, nil
}

// Address returns the funding manager's address.
func (fm *FundingManager) Address() Address { return fm.address }

// DepositOf returns what who has deposited and not withdrawn.
func (fm *FundingManager) DepositOf(who Address) uint64 { return fm.deposits[who] }

// TotalDeposits returns the sum of all open deposits.
func (fm *FundingManager) TotalDeposits() uint64 { return fm.total }

// Balance returns the funding manager's token balance.
func (fm *FundingManager) Balance() uint64 {
	return fm.workflow.Token().BalanceOf(fm.address)
}

// Deposit pulls amount from caller. The caller must have approved the
// funding manager beforehand.
func (fm *FundingManager) Deposit(caller Address, amount uint64) error {
	const op = "deposit"
	if caller.IsZero() {
		return fail(op, ErrInvalidAddress)
	}
	if amount == 0 {
		return fail(op, ErrInvalidAmount)
	}
	if fm.deposits[caller]+amount < amount || fm.total+amount < amount {
		return fail(op, ErrAmountOverflow)
	}
	token := fm.workflow.Token()
	if token.BalanceOf(caller) < amount {
		return failf(op, ErrInsufficientBalance, "%s holds %d", caller, token.BalanceOf(caller))
	}
	r, ok := settleTransfer(token, caller, fm.address, amount, func() TransferResult {
		return token.TransferFrom(fm.address, caller, fm.address, amount)
	})
	if !ok {
		return failf(op, ErrTransferFailed, "%s", r)
	}
	fm.deposits[caller] += amount
	fm.total += amount
	fm.workflow.emit(Event{
		Type:    EventFundingDeposited,
		Module:  fm.address,
		Actor:   caller,
		Subject: caller,
		Amount:  amount,
	})
	return nil
}

// Withdraw returns up to the caller's open deposit. Funds already moved to
// modules are not available.
func (fm *FundingManager) Withdraw(caller Address, amount uint64) error {
	const op = "withdraw"
	if amount == 0 {
		return fail(op, ErrInvalidAmount)
	}
	if fm.deposits[caller] < amount {
		return failf(op, ErrInsufficientBalance, "deposit %d, requested %d", fm.deposits[caller], amount)
	}
	if balance := fm.Balance(); balance < amount {
		return failf(op, ErrInsufficientBalance, "funding balance %d, requested %d", balance, amount)
	}
	fm.deposits[caller] -= amount
	fm.total -= amount
	token := fm.workflow.Token()
	r, ok := settleTransfer(token, fm.address, caller, amount, func() TransferResult {
		return token.Transfer(fm.address, caller, amount)
	})
	if !ok {
		fm.deposits[caller] += amount
		fm.total += amount
		return failf(op, ErrTransferFailed, "%s", r)
	}
	fm.workflow.emit(Event{
		Type:    EventFundingWithdrawn,
		Module:  fm.address,
		Actor:   caller,
		Subject: caller,
		Amount:  amount,
	})
	return nil
}

// TransferOrchestratorToken sends amount to a module. Only the workflow may call it.
func (fm *FundingManager) TransferOrchestratorToken(caller, to Address, amount uint64) error {
	const op = "transfer orchestrator token"
	if caller != fm.workflow.Address() {
		return fail(op, ErrNotOrchestrator)
	}
	if to.IsZero() || to == fm.address {
		return fail(op, ErrInvalidRecipient)
	}
	if amount == 0 {
		return nil
	}
	if balance := fm.Balance(); balance < amount {
		return failf(op, ErrInsufficientBalance, "funding balance %d, requested %d", balance, amount)
	}
	token := fm.workflow.Token()
	r, ok := settleTransfer(token, fm.address, to, amount, func() TransferResult {
		return token.Transfer(fm.address, to, amount)
	})
	if !ok {
		return failf(op, ErrTransferFailed, "%s", r)
	}
	fm.workflow.emit(Event{
		Type:    EventFundingTransferred,
		Module:  fm.address,
		Actor:   caller,
		Subject: to,
		Amount:  amount,
	})
	return nil
}
