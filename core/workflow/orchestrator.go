package workflow

import (
	"slices"
	"sync"
)

// Config collects the collaborators of a workflow instance.
type Config struct {
	Address    Address
	Ledger     Ledger
	Clock      Clock
	Authorizer Authorizer
	Sink       EventSink
}

type moduleEntry struct {
	module any
	caps   map[Capability]struct{}
}

// Workflow composes the modules of one deployment. It tells modules who the
// payment processor, funding manager and authorizer are, keeps a registry of
// modules keyed by declared capability, and journals their events.
//
// Modules are not safe for concurrent use on their own: callers that share a
// workflow across goroutines go through Execute, which serialises whole
// transactions.
type Workflow struct {
	address    Address
	ledger     Ledger
	clock      Clock
	authorizer Authorizer

	funding   *FundingManager
	processor *StreamingPaymentProcessor

	modules map[Address]*moduleEntry
	order   []Address

	txMu    sync.Mutex
	journal *journal
	txNow   int64
}

// NewWorkflow validates cfg and builds an empty workflow.
func NewWorkflow(cfg Config) (*Workflow, error) {
	if cfg.Address.IsZero() {
		return nil, fail("new workflow", ErrInvalidAddress)
	}
	if cfg.Ledger == nil || cfg.Authorizer == nil {
		return nil, failf("new workflow", ErrModuleNotFound, "ledger and authorizer are required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Workflow{
		address:    cfg.Address,
		ledger:     cfg.Ledger,
		clock:      clock,
		authorizer: cfg.Authorizer,
		modules:    make(map[Address]*moduleEntry),
		journal:    &journal{sink: cfg.Sink},
	}, nil
}

// Address returns the workflow's own address.
func (w *Workflow) Address() Address { return w.address }

// Token returns the ledger of the workflow's payment token.
func (w *Workflow) Token() Ledger { return w.ledger }

// Clock returns the workflow clock.
func (w *Workflow) Clock() Clock { return w.clock }

// Authorizer returns the authorization collaborator.
func (w *Workflow) Authorizer() Authorizer { return w.authorizer }

// FundingManager returns the funding manager, or nil.
func (w *Workflow) FundingManager() *FundingManager { return w.funding }

// PaymentProcessor returns the payment processor, or nil.
func (w *Workflow) PaymentProcessor() *StreamingPaymentProcessor { return w.processor }

// SetSink replaces the event sink.
func (w *Workflow) SetSink(sink EventSink) { w.journal.sink = sink }

// RegisterModule adds a module under addr with its declared capabilities.
func (w *Workflow) RegisterModule(addr Address, module any, caps ...Capability) error {
	if addr.IsZero() || addr == w.address {
		return fail("register module", ErrInvalidAddress)
	}
	if _, ok := w.modules[addr]; ok {
		return failf("register module", ErrModuleAlreadyRegistered, "%s", addr)
	}
	entry := &moduleEntry{module: module, caps: make(map[Capability]struct{}, len(caps))}
	for _, c := range caps {
		entry.caps[c] = struct{}{}
	}
	if _, ok := entry.caps[CapPaymentClient]; ok {
		if _, isClient := module.(PaymentClient); !isClient {
			return failf("register module", ErrInvalidModuleCap, "%s does not implement a payment client", addr)
		}
	}
	w.modules[addr] = entry
	w.order = append(w.order, addr)

	switch m := module.(type) {
	case *StreamingPaymentProcessor:
		w.processor = m
	case *FundingManager:
		w.funding = m
	}
	return nil
}

// IsModule reports whether addr is a registered module.
func (w *Workflow) IsModule(addr Address) bool {
	_, ok := w.modules[addr]
	return ok
}

// HasCapability reports whether the module at addr declared c.
func (w *Workflow) HasCapability(addr Address, c Capability) bool {
	entry, ok := w.modules[addr]
	if !ok {
		return false
	}
	_, ok = entry.caps[c]
	return ok
}

// ModulesWithCapability lists module addresses declaring c, in registration order.
func (w *Workflow) ModulesWithCapability(c Capability) []Address {
	var out []Address
	for _, addr := range w.order {
		if w.HasCapability(addr, c) {
			out = append(out, addr)
		}
	}
	return out
}

// Modules lists every registered module address in registration order.
func (w *Workflow) Modules() []Address {
	return slices.Clone(w.order)
}

// PaymentClient resolves a registered payment client by address.
func (w *Workflow) PaymentClient(addr Address) (PaymentClient, error) {
	if !w.HasCapability(addr, CapPaymentClient) {
		return nil, failf("payment client", ErrModuleNotFound, "%s", addr)
	}
	return w.modules[addr].module.(PaymentClient), nil
}

// Execute runs fn as one serialised transaction. Events emitted by fn reach
// the sink only if fn returns nil. Execute must not be nested.
func (w *Workflow) Execute(fn func() error) error {
	w.txMu.Lock()
	defer w.txMu.Unlock()
	s := w.begin()
	err := fn()
	s.end(err)
	return err
}

// View runs fn under the transaction lock without journalling.
func (w *Workflow) View(fn func()) {
	w.txMu.Lock()
	defer w.txMu.Unlock()
	fn()
}

// ExecuteTxFromModule lets a registered module act as the workflow, e.g. to
// pull tokens from the funding manager.
func (w *Workflow) ExecuteTxFromModule(caller Address, fn func(actor Address) error) error {
	if !w.IsModule(caller) {
		return fail("execute tx from module", ErrNotModule)
	}
	return fn(w.address)
}

// begin opens a journal scope. The outermost scope pins the transaction
// timestamp that Now reports until it ends.
func (w *Workflow) begin() scope {
	if w.journal.depth == 0 {
		w.txNow = w.clock.Now()
	}
	return w.journal.begin()
}

// Now returns the timestamp of the open transaction, or the clock's current
// time outside of one. Every module step of a transaction sees the same time.
func (w *Workflow) Now() int64 {
	if w.journal.depth > 0 {
		return w.txNow
	}
	return w.clock.Now()
}

func (w *Workflow) emit(evt Event) {
	evt.Timestamp = w.Now()
	w.journal.emit(evt)
}

// isReservedAddress reports whether addr may never receive payments from module.
func (w *Workflow) isReservedAddress(module, addr Address) bool {
	return addr.IsZero() || addr == module || addr == w.address
}
