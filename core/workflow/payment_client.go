package workflow

import (
	"fmt"
	"slices"
)

// PaymentClient is a module that accumulates payment orders for a processor
// to collect.
type PaymentClient interface {
	Address() Address
	PaymentOrders() []PaymentOrder
	OutstandingTokenAmount() uint64
	CollectPaymentOrders(caller Address) ([]PaymentOrder, uint64, error)
	AmountPaid(caller Address, amount uint64) error
}

// PaymentOrderQueue accumulates the payment orders of one client. It hands
// them to the workflow's payment processor with at-most-once collection and
// tracks the outstanding liability until the processor reports it paid.
type PaymentOrderQueue struct {
	address     Address
	workflow    *Workflow
	orders      []PaymentOrder
	outstanding uint64
}

// NewPaymentOrderQueue creates a queue owned by the module at address.
func NewPaymentOrderQueue(address Address, wf *Workflow) *PaymentOrderQueue {
	return &PaymentOrderQueue{address: address, workflow: wf}
}

// Address returns the owning client's address.
func (q *PaymentOrderQueue) Address() Address { return q.address }

// PaymentOrders returns a copy of the pending orders.
func (q *PaymentOrderQueue) PaymentOrders() []PaymentOrder {
	return slices.Clone(q.orders)
}

// OutstandingTokenAmount is the liability not yet reported as paid.
func (q *PaymentOrderQueue) OutstandingTokenAmount() uint64 { return q.outstanding }

// AddPaymentOrder appends a single order. The caller must be the client
// itself or a workflow owner.
func (q *PaymentOrderQueue) AddPaymentOrder(caller Address, order PaymentOrder) error {
	return q.AddPaymentOrders(caller, []PaymentOrder{order})
}

// AddPaymentOrders appends orders as a batch: either every order is added or
// none is.
func (q *PaymentOrderQueue) AddPaymentOrders(caller Address, orders []PaymentOrder) error {
	const op = "add payment orders"
	if caller != q.address && !q.workflow.Authorizer().IsAuthorized(caller) {
		return fail(op, ErrNotAuthorized)
	}
	return q.addPaymentOrders(op, orders)
}

func (q *PaymentOrderQueue) addPaymentOrders(op string, orders []PaymentOrder) error {
	total, err := q.validatePaymentOrders(op, orders)
	if err != nil {
		return err
	}
	q.orders = append(q.orders, orders...)
	q.outstanding += total
	for _, order := range orders {
		q.workflow.emit(Event{
			Type:    EventPaymentOrderAdded,
			Module:  q.address,
			Subject: order.Recipient,
			Amount:  order.Amount,
			Data: map[string]any{
				"created_at": order.CreatedAt,
				"due_to":     order.DueTo,
			},
		})
	}
	return nil
}

// validatePaymentOrders checks every order and returns their total. The total
// plus the current outstanding amount must not overflow.
func (q *PaymentOrderQueue) validatePaymentOrders(op string, orders []PaymentOrder) (uint64, error) {
	total := q.outstanding
	for i, order := range orders {
		if q.workflow.isReservedAddress(q.address, order.Recipient) {
			return 0, failf(op, ErrInvalidRecipient, "order %d recipient %q", i, order.Recipient)
		}
		if order.Amount == 0 {
			return 0, failf(op, ErrInvalidAmount, "order %d", i)
		}
		if order.DueTo < order.CreatedAt {
			return 0, failf(op, ErrInvalidTimes, "order %d", i)
		}
		next := total + order.Amount
		if next < total {
			return 0, fail(op, ErrAmountOverflow)
		}
		total = next
	}
	return total - q.outstanding, nil
}

// CollectPaymentOrders hands every pending order to the processor and clears
// the list. The outstanding amount is unchanged until AmountPaid.
func (q *PaymentOrderQueue) CollectPaymentOrders(caller Address) ([]PaymentOrder, uint64, error) {
	if err := q.onlyProcessor("collect payment orders", caller); err != nil {
		return nil, 0, err
	}
	orders := q.orders
	q.orders = nil
	var total uint64
	for _, o := range orders {
		total += o.Amount
	}
	if len(orders) > 0 {
		q.workflow.emit(Event{
			Type:   EventPaymentOrdersCollected,
			Module: q.address,
			Actor:  caller,
			Amount: total,
			Data:   map[string]any{"count": len(orders)},
		})
	}
	return orders, total, nil
}

// AmountPaid lowers the outstanding amount by what the processor settled.
func (q *PaymentOrderQueue) AmountPaid(caller Address, amount uint64) error {
	const op = "amount paid"
	if err := q.onlyProcessor(op, caller); err != nil {
		return err
	}
	if amount > q.outstanding {
		return failf(op, ErrAmountExceedsOutstand, "paid %d, outstanding %d", amount, q.outstanding)
	}
	q.outstanding -= amount
	return nil
}

func (q *PaymentOrderQueue) onlyProcessor(op string, caller Address) error {
	p := q.workflow.PaymentProcessor()
	if p == nil {
		return fail(op, ErrProcessorNotSet)
	}
	if caller != p.Address() {
		return fail(op, ErrNotProcessor)
	}
	return nil
}

// rollback drops the last n orders and their amount, undoing a batch added
// inside a transaction that failed afterwards. Orders already collected by
// the processor are no longer the queue's to undo.
func (q *PaymentOrderQueue) rollback(n int, total uint64) {
	if n > len(q.orders) {
		return
	}
	q.orders = q.orders[:len(q.orders)-n]
	q.outstanding -= total
}

// ensureTokenBalance tops the client up from the funding manager when its
// balance is below amount and returns how much it pulled.
func (q *PaymentOrderQueue) ensureTokenBalance(op string, amount uint64) (uint64, error) {
	token := q.workflow.Token()
	balance := token.BalanceOf(q.address)
	if balance >= amount {
		return 0, nil
	}
	fm := q.workflow.FundingManager()
	if fm == nil {
		return 0, failf(op, ErrInsufficientBalance, "have %d, need %d", balance, amount)
	}
	shortfall := amount - balance
	err := q.workflow.ExecuteTxFromModule(q.address, func(actor Address) error {
		return fm.TransferOrchestratorToken(actor, q.address, shortfall)
	})
	if err != nil {
		return 0, &Error{Kind: KindResource, Op: op, Err: fmt.Errorf("%w: %w", ErrFundingPullFailed, err)}
	}
	return shortfall, nil
}

// returnPulled sends tokens pulled by ensureTokenBalance back to the funding
// manager when the transaction that needed them fails, so the ledger matches
// the discarded funding event.
func (q *PaymentOrderQueue) returnPulled(op string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	fm := q.workflow.FundingManager()
	token := q.workflow.Token()
	r, ok := settleTransfer(token, q.address, fm.Address(), amount, func() TransferResult {
		return token.Transfer(q.address, fm.Address(), amount)
	})
	if !ok {
		return failf(op, ErrTransferFailed, "return %d to funding manager: %s", amount, r)
	}
	return nil
}

// ensureTokenAllowance lets spender pull at least amount from the client.
func (q *PaymentOrderQueue) ensureTokenAllowance(op string, spender Address, amount uint64) error {
	token := q.workflow.Token()
	if token.Allowance(q.address, spender) >= amount {
		return nil
	}
	if !Settled(token, token.Approve(q.address, spender, amount)) {
		return failf(op, ErrTransferFailed, "approve %s", spender)
	}
	return nil
}
