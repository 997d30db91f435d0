package workflow

import (
	"slices"
)

// StreamingWallet is one linear vesting schedule of a contributor under a client.
type StreamingWallet struct {
	WalletID uint64 `json:"wallet_id"`
	Salary   uint64 `json:"salary"`
	Released uint64 `json:"released"`
	Start    int64  `json:"start"`
	Duration int64  `json:"duration"`
}

// DueTo is the timestamp at which the wallet is fully vested.
func (w StreamingWallet) DueTo() int64 { return w.Start + w.Duration }

type walletKey struct {
	client      Address
	contributor Address
	walletID    uint64
}

type payeeKey struct {
	client      Address
	contributor Address
}

// addressIndex is an unordered address set with O(1) add and remove. Removal
// swaps the last element into the hole and updates its recorded position.
type addressIndex struct {
	items []Address
	pos   map[Address]int
}

func newAddressIndex() *addressIndex {
	return &addressIndex{pos: make(map[Address]int)}
}

func (ix *addressIndex) add(a Address) {
	if _, ok := ix.pos[a]; ok {
		return
	}
	ix.pos[a] = len(ix.items)
	ix.items = append(ix.items, a)
}

func (ix *addressIndex) remove(a Address) bool {
	i, ok := ix.pos[a]
	if !ok {
		return false
	}
	last := len(ix.items) - 1
	moved := ix.items[last]
	ix.items[i] = moved
	ix.pos[moved] = i
	ix.items = ix.items[:last]
	delete(ix.pos, a)
	return true
}

func (ix *addressIndex) contains(a Address) bool {
	_, ok := ix.pos[a]
	return ok
}

func (ix *addressIndex) list() []Address { return slices.Clone(ix.items) }

// StreamingPaymentProcessor turns collected payment orders into vesting
// wallets and settles claims against them. Ledger state is always updated
// before the token transfer, so a transfer callback that re-enters the
// processor finds nothing left to release. A failed transfer moves the
// attempted amount into the unclaimable bucket of the (client, contributor)
// pair instead of losing it.
type StreamingPaymentProcessor struct {
	address     Address
	workflow    *Workflow
	wallets     map[walletKey]*StreamingWallet
	walletIDs   map[payeeKey][]uint64
	active      map[Address]*addressIndex
	unclaimable map[payeeKey]uint64
}

// NewStreamingPaymentProcessor creates the processor and registers it with wf.
func NewStreamingPaymentProcessor(address Address, wf *Workflow) (*StreamingPaymentProcessor, error) {
	p := &StreamingPaymentProcessor{
		address:     address,
		workflow:    wf,
		wallets:     make(map[walletKey]*StreamingWallet),
		walletIDs:   make(map[payeeKey][]uint64),
		active:      make(map[Address]*addressIndex),
		unclaimable: make(map[payeeKey]uint64),
	}
	if err := wf.RegisterModule(address, p, CapPaymentProcessor); err != nil {
		return nil, err
	}
	return p, nil
}

// Address returns the processor's address.
func (p *StreamingPaymentProcessor) Address() Address { return p.address }

// ProcessPayments collects the client's pending orders and opens a wallet per
// valid order. Invalid orders are discarded with an event and their amount is
// released from the client's outstanding liability; they never block the rest
// of the batch. The caller must be a workflow module acting for itself.
func (p *StreamingPaymentProcessor) ProcessPayments(caller Address, client PaymentClient) (err error) {
	const op = "process payments"
	if !p.workflow.IsModule(caller) {
		return fail(op, ErrNotModule)
	}
	if client == nil || caller != client.Address() {
		return fail(op, ErrNotClient)
	}

	pending := client.PaymentOrders()
	if len(pending) == 0 {
		return nil
	}
	var total uint64
	for _, o := range pending {
		next := total + o.Amount
		if next < total {
			return fail(op, ErrAmountOverflow)
		}
		total = next
	}
	if balance := p.workflow.Token().BalanceOf(client.Address()); balance < total {
		return failf(op, ErrInsufficientBalance, "client %s has %d, orders need %d", client.Address(), balance, total)
	}

	s := p.workflow.begin()
	defer func() { s.end(err) }()

	orders, _, err := client.CollectPaymentOrders(p.address)
	if err != nil {
		return err
	}
	now := p.workflow.Now()
	for _, order := range orders {
		if reason := p.invalidOrderReason(client.Address(), order, now); reason != "" {
			p.workflow.emit(Event{
				Type:    EventPaymentOrderDiscarded,
				Module:  p.address,
				Actor:   client.Address(),
				Subject: order.Recipient,
				Amount:  order.Amount,
				Data:    map[string]any{"reason": reason},
			})
			if order.Amount > 0 {
				if err := client.AmountPaid(p.address, order.Amount); err != nil {
					return err
				}
			}
			continue
		}
		p.addWallet(client.Address(), order)
	}
	return nil
}

func (p *StreamingPaymentProcessor) invalidOrderReason(client Address, o PaymentOrder, now int64) string {
	switch {
	case p.workflow.isReservedAddress(client, o.Recipient) || o.Recipient == p.address:
		return "invalid recipient"
	case o.Amount == 0:
		return "zero amount"
	case o.DueTo < o.CreatedAt:
		return "invalid duration"
	case o.CreatedAt < now:
		return "start in the past"
	default:
		return ""
	}
}

func (p *StreamingPaymentProcessor) addWallet(client Address, order PaymentOrder) {
	pk := payeeKey{client, order.Recipient}
	ids := p.walletIDs[pk]
	walletID := uint64(1)
	if len(ids) > 0 {
		walletID = ids[len(ids)-1] + 1
	}
	p.wallets[walletKey{client, order.Recipient, walletID}] = &StreamingWallet{
		WalletID: walletID,
		Salary:   order.Amount,
		Start:    order.CreatedAt,
		Duration: order.DueTo - order.CreatedAt,
	}
	p.walletIDs[pk] = append(ids, walletID)
	if p.active[client] == nil {
		p.active[client] = newAddressIndex()
	}
	p.active[client].add(order.Recipient)

	p.workflow.emit(Event{
		Type:     EventStreamingPaymentAdded,
		Module:   p.address,
		Actor:    client,
		Subject:  order.Recipient,
		Amount:   order.Amount,
		WalletID: walletID,
		Data: map[string]any{
			"start":  order.CreatedAt,
			"due_to": order.DueTo,
		},
	})
	p.workflow.emit(Event{
		Type:     EventPaymentOrderProcessed,
		Module:   p.address,
		Actor:    client,
		Subject:  order.Recipient,
		Amount:   order.Amount,
		WalletID: walletID,
	})
}

// ClaimAll releases everything vested so far across the caller's wallets at client.
func (p *StreamingPaymentProcessor) ClaimAll(caller, client Address) error {
	const op = "claim all"
	if !p.IsActiveContributor(client, caller) {
		return fail(op, ErrNoActivePayments)
	}
	pc, err := p.workflow.PaymentClient(client)
	if err != nil {
		return err
	}
	for _, id := range p.WalletIDs(client, caller) {
		if err := p.claimWallet(pc, caller, id, false); err != nil {
			return err
		}
	}
	return nil
}

// ClaimForSpecificWalletID releases what is vested in one wallet. With
// retryUnclaimable the pair's unclaimable balance is added to the transfer.
func (p *StreamingPaymentProcessor) ClaimForSpecificWalletID(caller, client Address, walletID uint64, retryUnclaimable bool) error {
	const op = "claim wallet"
	if _, ok := p.wallets[walletKey{client, caller, walletID}]; !ok {
		return failf(op, ErrWalletNotFound, "wallet %d", walletID)
	}
	pc, err := p.workflow.PaymentClient(client)
	if err != nil {
		return err
	}
	return p.claimWallet(pc, caller, walletID, retryUnclaimable)
}

// ClaimPreviouslyUnclaimable retries only the unclaimable balance of the caller at client.
func (p *StreamingPaymentProcessor) ClaimPreviouslyUnclaimable(caller, client Address) error {
	const op = "claim unclaimable"
	pk := payeeKey{client, caller}
	amount := p.unclaimable[pk]
	if amount == 0 {
		return fail(op, ErrNothingToClaim)
	}
	pc, err := p.workflow.PaymentClient(client)
	if err != nil {
		return err
	}
	delete(p.unclaimable, pk)
	return p.settle(pc, caller, 0, amount)
}

func (p *StreamingPaymentProcessor) claimWallet(client PaymentClient, contributor Address, walletID uint64, retryUnclaimable bool) error {
	key := walletKey{client.Address(), contributor, walletID}
	w, ok := p.wallets[key]
	if !ok {
		return nil
	}
	now := p.workflow.Now()
	releasable := VestingSchedule(w.Start, w.Duration, w.Salary, now) - w.Released
	w.Released += releasable

	amount := releasable
	if retryUnclaimable {
		pk := payeeKey{client.Address(), contributor}
		if owed := p.unclaimable[pk]; owed > 0 {
			if amount+owed < amount {
				w.Released -= releasable
				return fail("claim wallet", ErrAmountOverflow)
			}
			amount += owed
			delete(p.unclaimable, pk)
		}
	}

	if amount > 0 {
		if err := p.settle(client, contributor, walletID, amount); err != nil {
			return err
		}
	}
	p.afterClaimCleanup(client.Address(), contributor, walletID, now)
	return nil
}

// settle transfers amount from the client to contributor. Bookkeeping has
// already been advanced by the caller; a failed transfer parks the amount as
// unclaimable.
func (p *StreamingPaymentProcessor) settle(client PaymentClient, contributor Address, walletID uint64, amount uint64) error {
	token := p.workflow.Token()
	result, ok := settleTransfer(token, client.Address(), contributor, amount, func() TransferResult {
		return token.TransferFrom(p.address, client.Address(), contributor, amount)
	})
	if !ok {
		pk := payeeKey{client.Address(), contributor}
		p.unclaimable[pk] += amount
		p.workflow.emit(Event{
			Type:     EventUnclaimableAmountAdded,
			Module:   p.address,
			Actor:    client.Address(),
			Subject:  contributor,
			Amount:   amount,
			WalletID: walletID,
			Data:     map[string]any{"result": result.String()},
		})
		return nil
	}
	p.workflow.emit(Event{
		Type:     EventTokensReleased,
		Module:   p.address,
		Actor:    client.Address(),
		Subject:  contributor,
		Amount:   amount,
		WalletID: walletID,
		Data:     map[string]any{"token": token.Symbol(), "result": result.String()},
	})
	return client.AmountPaid(p.address, amount)
}

// afterClaimCleanup drops a wallet once it is fully released and due.
func (p *StreamingPaymentProcessor) afterClaimCleanup(client, contributor Address, walletID uint64, now int64) {
	w, ok := p.wallets[walletKey{client, contributor, walletID}]
	if !ok || w.Released < w.Salary || now < w.DueTo() {
		return
	}
	p.deleteWallet(client, contributor, walletID, 0)
}

// RemovePayment settles and removes every wallet of contributor at client.
// Only workflow owners may remove payments.
func (p *StreamingPaymentProcessor) RemovePayment(caller, client, contributor Address) error {
	const op = "remove payment"
	if !p.workflow.Authorizer().IsAuthorized(caller) {
		return fail(op, ErrNotAuthorized)
	}
	pc, err := p.workflow.PaymentClient(client)
	if err != nil {
		return err
	}
	if !p.IsActiveContributor(client, contributor) {
		return fail(op, ErrNoActivePayments)
	}
	return p.removeAllWallets(pc, contributor, false)
}

// RemovePaymentForSpecificWalletID settles and removes one wallet.
func (p *StreamingPaymentProcessor) RemovePaymentForSpecificWalletID(caller, client, contributor Address, walletID uint64, retryUnclaimable bool) error {
	const op = "remove wallet"
	if !p.workflow.Authorizer().IsAuthorized(caller) {
		return fail(op, ErrNotAuthorized)
	}
	if _, ok := p.wallets[walletKey{client, contributor, walletID}]; !ok {
		return failf(op, ErrWalletNotFound, "wallet %d", walletID)
	}
	pc, err := p.workflow.PaymentClient(client)
	if err != nil {
		return err
	}
	return p.removeWallet(pc, contributor, walletID, retryUnclaimable)
}

// CancelRunningPayments settles and removes every wallet of client. Only the
// client itself may cancel.
func (p *StreamingPaymentProcessor) CancelRunningPayments(caller, client Address) error {
	const op = "cancel running payments"
	if caller != client || !p.workflow.IsModule(caller) {
		return fail(op, ErrNotClient)
	}
	pc, err := p.workflow.PaymentClient(client)
	if err != nil {
		return err
	}
	for _, contributor := range p.ActivePaymentReceivers(client) {
		if err := p.removeAllWallets(pc, contributor, false); err != nil {
			return err
		}
	}
	return nil
}

func (p *StreamingPaymentProcessor) removeAllWallets(client PaymentClient, contributor Address, retryUnclaimable bool) error {
	for _, id := range p.WalletIDs(client.Address(), contributor) {
		if err := p.removeWallet(client, contributor, id, retryUnclaimable); err != nil {
			return err
		}
	}
	return nil
}

// removeWallet force-claims what is vested, then deletes the wallet and
// releases the unvested remainder from the client's liability.
func (p *StreamingPaymentProcessor) removeWallet(client PaymentClient, contributor Address, walletID uint64, retryUnclaimable bool) error {
	if err := p.claimWallet(client, contributor, walletID, retryUnclaimable); err != nil {
		return err
	}
	w, ok := p.wallets[walletKey{client.Address(), contributor, walletID}]
	if !ok {
		return nil
	}
	remainder := w.Salary - w.Released
	p.deleteWallet(client.Address(), contributor, walletID, remainder)
	if remainder > 0 {
		return client.AmountPaid(p.address, remainder)
	}
	return nil
}

func (p *StreamingPaymentProcessor) deleteWallet(client, contributor Address, walletID uint64, remainder uint64) {
	delete(p.wallets, walletKey{client, contributor, walletID})
	pk := payeeKey{client, contributor}
	ids := p.walletIDs[pk]
	if i := slices.Index(ids, walletID); i >= 0 {
		ids = slices.Delete(ids, i, i+1)
	}
	if len(ids) == 0 {
		delete(p.walletIDs, pk)
		if ix := p.active[client]; ix != nil {
			ix.remove(contributor)
			if len(ix.items) == 0 {
				delete(p.active, client)
			}
		}
	} else {
		p.walletIDs[pk] = ids
	}
	p.workflow.emit(Event{
		Type:     EventStreamingPaymentRemoved,
		Module:   p.address,
		Actor:    client,
		Subject:  contributor,
		Amount:   remainder,
		WalletID: walletID,
	})
}

// Wallet returns a copy of one wallet.
func (p *StreamingPaymentProcessor) Wallet(client, contributor Address, walletID uint64) (StreamingWallet, bool) {
	w, ok := p.wallets[walletKey{client, contributor, walletID}]
	if !ok {
		return StreamingWallet{}, false
	}
	return *w, true
}

// WalletIDs lists the live wallet ids of contributor at client, ascending.
func (p *StreamingPaymentProcessor) WalletIDs(client, contributor Address) []uint64 {
	return slices.Clone(p.walletIDs[payeeKey{client, contributor}])
}

// ViewAllPaymentOrders returns copies of every live wallet of contributor at client.
func (p *StreamingPaymentProcessor) ViewAllPaymentOrders(client, contributor Address) []StreamingWallet {
	ids := p.walletIDs[payeeKey{client, contributor}]
	out := make([]StreamingWallet, 0, len(ids))
	for _, id := range ids {
		out = append(out, *p.wallets[walletKey{client, contributor, id}])
	}
	return out
}

// ActivePaymentReceivers lists contributors with at least one live wallet at client.
func (p *StreamingPaymentProcessor) ActivePaymentReceivers(client Address) []Address {
	ix := p.active[client]
	if ix == nil {
		return nil
	}
	return ix.list()
}

// IsActiveContributor reports whether contributor has a live wallet at client.
func (p *StreamingPaymentProcessor) IsActiveContributor(client, contributor Address) bool {
	ix := p.active[client]
	return ix != nil && ix.contains(contributor)
}

// Unclaimable returns the amount parked after failed transfers.
func (p *StreamingPaymentProcessor) Unclaimable(client, contributor Address) uint64 {
	return p.unclaimable[payeeKey{client, contributor}]
}

// ReleasableForSpecificWalletID is what a claim on the wallet would release now.
func (p *StreamingPaymentProcessor) ReleasableForSpecificWalletID(client, contributor Address, walletID uint64) uint64 {
	w, ok := p.wallets[walletKey{client, contributor, walletID}]
	if !ok {
		return 0
	}
	return VestingSchedule(w.Start, w.Duration, w.Salary, p.workflow.Now()) - w.Released
}

// VestedAmountForSpecificWalletID is the amount vested at timestamp.
func (p *StreamingPaymentProcessor) VestedAmountForSpecificWalletID(client, contributor Address, walletID uint64, timestamp int64) uint64 {
	w, ok := p.wallets[walletKey{client, contributor, walletID}]
	if !ok {
		return 0
	}
	return VestingSchedule(w.Start, w.Duration, w.Salary, timestamp)
}

// StartForSpecificWalletID returns the vesting start of a wallet.
func (p *StreamingPaymentProcessor) StartForSpecificWalletID(client, contributor Address, walletID uint64) int64 {
	if w, ok := p.wallets[walletKey{client, contributor, walletID}]; ok {
		return w.Start
	}
	return 0
}

// DurationForSpecificWalletID returns the vesting duration of a wallet.
func (p *StreamingPaymentProcessor) DurationForSpecificWalletID(client, contributor Address, walletID uint64) int64 {
	if w, ok := p.wallets[walletKey{client, contributor, walletID}]; ok {
		return w.Duration
	}
	return 0
}

// SalaryForSpecificWalletID returns the total amount a wallet vests.
func (p *StreamingPaymentProcessor) SalaryForSpecificWalletID(client, contributor Address, walletID uint64) uint64 {
	if w, ok := p.wallets[walletKey{client, contributor, walletID}]; ok {
		return w.Salary
	}
	return 0
}

// ReleasedForSpecificWalletID returns what a wallet has released so far.
func (p *StreamingPaymentProcessor) ReleasedForSpecificWalletID(client, contributor Address, walletID uint64) uint64 {
	if w, ok := p.wallets[walletKey{client, contributor, walletID}]; ok {
		return w.Released
	}
	return 0
}
