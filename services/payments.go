package services

import (
	"context"

	"orchestrator-backend/core/workflow"
)

// WalletView is a vesting wallet with its schedule evaluated at the current time.
type WalletView struct {
	workflow.StreamingWallet
	DueTo      int64  `json:"due_to"`
	Vested     uint64 `json:"vested"`
	Releasable uint64 `json:"releasable"`
}

// PaymentsView summarises what a contributor is owed by one client.
type PaymentsView struct {
	Client      workflow.Address `json:"client"`
	Contributor workflow.Address `json:"contributor"`
	Active      bool             `json:"active"`
	Wallets     []WalletView     `json:"wallets"`
	Releasable  uint64           `json:"releasable"`
	Unclaimable uint64           `json:"unclaimable"`
	Balance     uint64           `json:"balance"`
}

// FundingView is the state of the funding manager.
type FundingView struct {
	Address       workflow.Address `json:"address"`
	Symbol        string           `json:"symbol"`
	Balance       uint64           `json:"balance"`
	TotalDeposits uint64           `json:"total_deposits"`
}

// ClientView is the outstanding liability of a payment client.
type ClientView struct {
	Address     workflow.Address   `json:"address"`
	Balance     uint64             `json:"balance"`
	Outstanding uint64             `json:"outstanding"`
	Receivers   []workflow.Address `json:"receivers"`
}

// Payments returns the wallets, releasable and unclaimable amounts of
// contributor at client.
func (s *WorkflowService) Payments(client, contributor workflow.Address) PaymentsView {
	v := PaymentsView{Client: client, Contributor: contributor}
	s.wf.View(func() {
		now := s.wf.Clock().Now()
		v.Active = s.processor.IsActiveContributor(client, contributor)
		for _, w := range s.processor.ViewAllPaymentOrders(client, contributor) {
			releasable := s.processor.ReleasableForSpecificWalletID(client, contributor, w.WalletID)
			v.Wallets = append(v.Wallets, WalletView{
				StreamingWallet: w,
				DueTo:           w.DueTo(),
				Vested:          s.processor.VestedAmountForSpecificWalletID(client, contributor, w.WalletID, now),
				Releasable:      releasable,
			})
			v.Releasable += releasable
		}
		v.Unclaimable = s.processor.Unclaimable(client, contributor)
		v.Balance = s.ledger.BalanceOf(contributor)
	})
	return v
}

// Client returns the queue state and active receivers of a payment client.
func (s *WorkflowService) Client(client workflow.Address) (ClientView, error) {
	var v ClientView
	var err error
	s.wf.View(func() {
		var pc workflow.PaymentClient
		pc, err = s.wf.PaymentClient(client)
		if err != nil {
			return
		}
		v = ClientView{
			Address:     client,
			Balance:     s.ledger.BalanceOf(client),
			Outstanding: pc.OutstandingTokenAmount(),
			Receivers:   s.processor.ActivePaymentReceivers(client),
		}
	})
	return v, err
}

// ClaimAll releases everything vested for the caller at client.
func (s *WorkflowService) ClaimAll(ctx context.Context, caller, client workflow.Address) (PaymentsView, error) {
	err := s.transact(ctx, func() error { return s.processor.ClaimAll(caller, client) })
	return s.Payments(client, caller), err
}

// ClaimWallet releases what is vested in one wallet. With retry the caller's
// unclaimable bucket is paid in the same transfer.
func (s *WorkflowService) ClaimWallet(ctx context.Context, caller, client workflow.Address, walletID uint64, retry bool) (PaymentsView, error) {
	err := s.transact(ctx, func() error {
		return s.processor.ClaimForSpecificWalletID(caller, client, walletID, retry)
	})
	return s.Payments(client, caller), err
}

// ClaimUnclaimable retries the transfer of the caller's unclaimable bucket.
func (s *WorkflowService) ClaimUnclaimable(ctx context.Context, caller, client workflow.Address) (PaymentsView, error) {
	err := s.transact(ctx, func() error { return s.processor.ClaimPreviouslyUnclaimable(caller, client) })
	return s.Payments(client, caller), err
}

// RemovePayments stops every wallet of contributor at client, paying what
// has vested. Owners only.
func (s *WorkflowService) RemovePayments(ctx context.Context, caller, client, contributor workflow.Address) error {
	return s.transact(ctx, func() error { return s.processor.RemovePayment(caller, client, contributor) })
}

// RemoveWallet stops one wallet of contributor at client. Owners only.
func (s *WorkflowService) RemoveWallet(ctx context.Context, caller, client, contributor workflow.Address, walletID uint64, retry bool) error {
	return s.transact(ctx, func() error {
		return s.processor.RemovePaymentForSpecificWalletID(caller, client, contributor, walletID, retry)
	})
}

// Funding returns the funding manager state.
func (s *WorkflowService) Funding() FundingView {
	var v FundingView
	s.wf.View(func() {
		v = FundingView{
			Address:       s.funding.Address(),
			Symbol:        s.ledger.Symbol(),
			Balance:       s.funding.Balance(),
			TotalDeposits: s.funding.TotalDeposits(),
		}
	})
	return v
}

// Deposit moves amount from the caller into the funding manager. The caller
// must have approved the funding manager beforehand.
func (s *WorkflowService) Deposit(ctx context.Context, caller workflow.Address, amount uint64) (FundingView, error) {
	err := s.transact(ctx, func() error { return s.funding.Deposit(caller, amount) })
	return s.Funding(), err
}

// Withdraw returns up to the caller's deposit.
func (s *WorkflowService) Withdraw(ctx context.Context, caller workflow.Address, amount uint64) (FundingView, error) {
	err := s.transact(ctx, func() error { return s.funding.Withdraw(caller, amount) })
	return s.Funding(), err
}

// Approve lets the funding manager pull amount from the caller.
func (s *WorkflowService) Approve(ctx context.Context, caller workflow.Address, amount uint64) error {
	return s.transact(ctx, func() error {
		if !workflow.Settled(s.ledger, s.ledger.Approve(caller, s.funding.Address(), amount)) {
			return workflow.ErrTransferFailed
		}
		return nil
	})
}
