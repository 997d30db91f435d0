package workflow

import "testing"

func TestFundingDepositAndWithdraw(t *testing.T) {
	f := newFixture(t)
	fm := f.funding
	if err := f.ledger.Mint(alice, 500); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	expectErr(t, fm.Deposit(alice, 100), ErrTransferFailed)
	expectErr(t, fm.Deposit(bob, 1), ErrInsufficientBalance)
	f.ledger.Approve(alice, fundAddr, 300)
	expectErr(t, fm.Deposit(alice, 0), ErrInvalidAmount)
	expectNoErr(t, fm.Deposit(alice, 300))

	if fm.DepositOf(alice) != 300 || fm.TotalDeposits() != 300 {
		t.Errorf("Expected deposit 300 but got %d (total %d)", fm.DepositOf(alice), fm.TotalDeposits())
	}
	if got := f.ledger.BalanceOf(alice); got != 200 {
		t.Errorf("Expected alice balance 200 but got %d", got)
	}

	expectErr(t, fm.Withdraw(alice, 301), ErrInsufficientBalance)
	expectErr(t, fm.Withdraw(bob, 1), ErrInsufficientBalance)
	expectNoErr(t, fm.Withdraw(alice, 120))
	if fm.DepositOf(alice) != 180 {
		t.Errorf("Expected deposit 180 but got %d", fm.DepositOf(alice))
	}
	if got := f.ledger.BalanceOf(alice); got != 320 {
		t.Errorf("Expected alice balance 320 but got %d", got)
	}
	if len(f.events.OfType(EventFundingDeposited)) != 1 || len(f.events.OfType(EventFundingWithdrawn)) != 1 {
		t.Error("Expected one deposit and one withdrawal event")
	}
}

func TestTransferOrchestratorToken(t *testing.T) {
	f := newFixture(t)
	fm := f.funding

	expectErr(t, fm.TransferOrchestratorToken(bountyMgr, bountyMgr, 10), ErrNotOrchestrator)
	expectErr(t, fm.TransferOrchestratorToken(wfAddr, ZeroAddress, 10), ErrInvalidRecipient)
	expectErr(t, fm.TransferOrchestratorToken(wfAddr, bountyMgr, initialFunds+1), ErrInsufficientBalance)

	err := f.wf.ExecuteTxFromModule(bountyMgr, func(actor Address) error {
		return fm.TransferOrchestratorToken(actor, bountyMgr, 10)
	})
	expectNoErr(t, err)
	if got := f.ledger.BalanceOf(bountyMgr); got != 10 {
		t.Errorf("Expected bounty manager balance 10 but got %d", got)
	}
}
