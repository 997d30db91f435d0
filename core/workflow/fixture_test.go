package workflow

import (
	"errors"
	"testing"
)

const (
	owner     Address = "owner"
	issuer    Address = "issuer"
	claimant  Address = "claimant"
	verifier  Address = "verifier"
	manager   Address = "manager"
	stranger  Address = "stranger"
	alice     Address = "alice"
	bob       Address = "bob"
	carol     Address = "carol"
	wfAddr    Address = "workflow"
	procAddr  Address = "processor"
	fundAddr  Address = "funding"
	bountyMgr Address = "bounty-manager"
	msMgr     Address = "milestone-manager"
	clientA   Address = "client"

	startTime     int64  = 1_700_000_000
	initialFunds  uint64 = 1_000_000
	unlimitedSpan uint64 = 1 << 62
)

type fixture struct {
	clock      *ManualClock
	ledger     *MemoryLedger
	auth       *RoleAuthorizer
	events     *EventRecorder
	wf         *Workflow
	processor  *StreamingPaymentProcessor
	funding    *FundingManager
	bounties   *BountyManager
	milestones *MilestoneManager
}

// tickingClock advances one second on every read, like a wall clock crossing
// second boundaries between steps of one transaction.
type tickingClock struct{ *ManualClock }

func (c tickingClock) Now() int64 {
	now := c.ManualClock.Now()
	c.Advance(1)
	return now
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return buildFixture(t, false)
}

// newTickingFixture builds a fixture whose workflow clock ticks on every read.
func newTickingFixture(t *testing.T) *fixture {
	t.Helper()
	return buildFixture(t, true)
}

func buildFixture(t *testing.T, ticking bool) *fixture {
	t.Helper()
	f := &fixture{
		clock:  NewManualClock(startTime),
		ledger: NewMemoryLedger("USDC"),
		auth:   NewRoleAuthorizer(owner),
		events: &EventRecorder{},
	}
	var clock Clock = f.clock
	if ticking {
		clock = tickingClock{f.clock}
	}
	wf, err := NewWorkflow(Config{
		Address:    wfAddr,
		Ledger:     f.ledger,
		Clock:      clock,
		Authorizer: f.auth,
		Sink:       f.events,
	})
	if err != nil {
		t.Fatalf("NewWorkflow failed: %v", err)
	}
	f.wf = wf
	if f.processor, err = NewStreamingPaymentProcessor(procAddr, wf); err != nil {
		t.Fatalf("NewStreamingPaymentProcessor failed: %v", err)
	}
	if f.funding, err = NewFundingManager(fundAddr, wf); err != nil {
		t.Fatalf("NewFundingManager failed: %v", err)
	}
	if f.bounties, err = NewBountyManager(bountyMgr, wf); err != nil {
		t.Fatalf("NewBountyManager failed: %v", err)
	}
	if f.milestones, err = NewMilestoneManager(msMgr, wf); err != nil {
		t.Fatalf("NewMilestoneManager failed: %v", err)
	}
	if err := f.ledger.Mint(fundAddr, initialFunds); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	grants := []struct {
		module Address
		role   Role
		who    Address
	}{
		{bountyMgr, RoleBountyIssuer, issuer},
		{bountyMgr, RoleClaimant, claimant},
		{bountyMgr, RoleVerifier, verifier},
		{msMgr, RoleMilestoneManager, manager},
	}
	for _, g := range grants {
		if err := f.auth.GrantRole(owner, g.module, g.role, g.who); err != nil {
			t.Fatalf("GrantRole failed: %v", err)
		}
	}
	return f
}

// newClient registers a bare payment order queue funded with amount and
// approved for the processor.
func (f *fixture) newClient(t *testing.T, amount uint64) *PaymentOrderQueue {
	t.Helper()
	q := NewPaymentOrderQueue(clientA, f.wf)
	if err := f.wf.RegisterModule(clientA, q, CapPaymentClient); err != nil {
		t.Fatalf("RegisterModule failed: %v", err)
	}
	if amount > 0 {
		if err := f.ledger.Mint(clientA, amount); err != nil {
			t.Fatalf("Mint failed: %v", err)
		}
	}
	f.ledger.Approve(clientA, procAddr, unlimitedSpan)
	return q
}

// stream queues one order per recipient and processes them.
func (f *fixture) stream(t *testing.T, q *PaymentOrderQueue, duration int64, payees map[Address]uint64) {
	t.Helper()
	now := f.clock.Now()
	for to, amount := range payees {
		order := PaymentOrder{Recipient: to, Amount: amount, CreatedAt: now, DueTo: now + duration}
		if err := q.AddPaymentOrder(clientA, order); err != nil {
			t.Fatalf("AddPaymentOrder failed: %v", err)
		}
	}
	if err := f.processor.ProcessPayments(clientA, q); err != nil {
		t.Fatalf("ProcessPayments failed: %v", err)
	}
}

func expectErr(t *testing.T, err error, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("Expected error %v but got %v", want, err)
	}
}

func expectNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}
