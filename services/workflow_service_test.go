package services

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"orchestrator-backend/config"
	"orchestrator-backend/core/workflow"
	"orchestrator-backend/models"
	"orchestrator-backend/storage/events"
)

const (
	testOwner    workflow.Address = "0xowner"
	testIssuer   workflow.Address = "0xissuer"
	testClaimant workflow.Address = "0xclaimant"
	testVerifier workflow.Address = "0xverifier"
	testManager  workflow.Address = "0xmanager"
	testAlice    workflow.Address = "0xalice"
	testBob      workflow.Address = "0xbob"

	testStart int64 = 1_700_000_000
)

type testEnv struct {
	svc   *WorkflowService
	clock *workflow.ManualClock
	store *events.MemoryStore
}

func testDeployment() config.DeploymentConfig {
	dep := config.DefaultDeployment()
	dep.InitialFunding = 1_000_000
	dep.Roles = []config.RoleGrant{
		{Module: "bounty_manager", Role: "bounty_issuer", Address: string(testIssuer)},
		{Module: "bounty_manager", Role: "CLAIMANT", Address: string(testClaimant)},
		{Module: "bounty_manager", Role: "VERIFIER", Address: string(testVerifier)},
		{Module: "milestone_manager", Role: "MILESTONE_MANAGER", Address: string(testManager)},
	}
	return dep
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{clock: workflow.NewManualClock(testStart), store: events.NewMemoryStore()}
	svc, err := NewWorkflowService(context.Background(), testDeployment(), env.store, WorkflowOptions{Clock: env.clock})
	if err != nil {
		t.Fatalf("NewWorkflowService failed: %v", err)
	}
	env.svc = svc
	return env
}

func (e *testEnv) eventsOfType(t *testing.T, typ workflow.EventType) []events.Record {
	t.Helper()
	recs, err := e.store.List(context.Background(), events.Filter{Type: typ, Limit: 1000})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	return recs
}

func TestNewWorkflowServiceBoot(t *testing.T) {
	env := newTestEnv(t)
	svc := env.svc

	if got := svc.Funding().Balance; got != 1_000_000 {
		t.Errorf("Expected funding balance 1000000 but got %d", got)
	}
	ok, err := svc.HasRole("bounty", "verifier", string(testVerifier))
	if err != nil || !ok {
		t.Errorf("Expected verifier role to be granted but got %v, %v", ok, err)
	}
	if !svc.IsAuthorized(testOwner) {
		t.Error("Expected the configured owner to be authorized")
	}

	dep := testDeployment()
	dep.Roles = append(dep.Roles, config.RoleGrant{Module: "bounty_manager", Role: "janitor", Address: "0xx"})
	if _, err := NewWorkflowService(context.Background(), dep, nil, WorkflowOptions{}); !errors.Is(err, workflow.ErrInvalidRole) {
		t.Errorf("Expected ErrInvalidRole but got %v", err)
	}
}

func TestResolveModule(t *testing.T) {
	svc := newTestEnv(t).svc

	tests := []struct {
		raw     string
		want    workflow.Address
		wantErr bool
	}{
		{"bounty", "0xbountymanager", false},
		{"Milestones", "0xmilestonemanager", false},
		{"0xPaymentProcessor", "0xpaymentprocessor", false},
		{"nowhere", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := svc.ResolveModule(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v but got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %s but got %s", tt.want, got)
			}
		})
	}
	if _, err := svc.ResolveClient("processor"); !errors.Is(err, workflow.ErrModuleNotFound) {
		t.Errorf("Expected the processor to be rejected as client but got %v", err)
	}
}

func TestBountyFlowPersistsEvents(t *testing.T) {
	env := newTestEnv(t)
	svc := env.svc
	ctx := context.Background()

	b, err := svc.AddBounty(ctx, testIssuer, models.BountyRequest{MinimumPayoutAmount: 100, MaximumPayoutAmount: 500, Details: "fix bug"})
	if err != nil {
		t.Fatalf("AddBounty failed: %v", err)
	}
	c, err := svc.AddClaim(ctx, testClaimant, models.ClaimRequest{
		BountyID: b.ID,
		Contributors: []models.ClaimContributor{
			{Address: "0xAlice", ClaimAmount: 200},
			{Address: "0xbob", ClaimAmount: 100},
		},
		Details: "pr #1",
	})
	if err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}
	if c.Contributors[0].Addr != testAlice {
		t.Errorf("Expected normalized address %s but got %s", testAlice, c.Contributors[0].Addr)
	}

	c, err = svc.VerifyClaim(ctx, testVerifier, c.ID, b.ID)
	if err != nil {
		t.Fatalf("VerifyClaim failed: %v", err)
	}
	if !c.Claimed {
		t.Error("Expected the claim to be marked claimed")
	}
	if got, _ := svc.GetBounty(b.ID); !got.Locked || got.ClaimID != c.ID {
		t.Errorf("Expected bounty locked by claim %d but got %+v", c.ID, got)
	}

	client, _ := svc.ResolveClient("bounty")
	view, err := svc.ClaimAll(ctx, testAlice, client)
	if err != nil {
		t.Fatalf("ClaimAll failed: %v", err)
	}
	if view.Balance != 200 || view.Active {
		t.Errorf("Expected alice paid 200 with no live wallet but got %+v", view)
	}

	if n := len(env.eventsOfType(t, workflow.EventClaimVerified)); n != 1 {
		t.Errorf("Expected 1 claim_verified record but got %d", n)
	}
	if n := len(env.eventsOfType(t, workflow.EventTokensReleased)); n != 1 {
		t.Errorf("Expected 1 tokens_released record but got %d", n)
	}
	if got := testutil.ToFloat64(svc.Metrics().tokensReleased); got != 200 {
		t.Errorf("Expected tokens released metric 200 but got %v", got)
	}
	if got := testutil.ToFloat64(svc.Metrics().walletsCreated); got != 2 {
		t.Errorf("Expected 2 wallets created but got %v", got)
	}

	claims := svc.ListClaims(ClaimFilter{Contributor: testBob})
	if len(claims) != 1 || claims[0].ID != c.ID {
		t.Errorf("Expected bob's claim %d but got %+v", c.ID, claims)
	}
}

func TestFailedTransactionPersistsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	before, _ := env.store.List(ctx, events.Filter{Limit: 1000})
	_, err := env.svc.AddBounty(ctx, testAlice, models.BountyRequest{MinimumPayoutAmount: 1, MaximumPayoutAmount: 2})
	if !errors.Is(err, workflow.ErrMissingRole) {
		t.Fatalf("Expected ErrMissingRole but got %v", err)
	}
	_, err = env.svc.AddBounty(ctx, testIssuer, models.BountyRequest{MinimumPayoutAmount: 5, MaximumPayoutAmount: 2})
	if workflow.KindOf(err) != workflow.KindValidation {
		t.Fatalf("Expected a validation error but got %v", err)
	}
	after, _ := env.store.List(ctx, events.Filter{Limit: 1000})
	if len(after) != len(before) {
		t.Errorf("Expected %d records but got %d", len(before), len(after))
	}
}

func TestMilestoneFlow(t *testing.T) {
	env := newTestEnv(t)
	svc := env.svc
	ctx := context.Background()

	req := models.MilestoneRequest{
		Title:    "M1",
		Details:  "first",
		Duration: 1000,
		Budget:   1000,
		Contributors: []models.MilestoneContributor{
			{Address: string(testAlice), Salary: 60_000_000},
			{Address: string(testBob), Salary: 40_000_000},
		},
	}
	m, err := svc.AddMilestone(ctx, testManager, req)
	if err != nil {
		t.Fatalf("AddMilestone failed: %v", err)
	}
	if o := svc.ListMilestones(); !o.NextActivatable || o.HasActive {
		t.Errorf("Expected the first milestone to be activatable but got %+v", o)
	}

	m, err = svc.StartNextMilestone(ctx, testManager)
	if err != nil {
		t.Fatalf("StartNextMilestone failed: %v", err)
	}
	if !m.Started || m.StartTimestamp != testStart {
		t.Errorf("Expected milestone started at %d but got %+v", testStart, m)
	}

	env.clock.Advance(500)
	client, _ := svc.ResolveClient("milestone")
	view := svc.Payments(client, testAlice)
	if view.Releasable != 300 || len(view.Wallets) != 1 {
		t.Errorf("Expected 300 releasable in one wallet but got %+v", view)
	}

	if _, err := svc.SubmitMilestone(ctx, testAlice, m.ID, "https://example.org/pr/1"); err != nil {
		t.Fatalf("SubmitMilestone failed: %v", err)
	}
	m, err = svc.CompleteMilestone(ctx, testManager, m.ID)
	if err != nil || !m.Completed {
		t.Fatalf("Expected completed milestone but got %+v, %v", m, err)
	}

	second, err := svc.AddMilestone(ctx, testManager, req)
	if err != nil {
		t.Fatalf("AddMilestone failed: %v", err)
	}
	if err := svc.RemoveMilestone(ctx, testManager, second.ID); err != nil {
		t.Fatalf("RemoveMilestone failed: %v", err)
	}
	if _, err := svc.GetMilestone(second.ID); !errors.Is(err, workflow.ErrMilestoneNotFound) {
		t.Errorf("Expected ErrMilestoneNotFound but got %v", err)
	}
}

func TestFundingThroughService(t *testing.T) {
	env := newTestEnv(t)
	svc := env.svc
	ctx := context.Background()

	if err := svc.Ledger().Mint(testAlice, 100); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if err := svc.Approve(ctx, testAlice, 100); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	v, err := svc.Deposit(ctx, testAlice, 60)
	if err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	if v.TotalDeposits != 60 || v.Balance != 1_000_060 {
		t.Errorf("Expected deposits 60 and balance 1000060 but got %+v", v)
	}
	if _, err := svc.Withdraw(ctx, testBob, 1); !errors.Is(err, workflow.ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance but got %v", err)
	}
}

type failingStore struct{ events.Store }

func (failingStore) Append(context.Context, events.Record) error { return errors.New("disk full") }
func (failingStore) List(context.Context, events.Filter) ([]events.Record, error) {
	return nil, errors.New("disk full")
}

func TestPersistFailureIsCountedNotReturned(t *testing.T) {
	svc, err := NewWorkflowService(context.Background(), testDeployment(), failingStore{}, WorkflowOptions{Clock: workflow.NewManualClock(testStart)})
	if err != nil {
		t.Fatalf("NewWorkflowService failed: %v", err)
	}
	if _, err := svc.AddBounty(context.Background(), testIssuer, models.BountyRequest{MinimumPayoutAmount: 1, MaximumPayoutAmount: 2}); err != nil {
		t.Fatalf("Expected the transaction to succeed but got %v", err)
	}
	if got := testutil.ToFloat64(svc.Metrics().persistFailures); got != 1 {
		t.Errorf("Expected 1 persist failure but got %v", got)
	}

	health := NewHealthService(failingStore{}, "memory").GetHealthStatus(context.Background())
	if health.Status != "degraded" || health.StoreError == "" {
		t.Errorf("Expected degraded health but got %+v", health)
	}
}

func TestQRCodeService(t *testing.T) {
	qr := NewQRCodeService("http://localhost:3001/")
	if got := qr.ClaimURL("0xbountymanager", testAlice); got != "http://localhost:3001/api/payments/0xbountymanager/0xalice" {
		t.Errorf("Unexpected claim url %s", got)
	}
	data, err := qr.GenerateClaimQRCode("0xbountymanager", testAlice)
	if err != nil {
		t.Fatalf("GenerateClaimQRCode failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Expected a valid PNG but got %v", err)
	}
	if img.Bounds().Dx() != 256 {
		t.Errorf("Expected 256px image but got %d", img.Bounds().Dx())
	}
	if _, err := qr.GenerateClaimQRCode("", testAlice); !errors.Is(err, workflow.ErrInvalidAddress) {
		t.Errorf("Expected ErrInvalidAddress but got %v", err)
	}
}

func TestEventHubFanOut(t *testing.T) {
	env := newTestEnv(t)
	hub := env.svc.Hub()

	first, cancelFirst := hub.Subscribe(8)
	second, cancelSecond := hub.Subscribe(8)
	defer cancelSecond()
	if hub.Subscribers() != 2 {
		t.Fatalf("Expected 2 subscribers but got %d", hub.Subscribers())
	}

	if _, err := env.svc.AddBounty(context.Background(), testIssuer, models.BountyRequest{MinimumPayoutAmount: 1, MaximumPayoutAmount: 2}); err != nil {
		t.Fatalf("AddBounty failed: %v", err)
	}
	for i, ch := range []<-chan events.Record{first, second} {
		select {
		case rec := <-ch:
			if rec.Type != workflow.EventBountyAdded {
				t.Errorf("subscriber %d: Expected bounty_added but got %s", i, rec.Type)
			}
		default:
			t.Errorf("subscriber %d: Expected a record", i)
		}
	}

	cancelFirst()
	cancelFirst()
	if _, ok := <-first; ok {
		t.Error("Expected the cancelled channel to be closed")
	}
	if hub.Subscribers() != 1 {
		t.Errorf("Expected 1 subscriber but got %d", hub.Subscribers())
	}

	full, cancelFull := hub.Subscribe(0)
	defer cancelFull()
	hub.Publish(events.Record{Type: workflow.EventBountyLocked})
	select {
	case <-full:
		t.Error("Expected an unbuffered idle subscriber to miss the record")
	default:
	}
}
