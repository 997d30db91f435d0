package workflow

import (
	"errors"
	"slices"
	"testing"
)

func TestNewWorkflow(t *testing.T) {
	ledger := NewMemoryLedger("USDC")
	auth := NewRoleAuthorizer(owner)

	if _, err := NewWorkflow(Config{Ledger: ledger, Authorizer: auth}); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Expected ErrInvalidAddress but got %v", err)
	}
	if _, err := NewWorkflow(Config{Address: wfAddr, Authorizer: auth}); err == nil {
		t.Error("Expected an error without a ledger")
	}
	wf, err := NewWorkflow(Config{Address: wfAddr, Ledger: ledger, Authorizer: auth})
	expectNoErr(t, err)
	if _, ok := wf.Clock().(SystemClock); !ok {
		t.Error("Expected the system clock by default")
	}
	if wf.PaymentProcessor() != nil || wf.FundingManager() != nil {
		t.Error("Expected no processor or funding manager yet")
	}
}

func TestRegisterModule(t *testing.T) {
	f := newFixture(t)

	expectErr(t, f.wf.RegisterModule(ZeroAddress, struct{}{}), ErrInvalidAddress)
	expectErr(t, f.wf.RegisterModule(wfAddr, struct{}{}), ErrInvalidAddress)
	expectErr(t, f.wf.RegisterModule(bountyMgr, struct{}{}), ErrModuleAlreadyRegistered)
	expectErr(t, f.wf.RegisterModule("fake-client", struct{}{}, CapPaymentClient), ErrInvalidModuleCap)

	if f.wf.PaymentProcessor() != f.processor || f.wf.FundingManager() != f.funding {
		t.Error("Expected processor and funding manager to be wired")
	}
	clients := f.wf.ModulesWithCapability(CapPaymentClient)
	if !slices.Equal(clients, []Address{bountyMgr, msMgr}) {
		t.Errorf("Expected payment clients [bounty milestone] but got %v", clients)
	}
	if !f.wf.HasCapability(msMgr, CapMilestoneManager) || f.wf.HasCapability(msMgr, CapBountyManager) {
		t.Error("Unexpected capabilities for the milestone manager")
	}
	if _, err := f.wf.PaymentClient(procAddr); !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("Expected ErrModuleNotFound but got %v", err)
	}
	if pc, err := f.wf.PaymentClient(bountyMgr); err != nil || pc.Address() != bountyMgr {
		t.Errorf("Expected the bounty manager as payment client but got %v, %v", pc, err)
	}
}

func TestExecuteDiscardsEventsOnError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")

	err := f.wf.Execute(func() error {
		if _, err := f.bounties.AddBounty(issuer, 1, 2, ""); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom but got %v", err)
	}
	if len(f.events.Events) != 0 {
		t.Errorf("Expected no events but got %d", len(f.events.Events))
	}

	err = f.wf.Execute(func() error {
		_, err := f.bounties.AddBounty(issuer, 1, 2, "")
		return err
	})
	expectNoErr(t, err)
	if len(f.events.OfType(EventBountyAdded)) != 1 {
		t.Error("Expected the committed event to reach the sink")
	}
	if f.events.Events[0].Timestamp != startTime {
		t.Errorf("Expected timestamp %d but got %d", startTime, f.events.Events[0].Timestamp)
	}
}

func TestExecuteTxFromModule(t *testing.T) {
	f := newFixture(t)
	expectErr(t, f.wf.ExecuteTxFromModule(stranger, func(Address) error { return nil }), ErrNotModule)

	var actor Address
	expectNoErr(t, f.wf.ExecuteTxFromModule(msMgr, func(a Address) error { actor = a; return nil }))
	if actor != wfAddr {
		t.Errorf("Expected actor %s but got %s", wfAddr, actor)
	}
}

func TestRoleAuthorizer(t *testing.T) {
	a := NewRoleAuthorizer(owner, ZeroAddress)
	if a.IsAuthorized(ZeroAddress) {
		t.Error("Expected the zero address to be ignored")
	}
	expectErr(t, a.AddOwner(stranger, alice), ErrNotAuthorized)
	expectErr(t, a.AddOwner(owner, ZeroAddress), ErrInvalidAddress)
	expectNoErr(t, a.AddOwner(owner, alice))
	if !a.IsAuthorized(alice) {
		t.Error("Expected alice to be an owner")
	}

	expectErr(t, a.GrantRole(bob, bountyMgr, RoleVerifier, bob), ErrNotAuthorized)
	expectNoErr(t, a.GrantRole(alice, bountyMgr, RoleVerifier, bob))
	if !a.HasRole(bountyMgr, RoleVerifier, bob) {
		t.Error("Expected bob to hold the verifier role")
	}
	if a.HasRole(msMgr, RoleVerifier, bob) {
		t.Error("Expected roles to be scoped to the module")
	}
	expectNoErr(t, a.RevokeRole(owner, bountyMgr, RoleVerifier, bob))
	if a.HasRole(bountyMgr, RoleVerifier, bob) {
		t.Error("Expected the role to be revoked")
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err       error
		kind      Kind
		retryable bool
	}{
		{fail("op", ErrNotAuthorized), KindAuthorization, false},
		{failf("op", ErrInvalidAmount, "order %d", 1), KindValidation, false},
		{fail("op", ErrBountyNotFound), KindNotFound, false},
		{fail("op", ErrInsufficientBalance), KindResource, true},
		{fail("op", ErrBountyLocked), KindState, false},
		{fail("op", ErrTransferFailed), KindExternal, true},
		{errors.New("other"), KindUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("Expected kind %s but got %s", tt.kind, got)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("Expected retryable %v but got %v", tt.retryable, got)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		raw  string
		want Role
		ok   bool
	}{
		{"verifier", RoleVerifier, true},
		{" Bounty_Issuer ", RoleBountyIssuer, true},
		{"MILESTONE_MANAGER", RoleMilestoneManager, true},
		{"claimant", RoleClaimant, true},
		{"janitor", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseRole(tt.raw)
			if tt.ok != (err == nil) {
				t.Fatalf("Expected ok=%v but got %v", tt.ok, err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidRole) {
				t.Errorf("Expected ErrInvalidRole but got %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q but got %q", tt.want, got)
			}
		})
	}
}
