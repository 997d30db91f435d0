package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"orchestrator-backend/config"
	"orchestrator-backend/core/workflow"
	"orchestrator-backend/storage/events"
)

// WorkflowService is the transaction facade over one workflow deployment.
// Every write runs through Workflow.Execute; the events it commits are
// persisted to the event store and counted in the metrics afterwards.
type WorkflowService struct {
	wf         *workflow.Workflow
	ledger     *workflow.MemoryLedger
	auth       *workflow.RoleAuthorizer
	processor  *workflow.StreamingPaymentProcessor
	funding    *workflow.FundingManager
	bounties   *workflow.BountyManager
	milestones *workflow.MilestoneManager

	store   events.Store
	metrics *Metrics
	hub     *EventHub

	// txMu keeps the committed events of one transaction together.
	txMu      sync.Mutex
	committed []workflow.Event

	owner   workflow.Address
	modules map[string]workflow.Address
}

// WorkflowOptions override the collaborators built by NewWorkflowService.
type WorkflowOptions struct {
	Clock   workflow.Clock
	Ledger  *workflow.MemoryLedger
	Metrics *Metrics
}

// NewWorkflowService boots the deployment described by dep: it wires the
// processor, funding manager and both payment clients, mints the initial
// funding and applies the configured role grants.
func NewWorkflowService(ctx context.Context, dep config.DeploymentConfig, store events.Store, opts WorkflowOptions) (*WorkflowService, error) {
	if err := dep.Validate(); err != nil {
		return nil, fmt.Errorf("invalid deployment: %w", err)
	}
	if store == nil {
		store = events.NewMemoryStore()
	}
	ledger := opts.Ledger
	if ledger == nil {
		ledger = workflow.NewMemoryLedger(dep.TokenSymbol)
		ledger.SetConformant(dep.ConformantToken)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	owners := make([]workflow.Address, 0, len(dep.Owners))
	for _, o := range dep.Owners {
		owners = append(owners, workflow.NormalizeAddress(o))
	}

	s := &WorkflowService{
		ledger:  ledger,
		auth:    workflow.NewRoleAuthorizer(owners...),
		store:   store,
		metrics: metrics,
		hub:     NewEventHub(),
		owner:   owners[0],
	}

	wf, err := workflow.NewWorkflow(workflow.Config{
		Address:    workflow.NormalizeAddress(dep.Workflow),
		Ledger:     ledger,
		Clock:      opts.Clock,
		Authorizer: s.auth,
		Sink:       workflow.EventSinkFunc(s.collect),
	})
	if err != nil {
		return nil, err
	}
	s.wf = wf

	if s.processor, err = workflow.NewStreamingPaymentProcessor(workflow.NormalizeAddress(dep.Processor), wf); err != nil {
		return nil, err
	}
	if s.funding, err = workflow.NewFundingManager(workflow.NormalizeAddress(dep.FundingManager), wf); err != nil {
		return nil, err
	}
	if s.bounties, err = workflow.NewBountyManager(workflow.NormalizeAddress(dep.BountyManager), wf); err != nil {
		return nil, err
	}
	if s.milestones, err = workflow.NewMilestoneManager(workflow.NormalizeAddress(dep.MilestoneManager), wf); err != nil {
		return nil, err
	}

	s.modules = map[string]workflow.Address{
		"workflow":          wf.Address(),
		"processor":         s.processor.Address(),
		"funding":           s.funding.Address(),
		"funding_manager":   s.funding.Address(),
		"bounty":            s.bounties.Address(),
		"bounties":          s.bounties.Address(),
		"bounty_manager":    s.bounties.Address(),
		"milestone":         s.milestones.Address(),
		"milestones":        s.milestones.Address(),
		"milestone_manager": s.milestones.Address(),
	}

	if dep.InitialFunding > 0 {
		if err := ledger.Mint(s.funding.Address(), dep.InitialFunding); err != nil {
			return nil, fmt.Errorf("minting initial funding: %w", err)
		}
	}
	for _, g := range dep.Roles {
		if err := s.GrantRole(ctx, s.owner, g.Module, g.Role, g.Address); err != nil {
			return nil, fmt.Errorf("granting %s on %s to %s: %w", g.Role, g.Module, g.Address, err)
		}
	}
	if dep.MilestoneUpdateTimelock > 0 {
		if err := s.SetMilestoneUpdateTimelock(ctx, s.owner, dep.MilestoneUpdateTimelock); err != nil {
			return nil, err
		}
	}

	log.Printf("workflow %s booted: token=%s funding=%d bounty=%s milestone=%s",
		wf.Address(), ledger.Symbol(), s.funding.Balance(), s.bounties.Address(), s.milestones.Address())
	return s, nil
}

func (s *WorkflowService) collect(evt workflow.Event) {
	s.committed = append(s.committed, evt)
}

// transact runs fn as one workflow transaction and persists what it committed.
func (s *WorkflowService) transact(ctx context.Context, fn func() error) error {
	s.txMu.Lock()
	err := s.wf.Execute(fn)
	committed := s.committed
	s.committed = nil
	s.txMu.Unlock()

	s.persist(ctx, committed)
	return err
}

// persist records committed events. The transaction already happened, so a
// cancelled request context must not drop them.
func (s *WorkflowService) persist(ctx context.Context, committed []workflow.Event) {
	ctx = context.WithoutCancel(ctx)
	for _, evt := range committed {
		s.metrics.ObserveEvent(evt)
		rec := events.FromEvent(evt)
		if err := s.store.Append(ctx, rec); err != nil {
			s.metrics.observePersistFailure()
			log.Printf("failed to persist event %d (%s): %v", evt.Seq, evt.Type, err)
		}
		s.hub.Publish(rec)
	}
}

// Workflow exposes the underlying workflow.
func (s *WorkflowService) Workflow() *workflow.Workflow { return s.wf }

// Ledger exposes the token ledger.
func (s *WorkflowService) Ledger() *workflow.MemoryLedger { return s.ledger }

// Store exposes the event store.
func (s *WorkflowService) Store() events.Store { return s.store }

// Hub exposes the live event feed.
func (s *WorkflowService) Hub() *EventHub { return s.hub }

// Metrics exposes the metrics collectors.
func (s *WorkflowService) Metrics() *Metrics { return s.metrics }

// ResolveModule maps a module alias such as "bounty" or a raw address to the
// address of a registered module.
func (s *WorkflowService) ResolveModule(raw string) (workflow.Address, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if addr, ok := s.modules[key]; ok {
		return addr, nil
	}
	addr := workflow.NormalizeAddress(raw)
	if s.wf.IsModule(addr) {
		return addr, nil
	}
	return workflow.ZeroAddress, fmt.Errorf("%w: %q", workflow.ErrModuleNotFound, raw)
}

// ResolveClient is ResolveModule restricted to payment clients.
func (s *WorkflowService) ResolveClient(raw string) (workflow.Address, error) {
	addr, err := s.ResolveModule(raw)
	if err != nil {
		return addr, err
	}
	if !s.wf.HasCapability(addr, workflow.CapPaymentClient) {
		return workflow.ZeroAddress, fmt.Errorf("%w: %s is not a payment client", workflow.ErrModuleNotFound, addr)
	}
	return addr, nil
}

// IsAuthorized reports whether who is an owner of the workflow.
func (s *WorkflowService) IsAuthorized(who workflow.Address) bool {
	return s.auth.IsAuthorized(who)
}

// GrantRole grants a module-scoped role. Only owners may grant.
func (s *WorkflowService) GrantRole(ctx context.Context, caller workflow.Address, module, role, who string) error {
	addr, r, target, err := s.roleArgs(module, role, who)
	if err != nil {
		return err
	}
	return s.transact(ctx, func() error { return s.auth.GrantRole(caller, addr, r, target) })
}

// RevokeRole revokes a module-scoped role. Only owners may revoke.
func (s *WorkflowService) RevokeRole(ctx context.Context, caller workflow.Address, module, role, who string) error {
	addr, r, target, err := s.roleArgs(module, role, who)
	if err != nil {
		return err
	}
	return s.transact(ctx, func() error { return s.auth.RevokeRole(caller, addr, r, target) })
}

// HasRole reports whether who holds role within module.
func (s *WorkflowService) HasRole(module, role, who string) (bool, error) {
	addr, r, target, err := s.roleArgs(module, role, who)
	if err != nil {
		return false, err
	}
	return s.auth.HasRole(addr, r, target), nil
}

func (s *WorkflowService) roleArgs(module, role, who string) (workflow.Address, workflow.Role, workflow.Address, error) {
	addr, err := s.ResolveModule(module)
	if err != nil {
		return "", "", "", err
	}
	r, err := workflow.ParseRole(role)
	if err != nil {
		return "", "", "", err
	}
	return addr, r, workflow.NormalizeAddress(who), nil
}

// Balance returns the token balance of owner.
func (s *WorkflowService) Balance(owner workflow.Address) uint64 {
	return s.ledger.BalanceOf(owner)
}

// Events lists persisted events, newest first.
func (s *WorkflowService) Events(ctx context.Context, filter events.Filter) ([]events.Record, error) {
	return s.store.List(ctx, filter)
}
