package workflow

import (
	"errors"
	"math"
	"slices"
)

const (
	// SalaryPrecision is the fixed-point value of 100% for contributor salaries.
	SalaryPrecision uint64 = 100_000_000
	// MaximumContributors caps the contributor list of a milestone.
	MaximumContributors = 50
)

// MilestoneContributor is a contributor's share of a milestone budget,
// expressed against SalaryPrecision.
type MilestoneContributor struct {
	Addr   Address `json:"addr"`
	Salary uint64  `json:"salary"`
	Data   string  `json:"data,omitempty"`
}

// Milestone is a budgeted, time-boxed unit of work.
type Milestone struct {
	ID                   uint64                 `json:"id"`
	Title                string                 `json:"title"`
	Details              string                 `json:"details"`
	Duration             int64                  `json:"duration"`
	Budget               uint64                 `json:"budget"`
	Contributors         []MilestoneContributor `json:"contributors"`
	Started              bool                   `json:"started"`
	StartTimestamp       int64                  `json:"start_timestamp"`
	SubmissionData       string                 `json:"submission_data"`
	Completed            bool                   `json:"completed"`
	LastUpdatedTimestamp int64                  `json:"last_updated_timestamp"`
}

// Submitted reports whether a submission is pending review or accepted.
func (m Milestone) Submitted() bool { return m.SubmissionData != "" }

func (m Milestone) clone() Milestone {
	m.Contributors = slices.Clone(m.Contributors)
	return m
}

// MilestoneInput carries the editable fields of a milestone.
type MilestoneInput struct {
	Title        string                 `json:"title"`
	Details      string                 `json:"details"`
	Duration     int64                  `json:"duration"`
	Budget       uint64                 `json:"budget"`
	Contributors []MilestoneContributor `json:"contributors"`
}

// MilestoneManager runs an ordered list of milestones one at a time and pays
// each milestone's budget to its contributors through the payment processor
// when it starts. It is a payment client.
type MilestoneManager struct {
	*PaymentOrderQueue

	nextID         uint64
	milestones     map[uint64]*Milestone
	list           *IDList
	activeID       uint64
	updateTimelock int64
}

// NewMilestoneManager creates a milestone manager and registers it with wf.
func NewMilestoneManager(address Address, wf *Workflow) (*MilestoneManager, error) {
	mm := &MilestoneManager{
		PaymentOrderQueue: NewPaymentOrderQueue(address, wf),
		nextID:            1,
		milestones:        make(map[uint64]*Milestone),
		list:              NewIDList(),
		activeID:          Sentinel,
	}
	if err := wf.RegisterModule(address, mm, CapPaymentClient, CapMilestoneManager); err != nil {
		return nil, err
	}
	return mm, nil
}

// SalaryPrecision returns the fixed-point value of 100%.
func (mm *MilestoneManager) SalaryPrecision() uint64 { return SalaryPrecision }

// MaximumContributors returns the contributor cap per milestone.
func (mm *MilestoneManager) MaximumContributors() int { return MaximumContributors }

// UpdateTimelock is how long a milestone must stay unchanged before it can start.
func (mm *MilestoneManager) UpdateTimelock() int64 { return mm.updateTimelock }

func (mm *MilestoneManager) onlyManager(op string, caller Address) error {
	auth := mm.workflow.Authorizer()
	if auth.IsAuthorized(caller) || auth.HasRole(mm.address, RoleMilestoneManager, caller) {
		return nil
	}
	return fail(op, ErrNotAuthorized)
}

// AddMilestone appends a milestone to the end of the list and returns its id.
func (mm *MilestoneManager) AddMilestone(caller Address, in MilestoneInput) (uint64, error) {
	const op = "add milestone"
	if err := mm.onlyManager(op, caller); err != nil {
		return 0, err
	}
	if err := mm.validateInput(op, in); err != nil {
		return 0, err
	}
	id := mm.nextID
	mm.nextID++
	mm.milestones[id] = &Milestone{
		ID:                   id,
		Title:                in.Title,
		Details:              in.Details,
		Duration:             in.Duration,
		Budget:               in.Budget,
		Contributors:         slices.Clone(in.Contributors),
		LastUpdatedTimestamp: mm.workflow.Now(),
	}
	mm.list.Add(id)
	mm.workflow.emit(Event{
		Type:     EventMilestoneAdded,
		Module:   mm.address,
		EntityID: id,
		Actor:    caller,
		Amount:   in.Budget,
		Data:     milestoneData(in),
	})
	return id, nil
}

// UpdateMilestone replaces the editable fields of a milestone that has not started.
func (mm *MilestoneManager) UpdateMilestone(caller Address, id uint64, in MilestoneInput) error {
	const op = "update milestone"
	if err := mm.onlyManager(op, caller); err != nil {
		return err
	}
	m, err := mm.milestone(op, id)
	if err != nil {
		return err
	}
	if m.Started {
		return failf(op, ErrMilestoneAlreadyStarted, "milestone %d", id)
	}
	if err := mm.validateInput(op, in); err != nil {
		return err
	}
	m.Title = in.Title
	m.Details = in.Details
	m.Duration = in.Duration
	m.Budget = in.Budget
	m.Contributors = slices.Clone(in.Contributors)
	m.LastUpdatedTimestamp = mm.workflow.Now()
	mm.workflow.emit(Event{
		Type:     EventMilestoneUpdated,
		Module:   mm.address,
		EntityID: id,
		Actor:    caller,
		Amount:   in.Budget,
		Data:     milestoneData(in),
	})
	return nil
}

// RemoveMilestone unlinks milestone id. prevID must be its predecessor in
// the list; started milestones cannot be removed.
func (mm *MilestoneManager) RemoveMilestone(caller Address, prevID, id uint64) error {
	const op = "remove milestone"
	if err := mm.onlyManager(op, caller); err != nil {
		return err
	}
	m, err := mm.milestone(op, id)
	if err != nil {
		return err
	}
	if m.Started {
		return failf(op, ErrMilestoneAlreadyStarted, "milestone %d", id)
	}
	if !mm.list.Remove(prevID, id) {
		return failf(op, ErrInvalidPreviousID, "%d does not precede %d", prevID, id)
	}
	delete(mm.milestones, id)
	mm.workflow.emit(Event{
		Type:     EventMilestoneRemoved,
		Module:   mm.address,
		EntityID: id,
		Actor:    caller,
	})
	return nil
}

// StartNextMilestone starts the milestone after the active one and queues
// one payment order per contributor vesting over the milestone's duration.
// Contributors get floor(budget*salary/SalaryPrecision) and the first
// contributor also gets the rounding remainder, so the orders sum to budget.
func (mm *MilestoneManager) StartNextMilestone(caller Address) (id uint64, err error) {
	const op = "start next milestone"
	if err := mm.onlyManager(op, caller); err != nil {
		return 0, err
	}
	if !mm.IsNextMilestoneActivatable() {
		return 0, fail(op, ErrMilestoneNotActivatable)
	}
	processor := mm.workflow.PaymentProcessor()
	if processor == nil {
		return 0, fail(op, ErrProcessorNotSet)
	}
	id = mm.list.Next(mm.activeID)
	m := mm.milestones[id]

	s := mm.workflow.begin()
	defer func() { s.end(err) }()
	now := mm.workflow.Now()
	if m.Duration > math.MaxInt64-now {
		return 0, failf(op, ErrInvalidDuration, "milestone %d ends past the representable time", id)
	}

	orders := make([]PaymentOrder, 0, len(m.Contributors))
	for i, amount := range payouts(m.Budget, m.Contributors) {
		if amount == 0 {
			continue
		}
		orders = append(orders, PaymentOrder{
			Recipient: m.Contributors[i].Addr,
			Amount:    amount,
			CreatedAt: now,
			DueTo:     now + m.Duration,
		})
	}

	if len(orders) > 0 {
		required := mm.outstanding + m.Budget
		if required < m.Budget {
			return 0, fail(op, ErrAmountOverflow)
		}
		if err := mm.ensureTokenAllowance(op, processor.Address(), required); err != nil {
			return 0, err
		}
		pulled, err := mm.ensureTokenBalance(op, required)
		if err != nil {
			return 0, err
		}
		if err = mm.addPaymentOrders(op, orders); err == nil {
			if err = processor.ProcessPayments(mm.address, mm); err != nil {
				mm.rollback(len(orders), m.Budget)
			}
		}
		if err != nil {
			return 0, errors.Join(err, mm.returnPulled(op, pulled))
		}
	}

	m.Started = true
	m.StartTimestamp = now
	mm.activeID = id
	mm.workflow.emit(Event{
		Type:     EventMilestoneStarted,
		Module:   mm.address,
		EntityID: id,
		Actor:    caller,
		Amount:   m.Budget,
		Data:     map[string]any{"due_to": now + m.Duration},
	})
	return id, nil
}

func payouts(budget uint64, contributors []MilestoneContributor) []uint64 {
	out := make([]uint64, len(contributors))
	var sum uint64
	for i, c := range contributors {
		out[i] = mulDiv(budget, c.Salary, SalaryPrecision)
		sum += out[i]
	}
	if len(out) > 0 {
		out[0] += budget - sum
	}
	return out
}

// SubmitMilestone records a contributor's submission for a started
// milestone. The first submission wins; later ones are accepted and ignored
// until the milestone is declined.
func (mm *MilestoneManager) SubmitMilestone(caller Address, id uint64, data string) error {
	const op = "submit milestone"
	m, err := mm.milestone(op, id)
	if err != nil {
		return err
	}
	if !isMilestoneContributor(m, caller) {
		return fail(op, ErrNotContributor)
	}
	if !m.Started {
		return failf(op, ErrMilestoneNotStarted, "milestone %d", id)
	}
	if m.Completed {
		return failf(op, ErrMilestoneAlreadyCompleted, "milestone %d", id)
	}
	if data == "" {
		return fail(op, ErrInvalidSubmissionData)
	}
	if m.Submitted() {
		return nil
	}
	m.SubmissionData = data
	mm.workflow.emit(Event{
		Type:     EventMilestoneSubmitted,
		Module:   mm.address,
		EntityID: id,
		Actor:    caller,
		Data:     map[string]any{"submission_data": data},
	})
	return nil
}

// CompleteMilestone accepts a submitted milestone.
func (mm *MilestoneManager) CompleteMilestone(caller Address, id uint64) error {
	const op = "complete milestone"
	m, err := mm.reviewable(op, caller, id)
	if err != nil {
		return err
	}
	m.Completed = true
	mm.workflow.emit(Event{
		Type:     EventMilestoneCompleted,
		Module:   mm.address,
		EntityID: id,
		Actor:    caller,
	})
	return nil
}

// DeclineMilestone rejects a submission and waits for a new one.
func (mm *MilestoneManager) DeclineMilestone(caller Address, id uint64) error {
	const op = "decline milestone"
	m, err := mm.reviewable(op, caller, id)
	if err != nil {
		return err
	}
	m.SubmissionData = ""
	mm.workflow.emit(Event{
		Type:     EventMilestoneDeclined,
		Module:   mm.address,
		EntityID: id,
		Actor:    caller,
	})
	return nil
}

func (mm *MilestoneManager) reviewable(op string, caller Address, id uint64) (*Milestone, error) {
	if err := mm.onlyManager(op, caller); err != nil {
		return nil, err
	}
	m, err := mm.milestone(op, id)
	if err != nil {
		return nil, err
	}
	if m.Completed {
		return nil, failf(op, ErrMilestoneAlreadyCompleted, "milestone %d", id)
	}
	if !m.Submitted() {
		return nil, failf(op, ErrMilestoneNotSubmitted, "milestone %d", id)
	}
	return m, nil
}

// SetMilestoneUpdateTimelock sets how many seconds a milestone must stay
// unchanged before it may start. Owners only.
func (mm *MilestoneManager) SetMilestoneUpdateTimelock(caller Address, seconds int64) error {
	const op = "set milestone update timelock"
	if !mm.workflow.Authorizer().IsAuthorized(caller) {
		return fail(op, ErrNotAuthorized)
	}
	if seconds < 0 {
		return fail(op, ErrInvalidDuration)
	}
	mm.updateTimelock = seconds
	mm.workflow.emit(Event{
		Type:   EventMilestoneTimelockUpdated,
		Module: mm.address,
		Actor:  caller,
		Data:   map[string]any{"seconds": seconds},
	})
	return nil
}

// IsNextMilestoneActivatable reports whether StartNextMilestone would pass
// its scheduling checks now.
func (mm *MilestoneManager) IsNextMilestoneActivatable() bool {
	next := mm.list.Next(mm.activeID)
	if next == Sentinel {
		return false
	}
	now := mm.workflow.Now()
	if mm.HasActiveMilestone() {
		return false
	}
	return now-mm.milestones[next].LastUpdatedTimestamp >= mm.updateTimelock
}

// HasActiveMilestone reports whether a started milestone is still running:
// not completed and not past its start plus duration.
func (mm *MilestoneManager) HasActiveMilestone() bool {
	if mm.activeID == Sentinel {
		return false
	}
	m := mm.milestones[mm.activeID]
	return !m.Completed && mm.workflow.Now() < m.StartTimestamp+m.Duration
}

// ActiveMilestoneID returns the most recently started milestone, or false if
// none has started.
func (mm *MilestoneManager) ActiveMilestoneID() (uint64, bool) {
	if mm.activeID == Sentinel {
		return 0, false
	}
	return mm.activeID, true
}

// Milestone returns a copy of milestone id.
func (mm *MilestoneManager) Milestone(id uint64) (Milestone, error) {
	m, err := mm.milestone("get milestone", id)
	if err != nil {
		return Milestone{}, err
	}
	return m.clone(), nil
}

// ListMilestoneIDs returns ids in execution order.
func (mm *MilestoneManager) ListMilestoneIDs() []uint64 { return mm.list.IDs() }

// IsExistingMilestoneID reports whether id names a milestone in the list.
func (mm *MilestoneManager) IsExistingMilestoneID(id uint64) bool { return mm.list.Contains(id) }

// PreviousMilestoneID returns the predecessor of id, Sentinel for the first.
func (mm *MilestoneManager) PreviousMilestoneID(id uint64) (uint64, error) {
	prev, ok := mm.list.Previous(id)
	if !ok {
		return 0, failf("previous milestone", ErrMilestoneNotFound, "milestone %d", id)
	}
	return prev, nil
}

// IsContributor reports whether who is a contributor of milestone id.
func (mm *MilestoneManager) IsContributor(id uint64, who Address) bool {
	m, ok := mm.milestones[id]
	return ok && isMilestoneContributor(m, who)
}

func isMilestoneContributor(m *Milestone, who Address) bool {
	return slices.ContainsFunc(m.Contributors, func(c MilestoneContributor) bool { return c.Addr == who })
}

func (mm *MilestoneManager) milestone(op string, id uint64) (*Milestone, error) {
	m, ok := mm.milestones[id]
	if !ok {
		return nil, failf(op, ErrMilestoneNotFound, "milestone %d", id)
	}
	return m, nil
}

func (mm *MilestoneManager) validateInput(op string, in MilestoneInput) error {
	if in.Title == "" {
		return fail(op, ErrInvalidTitle)
	}
	if in.Details == "" {
		return fail(op, ErrInvalidDetails)
	}
	if in.Duration <= 0 {
		return fail(op, ErrInvalidDuration)
	}
	// The milestone's orders end at start + duration.
	if now := mm.workflow.Now(); in.Duration > math.MaxInt64-now {
		return failf(op, ErrInvalidDuration, "duration %d overflows the due date", in.Duration)
	}
	if in.Budget == 0 {
		return fail(op, ErrInvalidBudget)
	}
	n := len(in.Contributors)
	if n == 0 || n > MaximumContributors {
		return failf(op, ErrInvalidContributors, "%d contributors, want 1 to %d", n, MaximumContributors)
	}
	seen := make(map[Address]struct{}, n)
	var sum uint64
	for i, c := range in.Contributors {
		if mm.workflow.isReservedAddress(mm.address, c.Addr) {
			return failf(op, ErrInvalidRecipient, "contributor %d address %q", i, c.Addr)
		}
		if _, dup := seen[c.Addr]; dup {
			return failf(op, ErrDuplicateContributor, "%s", c.Addr)
		}
		seen[c.Addr] = struct{}{}
		if c.Salary == 0 || c.Salary > SalaryPrecision {
			return failf(op, ErrInvalidSalary, "contributor %d salary %d", i, c.Salary)
		}
		sum += c.Salary
	}
	if sum != SalaryPrecision {
		return failf(op, ErrInvalidSalarySum, "salaries sum to %d, want %d", sum, SalaryPrecision)
	}
	return nil
}

func milestoneData(in MilestoneInput) map[string]any {
	return map[string]any{
		"title":        in.Title,
		"duration":     in.Duration,
		"contributors": len(in.Contributors),
	}
}
