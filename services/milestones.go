package services

import (
	"context"

	"orchestrator-backend/core/workflow"
	"orchestrator-backend/models"
)

// MilestoneOverview is the milestone list plus the scheduling state.
type MilestoneOverview struct {
	Milestones        []workflow.Milestone `json:"milestones"`
	ActiveMilestoneID uint64               `json:"active_milestone_id,omitempty"`
	HasActive         bool                 `json:"has_active_milestone"`
	NextActivatable   bool                 `json:"next_milestone_activatable"`
	UpdateTimelock    int64                `json:"update_timelock"`
	SalaryPrecision   uint64               `json:"salary_precision"`
}

func toMilestoneInput(req models.MilestoneRequest) workflow.MilestoneInput {
	in := workflow.MilestoneInput{
		Title:    req.Title,
		Details:  req.Details,
		Duration: req.Duration,
		Budget:   req.Budget,
	}
	for _, c := range req.Contributors {
		in.Contributors = append(in.Contributors, workflow.MilestoneContributor{
			Addr:   workflow.NormalizeAddress(c.Address),
			Salary: c.Salary,
			Data:   c.Data,
		})
	}
	return in
}

// AddMilestone appends a milestone to the schedule.
func (s *WorkflowService) AddMilestone(ctx context.Context, caller workflow.Address, req models.MilestoneRequest) (workflow.Milestone, error) {
	var m workflow.Milestone
	err := s.transact(ctx, func() error {
		id, err := s.milestones.AddMilestone(caller, toMilestoneInput(req))
		if err != nil {
			return err
		}
		m, err = s.milestones.Milestone(id)
		return err
	})
	return m, err
}

// UpdateMilestone replaces the editable fields of a milestone that has not started.
func (s *WorkflowService) UpdateMilestone(ctx context.Context, caller workflow.Address, id uint64, req models.MilestoneRequest) (workflow.Milestone, error) {
	var m workflow.Milestone
	err := s.transact(ctx, func() error {
		if err := s.milestones.UpdateMilestone(caller, id, toMilestoneInput(req)); err != nil {
			return err
		}
		var err error
		m, err = s.milestones.Milestone(id)
		return err
	})
	return m, err
}

// RemoveMilestone unlinks a milestone that has not started.
func (s *WorkflowService) RemoveMilestone(ctx context.Context, caller workflow.Address, id uint64) error {
	return s.transact(ctx, func() error {
		prev, err := s.milestones.PreviousMilestoneID(id)
		if err != nil {
			return err
		}
		return s.milestones.RemoveMilestone(caller, prev, id)
	})
}

// StartNextMilestone activates the next milestone and streams its budget.
func (s *WorkflowService) StartNextMilestone(ctx context.Context, caller workflow.Address) (workflow.Milestone, error) {
	var m workflow.Milestone
	err := s.transact(ctx, func() error {
		id, err := s.milestones.StartNextMilestone(caller)
		if err != nil {
			return err
		}
		m, err = s.milestones.Milestone(id)
		return err
	})
	return m, err
}

// SubmitMilestone records a contributor's submission.
func (s *WorkflowService) SubmitMilestone(ctx context.Context, caller workflow.Address, id uint64, data string) (workflow.Milestone, error) {
	return s.milestoneStep(ctx, id, func() error { return s.milestones.SubmitMilestone(caller, id, data) })
}

// CompleteMilestone accepts a submitted milestone.
func (s *WorkflowService) CompleteMilestone(ctx context.Context, caller workflow.Address, id uint64) (workflow.Milestone, error) {
	return s.milestoneStep(ctx, id, func() error { return s.milestones.CompleteMilestone(caller, id) })
}

// DeclineMilestone rejects a submitted milestone so it can be resubmitted.
func (s *WorkflowService) DeclineMilestone(ctx context.Context, caller workflow.Address, id uint64) (workflow.Milestone, error) {
	return s.milestoneStep(ctx, id, func() error { return s.milestones.DeclineMilestone(caller, id) })
}

func (s *WorkflowService) milestoneStep(ctx context.Context, id uint64, step func() error) (workflow.Milestone, error) {
	var m workflow.Milestone
	err := s.transact(ctx, func() error {
		if err := step(); err != nil {
			return err
		}
		var err error
		m, err = s.milestones.Milestone(id)
		return err
	})
	return m, err
}

// SetMilestoneUpdateTimelock sets how long a milestone must stay unchanged
// before it can start. Owners only.
func (s *WorkflowService) SetMilestoneUpdateTimelock(ctx context.Context, caller workflow.Address, seconds int64) error {
	return s.transact(ctx, func() error { return s.milestones.SetMilestoneUpdateTimelock(caller, seconds) })
}

// GetMilestone returns one milestone.
func (s *WorkflowService) GetMilestone(id uint64) (m workflow.Milestone, err error) {
	s.wf.View(func() { m, err = s.milestones.Milestone(id) })
	return m, err
}

// ListMilestones returns the schedule in order with its activation state.
func (s *WorkflowService) ListMilestones() MilestoneOverview {
	var o MilestoneOverview
	s.wf.View(func() {
		for _, id := range s.milestones.ListMilestoneIDs() {
			if m, err := s.milestones.Milestone(id); err == nil {
				o.Milestones = append(o.Milestones, m)
			}
		}
		if id, ok := s.milestones.ActiveMilestoneID(); ok {
			o.ActiveMilestoneID = id
		}
		o.HasActive = s.milestones.HasActiveMilestone()
		o.NextActivatable = s.milestones.IsNextMilestoneActivatable()
		o.UpdateTimelock = s.milestones.UpdateTimelock()
		o.SalaryPrecision = s.milestones.SalaryPrecision()
	})
	return o
}
