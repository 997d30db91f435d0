package services

import (
	"context"

	"orchestrator-backend/core/workflow"
	"orchestrator-backend/models"
)

// ClaimFilter narrows ListClaims.
type ClaimFilter struct {
	Contributor workflow.Address
	BountyID    uint64
}

func toBountyContributors(in []models.ClaimContributor) []workflow.BountyContributor {
	out := make([]workflow.BountyContributor, 0, len(in))
	for _, c := range in {
		out = append(out, workflow.BountyContributor{
			Addr:        workflow.NormalizeAddress(c.Address),
			ClaimAmount: c.ClaimAmount,
		})
	}
	return out
}

// AddBounty creates a bounty. The caller needs the bounty issuer role.
func (s *WorkflowService) AddBounty(ctx context.Context, caller workflow.Address, req models.BountyRequest) (workflow.Bounty, error) {
	var b workflow.Bounty
	err := s.transact(ctx, func() error {
		id, err := s.bounties.AddBounty(caller, req.MinimumPayoutAmount, req.MaximumPayoutAmount, req.Details)
		if err != nil {
			return err
		}
		b, err = s.bounties.Bounty(id)
		return err
	})
	return b, err
}

// UpdateBounty replaces the payout range and details of an unlocked bounty.
func (s *WorkflowService) UpdateBounty(ctx context.Context, caller workflow.Address, id uint64, req models.BountyRequest) (workflow.Bounty, error) {
	var b workflow.Bounty
	err := s.transact(ctx, func() error {
		if err := s.bounties.UpdateBounty(caller, id, req.MinimumPayoutAmount, req.MaximumPayoutAmount, req.Details); err != nil {
			return err
		}
		var err error
		b, err = s.bounties.Bounty(id)
		return err
	})
	return b, err
}

// LockBounty locks a bounty without paying a claim.
func (s *WorkflowService) LockBounty(ctx context.Context, caller workflow.Address, id uint64) (workflow.Bounty, error) {
	var b workflow.Bounty
	err := s.transact(ctx, func() error {
		if err := s.bounties.LockBounty(caller, id); err != nil {
			return err
		}
		var err error
		b, err = s.bounties.Bounty(id)
		return err
	})
	return b, err
}

// GetBounty returns one bounty.
func (s *WorkflowService) GetBounty(id uint64) (b workflow.Bounty, err error) {
	s.wf.View(func() { b, err = s.bounties.Bounty(id) })
	return b, err
}

// ListBounties returns all bounties in creation order.
func (s *WorkflowService) ListBounties() []workflow.Bounty {
	var out []workflow.Bounty
	s.wf.View(func() {
		for _, id := range s.bounties.ListBountyIDs() {
			if b, err := s.bounties.Bounty(id); err == nil {
				out = append(out, b)
			}
		}
	})
	return out
}

// AddClaim proposes a split of a bounty. The caller needs the claimant role.
func (s *WorkflowService) AddClaim(ctx context.Context, caller workflow.Address, req models.ClaimRequest) (workflow.Claim, error) {
	var c workflow.Claim
	err := s.transact(ctx, func() error {
		id, err := s.bounties.AddClaim(caller, req.BountyID, toBountyContributors(req.Contributors), req.Details)
		if err != nil {
			return err
		}
		c, err = s.bounties.Claim(id)
		return err
	})
	return c, err
}

// UpdateClaim replaces the bounty, contributors and details of a claim. Only
// a current contributor of the claim may update it.
func (s *WorkflowService) UpdateClaim(ctx context.Context, caller workflow.Address, id uint64, req models.ClaimRequest) (workflow.Claim, error) {
	var c workflow.Claim
	err := s.transact(ctx, func() error {
		if err := s.bounties.UpdateClaim(caller, id, req.BountyID, toBountyContributors(req.Contributors), req.Details); err != nil {
			return err
		}
		var err error
		c, err = s.bounties.Claim(id)
		return err
	})
	return c, err
}

// UpdateClaimDetails replaces only the details of a claim.
func (s *WorkflowService) UpdateClaimDetails(ctx context.Context, caller workflow.Address, id uint64, details string) (workflow.Claim, error) {
	var c workflow.Claim
	err := s.transact(ctx, func() error {
		if err := s.bounties.UpdateClaimDetails(caller, id, details); err != nil {
			return err
		}
		var err error
		c, err = s.bounties.Claim(id)
		return err
	})
	return c, err
}

// VerifyClaim pays a claim and locks its bounty. The caller needs the
// verifier role.
func (s *WorkflowService) VerifyClaim(ctx context.Context, caller workflow.Address, claimID, bountyID uint64) (workflow.Claim, error) {
	var c workflow.Claim
	err := s.transact(ctx, func() error {
		if err := s.bounties.VerifyClaim(caller, claimID, bountyID); err != nil {
			return err
		}
		var err error
		c, err = s.bounties.Claim(claimID)
		return err
	})
	return c, err
}

// GetClaim returns one claim.
func (s *WorkflowService) GetClaim(id uint64) (c workflow.Claim, err error) {
	s.wf.View(func() { c, err = s.bounties.Claim(id) })
	return c, err
}

// ListClaims returns the claims matching f in id order.
func (s *WorkflowService) ListClaims(f ClaimFilter) []workflow.Claim {
	var out []workflow.Claim
	s.wf.View(func() {
		ids := s.bounties.ListClaimIDs()
		if !f.Contributor.IsZero() {
			ids = s.bounties.ListClaimIDsForContributorAddress(f.Contributor)
		}
		for _, id := range ids {
			c, err := s.bounties.Claim(id)
			if err != nil {
				continue
			}
			if f.BountyID != 0 && c.BountyID != f.BountyID {
				continue
			}
			out = append(out, c)
		}
	})
	return out
}
