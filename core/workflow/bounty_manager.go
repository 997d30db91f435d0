package workflow

import (
	"errors"
	"slices"
)

// BountyContributor is one share of a claim.
type BountyContributor struct {
	Addr        Address `json:"addr"`
	ClaimAmount uint64  `json:"claim_amount"`
}

// Bounty is a reward range that can be claimed once.
type Bounty struct {
	ID                  uint64 `json:"id"`
	MinimumPayoutAmount uint64 `json:"minimum_payout_amount"`
	MaximumPayoutAmount uint64 `json:"maximum_payout_amount"`
	Details             string `json:"details"`
	Locked              bool   `json:"locked"`
	// ClaimID is the verified claim that locked the bounty, 0 otherwise.
	ClaimID uint64 `json:"claim_id"`
}

// Claim proposes how a bounty's reward is split among contributors.
type Claim struct {
	ID           uint64              `json:"id"`
	BountyID     uint64              `json:"bounty_id"`
	Contributors []BountyContributor `json:"contributors"`
	Details      string              `json:"details"`
	Claimed      bool                `json:"claimed"`
}

func (c Claim) clone() Claim {
	c.Contributors = slices.Clone(c.Contributors)
	return c
}

// BountyManager keeps bounty and claim registries and pays verified claims
// through the workflow's payment processor. It is a payment client.
type BountyManager struct {
	*PaymentOrderQueue

	nextBountyID uint64
	nextClaimID  uint64
	bounties     map[uint64]*Bounty
	claims       map[uint64]*Claim
	bountyIDs    *IDList
	claimIDs     *IDList
	// contributor address -> claim ids naming it, ascending
	contributorClaims map[Address][]uint64
}

// NewBountyManager creates a bounty manager and registers it with wf.
func NewBountyManager(address Address, wf *Workflow) (*BountyManager, error) {
	bm := &BountyManager{
		PaymentOrderQueue: NewPaymentOrderQueue(address, wf),
		nextBountyID:      1,
		nextClaimID:       1,
		bounties:          make(map[uint64]*Bounty),
		claims:            make(map[uint64]*Claim),
		bountyIDs:         NewIDList(),
		claimIDs:          NewIDList(),
		contributorClaims: make(map[Address][]uint64),
	}
	if err := wf.RegisterModule(address, bm, CapPaymentClient, CapBountyManager); err != nil {
		return nil, err
	}
	return bm, nil
}

func (bm *BountyManager) requireRole(op string, role Role, caller Address) error {
	if !bm.workflow.Authorizer().HasRole(bm.address, role, caller) {
		return failf(op, ErrMissingRole, "%s", role)
	}
	return nil
}

func validatePayoutRange(op string, minimum, maximum uint64) error {
	if minimum == 0 || maximum < minimum {
		return failf(op, ErrInvalidPayoutRange, "min %d max %d", minimum, maximum)
	}
	return nil
}

// AddBounty registers a new open bounty and returns its id.
func (bm *BountyManager) AddBounty(caller Address, minimum, maximum uint64, details string) (uint64, error) {
	const op = "add bounty"
	if err := bm.requireRole(op, RoleBountyIssuer, caller); err != nil {
		return 0, err
	}
	if err := validatePayoutRange(op, minimum, maximum); err != nil {
		return 0, err
	}
	id := bm.nextBountyID
	bm.nextBountyID++
	bm.bounties[id] = &Bounty{
		ID:                  id,
		MinimumPayoutAmount: minimum,
		MaximumPayoutAmount: maximum,
		Details:             details,
	}
	bm.bountyIDs.Add(id)
	bm.workflow.emit(Event{
		Type:     EventBountyAdded,
		Module:   bm.address,
		EntityID: id,
		Actor:    caller,
		Data: map[string]any{
			"minimum_payout_amount": minimum,
			"maximum_payout_amount": maximum,
			"details":               details,
		},
	})
	return id, nil
}

// UpdateBounty overwrites the payout range and details of an open bounty.
func (bm *BountyManager) UpdateBounty(caller Address, id, minimum, maximum uint64, details string) error {
	const op = "update bounty"
	if err := bm.requireRole(op, RoleBountyIssuer, caller); err != nil {
		return err
	}
	b, err := bm.bounty(op, id)
	if err != nil {
		return err
	}
	if b.Locked {
		return failf(op, ErrBountyLocked, "bounty %d", id)
	}
	if err := validatePayoutRange(op, minimum, maximum); err != nil {
		return err
	}
	b.MinimumPayoutAmount = minimum
	b.MaximumPayoutAmount = maximum
	b.Details = details
	bm.workflow.emit(Event{
		Type:     EventBountyUpdated,
		Module:   bm.address,
		EntityID: id,
		Actor:    caller,
		Data: map[string]any{
			"minimum_payout_amount": minimum,
			"maximum_payout_amount": maximum,
			"details":               details,
		},
	})
	return nil
}

// LockBounty closes a bounty without paying a claim.
func (bm *BountyManager) LockBounty(caller Address, id uint64) error {
	const op = "lock bounty"
	if err := bm.requireRole(op, RoleBountyIssuer, caller); err != nil {
		return err
	}
	b, err := bm.bounty(op, id)
	if err != nil {
		return err
	}
	if b.Locked {
		return failf(op, ErrBountyLocked, "bounty %d", id)
	}
	b.Locked = true
	bm.workflow.emit(Event{
		Type:     EventBountyLocked,
		Module:   bm.address,
		EntityID: id,
		Actor:    caller,
	})
	return nil
}

// AddClaim proposes a split of bounty bountyID and returns the claim id.
func (bm *BountyManager) AddClaim(caller Address, bountyID uint64, contributors []BountyContributor, details string) (uint64, error) {
	const op = "add claim"
	if err := bm.requireRole(op, RoleClaimant, caller); err != nil {
		return 0, err
	}
	b, err := bm.bounty(op, bountyID)
	if err != nil {
		return 0, err
	}
	if b.Locked {
		return 0, failf(op, ErrBountyLocked, "bounty %d", bountyID)
	}
	total, err := bm.validateContributors(op, b, contributors)
	if err != nil {
		return 0, err
	}

	id := bm.nextClaimID
	bm.nextClaimID++
	bm.claims[id] = &Claim{
		ID:           id,
		BountyID:     bountyID,
		Contributors: slices.Clone(contributors),
		Details:      details,
	}
	bm.claimIDs.Add(id)
	bm.indexContributors(id, contributors)
	bm.workflow.emit(Event{
		Type:     EventClaimAdded,
		Module:   bm.address,
		EntityID: id,
		Actor:    caller,
		Amount:   total,
		Data: map[string]any{
			"bounty_id":    bountyID,
			"contributors": len(contributors),
			"details":      details,
		},
	})
	return id, nil
}

// UpdateClaim replaces the bounty reference, contributors and details of an
// unverified claim. Only a current contributor of the claim may update it.
func (bm *BountyManager) UpdateClaim(caller Address, claimID, bountyID uint64, contributors []BountyContributor, details string) error {
	const op = "update claim"
	c, err := bm.claimForContributor(op, claimID, caller)
	if err != nil {
		return err
	}
	b, err := bm.bounty(op, bountyID)
	if err != nil {
		return err
	}
	if b.Locked {
		return failf(op, ErrBountyLocked, "bounty %d", bountyID)
	}
	total, err := bm.validateContributors(op, b, contributors)
	if err != nil {
		return err
	}

	bm.unindexContributors(claimID, c.Contributors)
	c.BountyID = bountyID
	c.Contributors = slices.Clone(contributors)
	c.Details = details
	bm.indexContributors(claimID, contributors)
	bm.workflow.emit(Event{
		Type:     EventClaimUpdated,
		Module:   bm.address,
		EntityID: claimID,
		Actor:    caller,
		Amount:   total,
		Data: map[string]any{
			"bounty_id":    bountyID,
			"contributors": len(contributors),
			"details":      details,
		},
	})
	return nil
}

// UpdateClaimDetails changes only the details of an unverified claim.
func (bm *BountyManager) UpdateClaimDetails(caller Address, claimID uint64, details string) error {
	const op = "update claim details"
	c, err := bm.claimForContributor(op, claimID, caller)
	if err != nil {
		return err
	}
	c.Details = details
	bm.workflow.emit(Event{
		Type:     EventClaimUpdated,
		Module:   bm.address,
		EntityID: claimID,
		Actor:    caller,
		Data:     map[string]any{"details": details},
	})
	return nil
}

// VerifyClaim pays claim claimID for bounty bountyID and locks the bounty.
// Every contributor gets an immediately vested payment order and the
// processor opens their wallets in the same step. On any failure nothing is
// locked and no order stays queued.
func (bm *BountyManager) VerifyClaim(caller Address, claimID, bountyID uint64) (err error) {
	const op = "verify claim"
	if err := bm.requireRole(op, RoleVerifier, caller); err != nil {
		return err
	}
	c, ok := bm.claims[claimID]
	if !ok {
		return failf(op, ErrClaimNotFound, "claim %d", claimID)
	}
	b, err := bm.bounty(op, bountyID)
	if err != nil {
		return err
	}
	if c.BountyID != bountyID {
		return failf(op, ErrClaimBountyMismatch, "claim %d belongs to bounty %d", claimID, c.BountyID)
	}
	if c.Claimed {
		return failf(op, ErrClaimAlreadyClaimed, "claim %d", claimID)
	}
	if b.Locked {
		return failf(op, ErrBountyLocked, "bounty %d", bountyID)
	}
	// The bounty range may have changed since the claim was filed.
	total, err := bm.validateContributors(op, b, c.Contributors)
	if err != nil {
		return err
	}
	processor := bm.workflow.PaymentProcessor()
	if processor == nil {
		return fail(op, ErrProcessorNotSet)
	}

	s := bm.workflow.begin()
	defer func() { s.end(err) }()

	now := bm.workflow.Now()
	orders := make([]PaymentOrder, 0, len(c.Contributors))
	for _, contributor := range c.Contributors {
		orders = append(orders, PaymentOrder{
			Recipient: contributor.Addr,
			Amount:    contributor.ClaimAmount,
			CreatedAt: now,
			DueTo:     now,
		})
	}

	required := bm.outstanding + total
	if required < total {
		return fail(op, ErrAmountOverflow)
	}
	if err := bm.ensureTokenAllowance(op, processor.Address(), required); err != nil {
		return err
	}
	pulled, err := bm.ensureTokenBalance(op, required)
	if err != nil {
		return err
	}
	if err = bm.addPaymentOrders(op, orders); err == nil {
		if err = processor.ProcessPayments(bm.address, bm); err != nil {
			bm.rollback(len(orders), total)
		}
	}
	if err != nil {
		return errors.Join(err, bm.returnPulled(op, pulled))
	}

	c.Claimed = true
	b.Locked = true
	b.ClaimID = claimID
	bm.workflow.emit(Event{
		Type:     EventClaimVerified,
		Module:   bm.address,
		EntityID: claimID,
		Actor:    caller,
		Amount:   total,
		Data:     map[string]any{"bounty_id": bountyID},
	})
	bm.workflow.emit(Event{
		Type:     EventBountyLocked,
		Module:   bm.address,
		EntityID: bountyID,
		Actor:    caller,
		Data:     map[string]any{"claim_id": claimID},
	})
	return nil
}

// validateContributors checks a contributor list against bounty b and returns
// the payout sum.
func (bm *BountyManager) validateContributors(op string, b *Bounty, contributors []BountyContributor) (uint64, error) {
	if len(contributors) == 0 {
		return 0, fail(op, ErrInvalidContributors)
	}
	seen := make(map[Address]struct{}, len(contributors))
	var total uint64
	for i, c := range contributors {
		if bm.workflow.isReservedAddress(bm.address, c.Addr) {
			return 0, failf(op, ErrInvalidRecipient, "contributor %d address %q", i, c.Addr)
		}
		if _, dup := seen[c.Addr]; dup {
			return 0, failf(op, ErrDuplicateContributor, "%s", c.Addr)
		}
		seen[c.Addr] = struct{}{}
		if c.ClaimAmount == 0 {
			return 0, failf(op, ErrInvalidClaimAmount, "contributor %d", i)
		}
		next := total + c.ClaimAmount
		if next < total {
			return 0, fail(op, ErrAmountOverflow)
		}
		total = next
	}
	if total < b.MinimumPayoutAmount || total > b.MaximumPayoutAmount {
		return 0, failf(op, ErrPayoutSumOutOfRange, "sum %d not in [%d, %d]", total, b.MinimumPayoutAmount, b.MaximumPayoutAmount)
	}
	return total, nil
}

func (bm *BountyManager) bounty(op string, id uint64) (*Bounty, error) {
	b, ok := bm.bounties[id]
	if !ok {
		return nil, failf(op, ErrBountyNotFound, "bounty %d", id)
	}
	return b, nil
}

func (bm *BountyManager) claimForContributor(op string, claimID uint64, caller Address) (*Claim, error) {
	c, ok := bm.claims[claimID]
	if !ok {
		return nil, failf(op, ErrClaimNotFound, "claim %d", claimID)
	}
	if !slices.ContainsFunc(c.Contributors, func(bc BountyContributor) bool { return bc.Addr == caller }) {
		return nil, fail(op, ErrNotContributor)
	}
	if c.Claimed {
		return nil, failf(op, ErrClaimAlreadyClaimed, "claim %d", claimID)
	}
	return c, nil
}

func (bm *BountyManager) indexContributors(claimID uint64, contributors []BountyContributor) {
	for _, c := range contributors {
		ids := bm.contributorClaims[c.Addr]
		if i, found := slices.BinarySearch(ids, claimID); !found {
			bm.contributorClaims[c.Addr] = slices.Insert(ids, i, claimID)
		}
	}
}

func (bm *BountyManager) unindexContributors(claimID uint64, contributors []BountyContributor) {
	for _, c := range contributors {
		ids := bm.contributorClaims[c.Addr]
		if i, found := slices.BinarySearch(ids, claimID); found {
			ids = slices.Delete(ids, i, i+1)
		}
		if len(ids) == 0 {
			delete(bm.contributorClaims, c.Addr)
		} else {
			bm.contributorClaims[c.Addr] = ids
		}
	}
}

// Bounty returns a copy of bounty id.
func (bm *BountyManager) Bounty(id uint64) (Bounty, error) {
	b, err := bm.bounty("get bounty", id)
	if err != nil {
		return Bounty{}, err
	}
	return *b, nil
}

// Claim returns a copy of claim id.
func (bm *BountyManager) Claim(id uint64) (Claim, error) {
	c, ok := bm.claims[id]
	if !ok {
		return Claim{}, failf("get claim", ErrClaimNotFound, "claim %d", id)
	}
	return c.clone(), nil
}

// ListBountyIDs returns bounty ids in creation order.
func (bm *BountyManager) ListBountyIDs() []uint64 { return bm.bountyIDs.IDs() }

// ListClaimIDs returns claim ids in creation order.
func (bm *BountyManager) ListClaimIDs() []uint64 { return bm.claimIDs.IDs() }

// IsExistingBountyID reports whether id names a bounty.
func (bm *BountyManager) IsExistingBountyID(id uint64) bool { return bm.bountyIDs.Contains(id) }

// IsExistingClaimID reports whether id names a claim.
func (bm *BountyManager) IsExistingClaimID(id uint64) bool { return bm.claimIDs.Contains(id) }

// ListClaimIDsForContributorAddress returns the claims naming addr.
func (bm *BountyManager) ListClaimIDsForContributorAddress(addr Address) []uint64 {
	return slices.Clone(bm.contributorClaims[addr])
}
