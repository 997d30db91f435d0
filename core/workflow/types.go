package workflow

import "strings"

// Address identifies an account on the token ledger or a module of the workflow.
type Address string

// ZeroAddress is the unset address. It is never a valid payment recipient.
const ZeroAddress Address = ""

// NormalizeAddress trims and lower-cases a raw address so lookups are case-insensitive.
func NormalizeAddress(raw string) Address {
	return Address(strings.ToLower(strings.TrimSpace(raw)))
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == ZeroAddress }

func (a Address) String() string { return string(a) }

// PaymentOrder is a single payment obligation produced by a payment client.
// Orders are never mutated after creation.
type PaymentOrder struct {
	Recipient Address `json:"recipient"`
	Amount    uint64  `json:"amount"`
	CreatedAt int64   `json:"created_at"`
	DueTo     int64   `json:"due_to"`
}

// Role is a module-scoped permission checked through the authorizer.
type Role string

const (
	RoleBountyIssuer     Role = "BOUNTY_ISSUER"
	RoleClaimant         Role = "CLAIMANT"
	RoleVerifier         Role = "VERIFIER"
	RoleMilestoneManager Role = "MILESTONE_MANAGER"
)

// ParseRole maps a role name, in any case, to a known Role.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	switch r {
	case RoleBountyIssuer, RoleClaimant, RoleVerifier, RoleMilestoneManager:
		return r, nil
	}
	return "", failf("parse role", ErrInvalidRole, "%q", raw)
}

// Capability tags what a registered module can do. Modules declare their
// capabilities when they are registered with the workflow.
type Capability string

const (
	CapPaymentClient    Capability = "payment_client"
	CapPaymentProcessor Capability = "payment_processor"
	CapBountyManager    Capability = "bounty_manager"
	CapMilestoneManager Capability = "milestone_manager"
	CapFundingManager   Capability = "funding_manager"
)
