package workflow

import (
	"errors"
	"fmt"
)

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

// Kind classifies a rejection so callers can decide whether to retry.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindValidation
	KindNotFound
	KindResource
	KindState
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindResource:
		return "resource"
	case KindState:
		return "state"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Authorization errors.
var (
	ErrNotAuthorized    = Err("caller not authorized")
	ErrNotProcessor     = Err("caller is not the payment processor")
	ErrNotModule        = Err("caller is not a workflow module")
	ErrNotClient        = Err("caller is not the payment client")
	ErrNotContributor   = Err("caller is not a contributor")
	ErrNotOrchestrator  = Err("caller is not the workflow")
	ErrMissingRole      = Err("caller lacks the required role")
	ErrNotClaimant      = Err("caller is not a contributor of the claim")
	ErrInvalidModuleCap = Err("module does not declare the required capability")
)

// Validation errors.
var (
	ErrInvalidRecipient      = Err("invalid payment recipient")
	ErrInvalidAmount         = Err("invalid payment amount")
	ErrInvalidTimes          = Err("payment due date precedes creation")
	ErrAmountOverflow        = Err("amount overflows")
	ErrAmountExceedsOutstand = Err("paid amount exceeds outstanding amount")
	ErrInvalidPayoutRange    = Err("invalid bounty payout range")
	ErrInvalidContributors   = Err("invalid contributor list")
	ErrInvalidClaimAmount    = Err("invalid contributor claim amount")
	ErrDuplicateContributor  = Err("duplicate contributor address")
	ErrPayoutSumOutOfRange   = Err("claim total outside bounty payout range")
	ErrInvalidSalarySum      = Err("contributor salaries do not sum to precision")
	ErrInvalidSalary         = Err("invalid contributor salary")
	ErrInvalidTitle          = Err("invalid milestone title")
	ErrInvalidDetails        = Err("invalid details")
	ErrInvalidDuration       = Err("invalid duration")
	ErrInvalidBudget         = Err("invalid milestone budget")
	ErrInvalidSubmissionData = Err("invalid submission data")
	ErrInvalidPreviousID     = Err("previous id is not the predecessor")
	ErrInvalidAddress        = Err("invalid address")
	ErrInvalidRole           = Err("unknown role")
)

// Not found errors.
var (
	ErrBountyNotFound    = Err("bounty not found")
	ErrClaimNotFound     = Err("claim not found")
	ErrMilestoneNotFound = Err("milestone not found")
	ErrWalletNotFound    = Err("streaming wallet not found")
	ErrModuleNotFound    = Err("module not found")
	ErrProcessorNotSet   = Err("payment processor not configured")
	ErrFundingNotSet     = Err("funding manager not configured")
	ErrNoActivePayments  = Err("no active payments for contributor")
	ErrNothingToClaim    = Err("nothing to claim")
)

// Resource errors.
var (
	ErrInsufficientBalance = Err("insufficient token balance")
	ErrFundingPullFailed   = Err("could not pull funds from funding manager")
)

// State machine errors.
var (
	ErrBountyLocked              = Err("bounty already claimed")
	ErrClaimAlreadyClaimed       = Err("claim already verified")
	ErrClaimBountyMismatch       = Err("claim does not belong to bounty")
	ErrMilestoneAlreadyStarted   = Err("milestone already started")
	ErrMilestoneNotStarted       = Err("milestone not started")
	ErrMilestoneNotSubmitted     = Err("milestone not submitted")
	ErrMilestoneAlreadyCompleted = Err("milestone already completed")
	ErrMilestoneNotActivatable   = Err("next milestone not activatable")
	ErrModuleAlreadyRegistered   = Err("module already registered")
)

// External call errors.
var (
	ErrTransferFailed = Err("token transfer failed")
)

var kindOf = map[Err]Kind{
	ErrNotAuthorized:    KindAuthorization,
	ErrNotProcessor:     KindAuthorization,
	ErrNotModule:        KindAuthorization,
	ErrNotClient:        KindAuthorization,
	ErrNotContributor:   KindAuthorization,
	ErrNotOrchestrator:  KindAuthorization,
	ErrMissingRole:      KindAuthorization,
	ErrNotClaimant:      KindAuthorization,
	ErrInvalidModuleCap: KindAuthorization,

	ErrInvalidRecipient:      KindValidation,
	ErrInvalidAmount:         KindValidation,
	ErrInvalidTimes:          KindValidation,
	ErrAmountOverflow:        KindValidation,
	ErrAmountExceedsOutstand: KindValidation,
	ErrInvalidPayoutRange:    KindValidation,
	ErrInvalidContributors:   KindValidation,
	ErrInvalidClaimAmount:    KindValidation,
	ErrDuplicateContributor:  KindValidation,
	ErrPayoutSumOutOfRange:   KindValidation,
	ErrInvalidSalarySum:      KindValidation,
	ErrInvalidSalary:         KindValidation,
	ErrInvalidTitle:          KindValidation,
	ErrInvalidDetails:        KindValidation,
	ErrInvalidDuration:       KindValidation,
	ErrInvalidBudget:         KindValidation,
	ErrInvalidSubmissionData: KindValidation,
	ErrInvalidPreviousID:     KindValidation,
	ErrInvalidAddress:        KindValidation,
	ErrInvalidRole:           KindValidation,

	ErrBountyNotFound:    KindNotFound,
	ErrClaimNotFound:     KindNotFound,
	ErrMilestoneNotFound: KindNotFound,
	ErrWalletNotFound:    KindNotFound,
	ErrModuleNotFound:    KindNotFound,
	ErrProcessorNotSet:   KindNotFound,
	ErrFundingNotSet:     KindNotFound,
	ErrNoActivePayments:  KindNotFound,
	ErrNothingToClaim:    KindNotFound,

	ErrInsufficientBalance: KindResource,
	ErrFundingPullFailed:   KindResource,

	ErrBountyLocked:              KindState,
	ErrClaimAlreadyClaimed:       KindState,
	ErrClaimBountyMismatch:       KindState,
	ErrMilestoneAlreadyStarted:   KindState,
	ErrMilestoneNotStarted:       KindState,
	ErrMilestoneNotSubmitted:     KindState,
	ErrMilestoneAlreadyCompleted: KindState,
	ErrMilestoneNotActivatable:   KindState,
	ErrModuleAlreadyRegistered:   KindState,

	ErrTransferFailed: KindExternal,
}

// Error is a rejected operation. It unwraps to the sentinel Err.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// fail builds an *Error for op, classifying the sentinel.
func fail(op string, sentinel Err) error {
	return &Error{Kind: kindOf[sentinel], Op: op, Err: sentinel}
}

// failf is fail with extra context appended to the message.
func failf(op string, sentinel Err, format string, args ...any) error {
	return &Error{
		Kind: kindOf[sentinel],
		Op:   op,
		Err:  fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)),
	}
}

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	var sentinel Err
	if errors.As(err, &sentinel) {
		return kindOf[sentinel]
	}
	return KindUnknown
}

// IsRetryable reports whether the same call may succeed later without changing
// its input, e.g. after topping up a balance.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindResource, KindExternal:
		return true
	default:
		return false
	}
}
