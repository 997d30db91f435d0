package models

import "time"

// HealthResponse represents health check response
type HealthResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
	Store      string `json:"store,omitempty"`
	StoreError string `json:"store_error,omitempty"`
}

// BountyRequest creates or updates a bounty.
type BountyRequest struct {
	MinimumPayoutAmount uint64 `json:"minimum_payout_amount"`
	MaximumPayoutAmount uint64 `json:"maximum_payout_amount"`
	Details             string `json:"details"`
}

// ClaimContributor is one payee of a claim.
type ClaimContributor struct {
	Address     string `json:"address"`
	ClaimAmount uint64 `json:"claim_amount"`
}

// ClaimRequest creates or updates a claim.
type ClaimRequest struct {
	BountyID     uint64             `json:"bounty_id"`
	Contributors []ClaimContributor `json:"contributors"`
	Details      string             `json:"details"`
}

// ClaimDetailsRequest replaces the free-form details of a claim.
type ClaimDetailsRequest struct {
	Details string `json:"details"`
}

// VerifyClaimRequest names the bounty a claim is verified against.
type VerifyClaimRequest struct {
	BountyID uint64 `json:"bounty_id"`
}

// MilestoneContributor is one contributor of a milestone. Salary is a share
// of the budget in units of the salary precision.
type MilestoneContributor struct {
	Address string `json:"address"`
	Salary  uint64 `json:"salary"`
	Data    string `json:"data,omitempty"`
}

// MilestoneRequest creates or updates a milestone.
type MilestoneRequest struct {
	Title        string                 `json:"title"`
	Details      string                 `json:"details"`
	Duration     int64                  `json:"duration"`
	Budget       uint64                 `json:"budget"`
	Contributors []MilestoneContributor `json:"contributors"`
}

// SubmitMilestoneRequest carries the submission of a milestone contributor.
type SubmitMilestoneRequest struct {
	SubmissionData string `json:"submission_data"`
}

// TimelockRequest sets the milestone update timelock.
type TimelockRequest struct {
	Seconds int64 `json:"seconds"`
}

// FundingRequest deposits into or withdraws from the funding manager.
type FundingRequest struct {
	Amount uint64 `json:"amount"`
}

// RoleRequest grants or revokes a module-scoped role.
type RoleRequest struct {
	Module  string `json:"module"`
	Role    string `json:"role"`
	Address string `json:"address"`
}

// IssueKeyRequest asks for a new API key bound to a ledger address.
type IssueKeyRequest struct {
	Label   string `json:"label"`
	Address string `json:"address"`
}

// LoginRequest checks an API key.
type LoginRequest struct {
	APIKey string `json:"api_key"`
}

// ListResponse wraps a collection with its size.
type ListResponse struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
}

// ErrorResponse represents API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Hint      string `json:"hint,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// APIResponse represents a generic API response
type APIResponse struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Error   *ErrorResponse         `json:"error,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) *APIResponse {
	return &APIResponse{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(error string, code int) *APIResponse {
	return &APIResponse{
		Success: false,
		Error: &ErrorResponse{
			Error:     error,
			Message:   error,
			Code:      code,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// NewErrorResponseWithKind creates an error response tagged with the
// workflow error kind so clients can tell retryable failures apart.
func NewErrorResponseWithKind(error string, code int, kind string, retryable bool) *APIResponse {
	resp := NewErrorResponse(error, code)
	resp.Error.Kind = kind
	if retryable {
		resp.Error.Hint = "retry later"
	}
	return resp
}

// NewSuccessResponseWithMeta creates a success response with metadata
func NewSuccessResponseWithMeta(data interface{}, meta map[string]interface{}) *APIResponse {
	return &APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	}
}
