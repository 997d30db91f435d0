package mcp

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"

	"orchestrator-backend/core/workflow"
)

// ToolError represents a structured error from tool execution
type ToolError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Tool       string      `json:"tool,omitempty"`
	Field      string      `json:"field,omitempty"`
	FieldValue interface{} `json:"field_value,omitempty"`
	Hint       string      `json:"hint,omitempty"`
	HttpStatus int         `json:"http_status,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Tool error codes
const (
	ErrCodeMissingRequired  = "MISSING_REQUIRED_FIELD"
	ErrCodeInvalidValue     = "INVALID_FIELD_VALUE"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeNotFound         = "RESOURCE_NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInsufficient     = "INSUFFICIENT_FUNDS"
	ErrCodeBadGateway       = "BAD_GATEWAY"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// NewFieldError reports a missing or malformed argument.
func NewFieldError(tool, field string, value interface{}, message string) *ToolError {
	code := ErrCodeInvalidValue
	if value == nil {
		code = ErrCodeMissingRequired
	}
	return &ToolError{
		Code:       code,
		Message:    message,
		Tool:       tool,
		Field:      field,
		FieldValue: value,
		HttpStatus: http.StatusBadRequest,
	}
}

// NewWorkflowToolError classifies a rejected workflow operation.
func NewWorkflowToolError(tool string, err error) *ToolError {
	te := &ToolError{Message: err.Error(), Tool: tool}
	switch workflow.KindOf(err) {
	case workflow.KindAuthorization:
		te.Code, te.HttpStatus = ErrCodeForbidden, http.StatusForbidden
		te.Hint = "the configured caller lacks the role for this operation"
	case workflow.KindValidation:
		te.Code, te.HttpStatus = ErrCodeValidationFailed, http.StatusBadRequest
	case workflow.KindNotFound:
		te.Code, te.HttpStatus = ErrCodeNotFound, http.StatusNotFound
	case workflow.KindState:
		te.Code, te.HttpStatus = ErrCodeConflict, http.StatusConflict
	case workflow.KindResource:
		te.Code, te.HttpStatus = ErrCodeInsufficient, http.StatusPaymentRequired
	case workflow.KindExternal:
		te.Code, te.HttpStatus = ErrCodeBadGateway, http.StatusBadGateway
	default:
		te.Code, te.HttpStatus = ErrCodeInternalError, http.StatusInternalServerError
	}
	if workflow.IsRetryable(err) {
		te.Hint = "retry later"
	}
	return te
}

// errorResult renders err as an MCP error result with a JSON body.
func errorResult(err *ToolError) *mcp.CallToolResult {
	body, jerr := json.Marshal(err)
	if jerr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(body))
}

// jsonResult renders v as indented JSON text.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}
