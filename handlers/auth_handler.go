package handlers

import (
	"net/http"
	"strings"

	"orchestrator-backend/core/workflow"
	"orchestrator-backend/models"
	"orchestrator-backend/services"
	auth "orchestrator-backend/storage/auth"
)

// APIKeyHandler issues API keys bound to ledger addresses.
type APIKeyHandler struct {
	*BaseHandler
	issuer    auth.APIKeyIssuer
	validator auth.APIKeyValidator
	workflow  *services.WorkflowService
}

// NewAPIKeyHandler builds an APIKeyHandler with separate issuer/validator implementations.
func NewAPIKeyHandler(issuer auth.APIKeyIssuer, validator auth.APIKeyValidator, wf *services.WorkflowService) *APIKeyHandler {
	return &APIKeyHandler{BaseHandler: NewBaseHandler(), issuer: issuer, validator: validator, workflow: wf}
}

// HandleIssue issues a new API key acting as the given address. Only
// workflow owners may issue keys.
// Request: {"label":"ci","address":"0xalice"}
// @Summary Issue API key
// @Tags Auth
// @Accept json
// @Param body body models.IssueKeyRequest true "key"
// @Router /api/auth/keys [post]
func (h *APIKeyHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if !h.workflow.IsAuthorized(caller) {
		h.sendWorkflowError(w, workflow.ErrNotAuthorized)
		return
	}

	var body models.IssueKeyRequest
	if err := h.parseJSON(r, &body); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json")
		return
	}
	address := workflow.NormalizeAddress(body.Address)
	if address.IsZero() {
		h.sendError(w, http.StatusBadRequest, "address required")
		return
	}

	rec, err := h.issuer.Issue(strings.TrimSpace(body.Label), address, "api")
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to issue api key")
		return
	}

	h.sendCreated(w, map[string]interface{}{
		"id":         rec.ID,
		"api_key":    rec.Key,
		"label":      rec.Label,
		"address":    rec.Address,
		"created_at": rec.CreatedAt,
	})
}

// HandleLogin verifies an existing API key.
// Request: {"api_key":"..."}
// Response: {"valid": true, "address": "0x..."}
// @Summary Check API key
// @Tags Auth
// @Accept json
// @Param body body models.LoginRequest true "key"
// @Router /api/auth/login [post]
func (h *APIKeyHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body models.LoginRequest
	if err := h.parseJSON(r, &body); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json")
		return
	}

	rec, ok := h.validator.Get(strings.TrimSpace(body.APIKey))
	if !ok {
		h.sendError(w, http.StatusForbidden, "invalid api key")
		return
	}

	h.sendSuccess(w, map[string]interface{}{
		"valid":   true,
		"address": rec.Address,
		"owner":   h.workflow.IsAuthorized(rec.Address),
	})
}

// HandleWhoAmI returns the caller bound to the request's key.
// @Summary Current caller
// @Tags Auth
// @Router /api/auth/me [get]
func (h *APIKeyHandler) HandleWhoAmI(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	h.sendSuccess(w, map[string]interface{}{
		"address": caller,
		"owner":   h.workflow.IsAuthorized(caller),
	})
}
