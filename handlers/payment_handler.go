package handlers

import (
	"context"
	"net/http"
	"strconv"

	"orchestrator-backend/core/workflow"
	"orchestrator-backend/models"
	"orchestrator-backend/services"
	"orchestrator-backend/storage/events"
)

// PaymentHandler serves streaming payments, funding, roles and the event log.
type PaymentHandler struct {
	*BaseHandler
	workflow *services.WorkflowService
}

// NewPaymentHandler creates a payment handler
func NewPaymentHandler(wf *services.WorkflowService) *PaymentHandler {
	return &PaymentHandler{BaseHandler: NewBaseHandler(), workflow: wf}
}

func (h *PaymentHandler) client(w http.ResponseWriter, r *http.Request) (workflow.Address, bool) {
	client, err := h.workflow.ResolveClient(r.PathValue("client"))
	if err != nil {
		h.sendWorkflowError(w, err)
		return workflow.ZeroAddress, false
	}
	return client, true
}

func retryParam(r *http.Request) bool {
	retry, _ := strconv.ParseBool(r.URL.Query().Get("retry"))
	return retry
}

// HandleGetClient returns a payment client's liability and receivers.
// @Summary Payment client state
// @Tags Payments
// @Param client path string true "payment client (alias or address)"
// @Router /api/payments/{client} [get]
func (h *PaymentHandler) HandleGetClient(w http.ResponseWriter, r *http.Request) {
	client, ok := h.client(w, r)
	if !ok {
		return
	}
	v, err := h.workflow.Client(client)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, v)
}

// HandleGetPayments returns the wallets of a contributor at a client.
// @Summary Contributor payments
// @Tags Payments
// @Param client path string true "payment client (alias or address)"
// @Param contributor path string true "contributor address"
// @Router /api/payments/{client}/{contributor} [get]
func (h *PaymentHandler) HandleGetPayments(w http.ResponseWriter, r *http.Request) {
	client, ok := h.client(w, r)
	if !ok {
		return
	}
	contributor := workflow.NormalizeAddress(r.PathValue("contributor"))
	h.sendSuccess(w, h.workflow.Payments(client, contributor))
}

// HandleClaimAll releases everything vested for the caller.
// @Summary Claim all vested payments
// @Tags Payments
// @Param client path string true "payment client (alias or address)"
// @Router /api/payments/{client}/claim [post]
func (h *PaymentHandler) HandleClaimAll(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	client, ok := h.client(w, r)
	if !ok {
		return
	}
	v, err := h.workflow.ClaimAll(r.Context(), caller, client)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, v)
}

// HandleClaimWallet releases one wallet; retry=true also pays the unclaimable bucket.
// @Summary Claim one wallet
// @Tags Payments
// @Param client path string true "payment client (alias or address)"
// @Param walletId path int true "wallet id"
// @Param retry query bool false "include previously unclaimable amounts"
// @Router /api/payments/{client}/claim/{walletId} [post]
func (h *PaymentHandler) HandleClaimWallet(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	client, ok := h.client(w, r)
	if !ok {
		return
	}
	walletID, ok := h.pathID(w, r, "walletId")
	if !ok {
		return
	}
	v, err := h.workflow.ClaimWallet(r.Context(), caller, client, walletID, retryParam(r))
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, v)
}

// HandleClaimUnclaimable retries the caller's unclaimable bucket.
// @Summary Claim previously unclaimable amounts
// @Tags Payments
// @Param client path string true "payment client (alias or address)"
// @Router /api/payments/{client}/unclaimable [post]
func (h *PaymentHandler) HandleClaimUnclaimable(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	client, ok := h.client(w, r)
	if !ok {
		return
	}
	v, err := h.workflow.ClaimUnclaimable(r.Context(), caller, client)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, v)
}

// HandleRemovePayments stops a contributor's wallets at a client. Owners only.
// With walletId set only that wallet is removed.
// @Summary Remove payments
// @Tags Payments
// @Param client path string true "payment client (alias or address)"
// @Param contributor path string true "contributor address"
// @Param walletId query int false "wallet id"
// @Param retry query bool false "include previously unclaimable amounts"
// @Router /api/payments/{client}/{contributor} [delete]
func (h *PaymentHandler) HandleRemovePayments(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	client, ok := h.client(w, r)
	if !ok {
		return
	}
	contributor := workflow.NormalizeAddress(r.PathValue("contributor"))

	var err error
	if raw := r.URL.Query().Get("walletId"); raw != "" {
		walletID, perr := strconv.ParseUint(raw, 10, 64)
		if perr != nil {
			h.sendError(w, http.StatusBadRequest, "invalid walletId")
			return
		}
		err = h.workflow.RemoveWallet(r.Context(), caller, client, contributor, walletID, retryParam(r))
	} else {
		err = h.workflow.RemovePayments(r.Context(), caller, client, contributor)
	}
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, h.workflow.Payments(client, contributor))
}

// HandleGetFunding returns the funding manager state.
// @Summary Funding state
// @Tags Funding
// @Router /api/funding [get]
func (h *PaymentHandler) HandleGetFunding(w http.ResponseWriter, r *http.Request) {
	h.sendSuccess(w, h.workflow.Funding())
}

// HandleDeposit moves tokens from the caller into the funding manager.
// @Summary Deposit
// @Tags Funding
// @Accept json
// @Param body body models.FundingRequest true "amount"
// @Router /api/funding/deposit [post]
func (h *PaymentHandler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req models.FundingRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	ctx := r.Context()
	if err := h.workflow.Approve(ctx, caller, req.Amount); err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	v, err := h.workflow.Deposit(ctx, caller, req.Amount)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, v)
}

// HandleWithdraw returns tokens from the caller's deposit.
// @Summary Withdraw
// @Tags Funding
// @Accept json
// @Param body body models.FundingRequest true "amount"
// @Router /api/funding/withdraw [post]
func (h *PaymentHandler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req models.FundingRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	v, err := h.workflow.Withdraw(r.Context(), caller, req.Amount)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, v)
}

// HandleBalance returns the token balance of an address.
// @Summary Token balance
// @Tags Funding
// @Param address path string true "address"
// @Router /api/balances/{address} [get]
func (h *PaymentHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	addr := workflow.NormalizeAddress(r.PathValue("address"))
	h.sendSuccess(w, map[string]interface{}{
		"address": addr,
		"balance": h.workflow.Balance(addr),
		"symbol":  h.workflow.Ledger().Symbol(),
	})
}

// HandleGrantRole grants a module-scoped role. Owners only.
// @Summary Grant role
// @Tags Roles
// @Accept json
// @Param body body models.RoleRequest true "grant"
// @Router /api/roles [post]
func (h *PaymentHandler) HandleGrantRole(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, h.workflow.GrantRole)
}

// HandleRevokeRole revokes a module-scoped role. Owners only.
// @Summary Revoke role
// @Tags Roles
// @Accept json
// @Param body body models.RoleRequest true "grant"
// @Router /api/roles/revoke [post]
func (h *PaymentHandler) HandleRevokeRole(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, h.workflow.RevokeRole)
}

type roleChange func(ctx context.Context, caller workflow.Address, module, role, who string) error

func (h *PaymentHandler) changeRole(w http.ResponseWriter, r *http.Request, change roleChange) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req models.RoleRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if err := change(r.Context(), caller, req.Module, req.Role, req.Address); err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	granted, err := h.workflow.HasRole(req.Module, req.Role, req.Address)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, map[string]interface{}{
		"module":  req.Module,
		"role":    req.Role,
		"address": workflow.NormalizeAddress(req.Address),
		"granted": granted,
	})
}

// HandleListEvents lists persisted workflow events, newest first.
// @Summary Event log
// @Tags Events
// @Param type query string false "event type"
// @Param module query string false "module alias or address"
// @Param entity query int false "entity id"
// @Param address query string false "actor or subject address"
// @Param limit query int false "max records (default 100)"
// @Router /api/events [get]
func (h *PaymentHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := events.Filter{
		Type:    workflow.EventType(q.Get("type")),
		Address: workflow.NormalizeAddress(q.Get("address")).String(),
	}
	if raw := q.Get("module"); raw != "" {
		module, err := h.workflow.ResolveModule(raw)
		if err != nil {
			h.sendWorkflowError(w, err)
			return
		}
		filter.Module = module.String()
	}
	if raw := q.Get("entity"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "invalid entity")
			return
		}
		filter.EntityID = id
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.sendError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	recs, err := h.workflow.Events(r.Context(), filter)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	h.sendList(w, recs, len(recs))
}
