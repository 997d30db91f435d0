package handlers

import (
	"net/http"
	"strconv"

	"orchestrator-backend/core/workflow"
	"orchestrator-backend/models"
	"orchestrator-backend/services"
)

// BountyHandler serves bounties and claims.
type BountyHandler struct {
	*BaseHandler
	workflow *services.WorkflowService
}

// NewBountyHandler creates a bounty handler
func NewBountyHandler(wf *services.WorkflowService) *BountyHandler {
	return &BountyHandler{BaseHandler: NewBaseHandler(), workflow: wf}
}

// HandleListBounties lists bounties.
// @Summary List bounties
// @Tags Bounties
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /api/bounties [get]
func (h *BountyHandler) HandleListBounties(w http.ResponseWriter, r *http.Request) {
	bounties := h.workflow.ListBounties()
	h.sendList(w, bounties, len(bounties))
}

// HandleCreateBounty creates a bounty. Requires the BOUNTY_ISSUER role.
// @Summary Create bounty
// @Tags Bounties
// @Accept json
// @Produce json
// @Param body body models.BountyRequest true "bounty"
// @Success 201 {object} models.APIResponse
// @Router /api/bounties [post]
func (h *BountyHandler) HandleCreateBounty(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req models.BountyRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	b, err := h.workflow.AddBounty(r.Context(), caller, req)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendCreated(w, b)
}

// HandleGetBounty returns one bounty.
// @Summary Get bounty
// @Tags Bounties
// @Produce json
// @Param id path int true "bounty id"
// @Router /api/bounties/{id} [get]
func (h *BountyHandler) HandleGetBounty(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.workflow.GetBounty(id)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, b)
}

// HandleUpdateBounty updates an unlocked bounty.
// @Summary Update bounty
// @Tags Bounties
// @Accept json
// @Param id path int true "bounty id"
// @Param body body models.BountyRequest true "bounty"
// @Router /api/bounties/{id} [put]
func (h *BountyHandler) HandleUpdateBounty(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.BountyRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	b, err := h.workflow.UpdateBounty(r.Context(), caller, id, req)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, b)
}

// HandleLockBounty locks a bounty without paying a claim.
// @Summary Lock bounty
// @Tags Bounties
// @Param id path int true "bounty id"
// @Router /api/bounties/{id}/lock [post]
func (h *BountyHandler) HandleLockBounty(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.workflow.LockBounty(r.Context(), caller, id)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, b)
}

// HandleListClaims lists claims, optionally by contributor or bounty.
// @Summary List claims
// @Tags Claims
// @Param contributor query string false "contributor address"
// @Param bounty query int false "bounty id"
// @Router /api/claims [get]
func (h *BountyHandler) HandleListClaims(w http.ResponseWriter, r *http.Request) {
	filter := services.ClaimFilter{Contributor: workflow.NormalizeAddress(r.URL.Query().Get("contributor"))}
	if raw := r.URL.Query().Get("bounty"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "invalid bounty")
			return
		}
		filter.BountyID = id
	}
	claims := h.workflow.ListClaims(filter)
	h.sendList(w, claims, len(claims))
}

// HandleCreateClaim proposes a claim. Requires the CLAIMANT role.
// @Summary Create claim
// @Tags Claims
// @Accept json
// @Param body body models.ClaimRequest true "claim"
// @Router /api/claims [post]
func (h *BountyHandler) HandleCreateClaim(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req models.ClaimRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	c, err := h.workflow.AddClaim(r.Context(), caller, req)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendCreated(w, c)
}

// HandleGetClaim returns one claim.
// @Summary Get claim
// @Tags Claims
// @Param id path int true "claim id"
// @Router /api/claims/{id} [get]
func (h *BountyHandler) HandleGetClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.workflow.GetClaim(id)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, c)
}

// HandleUpdateClaim updates a claim. With only details set the contributor
// list is kept.
// @Summary Update claim
// @Tags Claims
// @Accept json
// @Param id path int true "claim id"
// @Param body body models.ClaimRequest true "claim"
// @Router /api/claims/{id} [put]
func (h *BountyHandler) HandleUpdateClaim(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.ClaimRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	var (
		c   workflow.Claim
		err error
	)
	if req.BountyID == 0 && len(req.Contributors) == 0 {
		c, err = h.workflow.UpdateClaimDetails(r.Context(), caller, id, req.Details)
	} else {
		c, err = h.workflow.UpdateClaim(r.Context(), caller, id, req)
	}
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, c)
}

// HandleVerifyClaim pays a claim and locks its bounty. Requires the VERIFIER role.
// @Summary Verify claim
// @Tags Claims
// @Accept json
// @Param id path int true "claim id"
// @Param body body models.VerifyClaimRequest true "bounty"
// @Router /api/claims/{id}/verify [post]
func (h *BountyHandler) HandleVerifyClaim(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.VerifyClaimRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	c, err := h.workflow.VerifyClaim(r.Context(), caller, id, req.BountyID)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, c)
}
