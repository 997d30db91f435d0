package handlers

import (
	"net/http"

	"orchestrator-backend/models"
	"orchestrator-backend/services"
)

// MilestoneHandler serves the milestone schedule.
type MilestoneHandler struct {
	*BaseHandler
	workflow *services.WorkflowService
}

// NewMilestoneHandler creates a milestone handler
func NewMilestoneHandler(wf *services.WorkflowService) *MilestoneHandler {
	return &MilestoneHandler{BaseHandler: NewBaseHandler(), workflow: wf}
}

// HandleListMilestones lists milestones with the activation state.
// @Summary List milestones
// @Tags Milestones
// @Produce json
// @Router /api/milestones [get]
func (h *MilestoneHandler) HandleListMilestones(w http.ResponseWriter, r *http.Request) {
	h.sendSuccess(w, h.workflow.ListMilestones())
}

// HandleCreateMilestone appends a milestone.
// @Summary Create milestone
// @Tags Milestones
// @Accept json
// @Param body body models.MilestoneRequest true "milestone"
// @Router /api/milestones [post]
func (h *MilestoneHandler) HandleCreateMilestone(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req models.MilestoneRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	m, err := h.workflow.AddMilestone(r.Context(), caller, req)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendCreated(w, m)
}

// HandleGetMilestone returns one milestone.
// @Summary Get milestone
// @Tags Milestones
// @Param id path int true "milestone id"
// @Router /api/milestones/{id} [get]
func (h *MilestoneHandler) HandleGetMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	m, err := h.workflow.GetMilestone(id)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, m)
}

// HandleUpdateMilestone edits a milestone that has not started.
// @Summary Update milestone
// @Tags Milestones
// @Accept json
// @Param id path int true "milestone id"
// @Param body body models.MilestoneRequest true "milestone"
// @Router /api/milestones/{id} [put]
func (h *MilestoneHandler) HandleUpdateMilestone(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.MilestoneRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	m, err := h.workflow.UpdateMilestone(r.Context(), caller, id, req)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, m)
}

// HandleDeleteMilestone removes a milestone that has not started.
// @Summary Remove milestone
// @Tags Milestones
// @Param id path int true "milestone id"
// @Router /api/milestones/{id} [delete]
func (h *MilestoneHandler) HandleDeleteMilestone(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.workflow.RemoveMilestone(r.Context(), caller, id); err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, map[string]interface{}{"removed": id})
}

// HandleStartNext activates the next milestone.
// @Summary Start next milestone
// @Tags Milestones
// @Router /api/milestones/start-next [post]
func (h *MilestoneHandler) HandleStartNext(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	m, err := h.workflow.StartNextMilestone(r.Context(), caller)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, m)
}

// HandleSubmit records a contributor submission.
// @Summary Submit milestone
// @Tags Milestones
// @Accept json
// @Param id path int true "milestone id"
// @Param body body models.SubmitMilestoneRequest true "submission"
// @Router /api/milestones/{id}/submit [post]
func (h *MilestoneHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.SubmitMilestoneRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	m, err := h.workflow.SubmitMilestone(r.Context(), caller, id, req.SubmissionData)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, m)
}

// HandleComplete accepts a submitted milestone.
// @Summary Complete milestone
// @Tags Milestones
// @Param id path int true "milestone id"
// @Router /api/milestones/{id}/complete [post]
func (h *MilestoneHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	m, err := h.workflow.CompleteMilestone(r.Context(), caller, id)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, m)
}

// HandleDecline rejects a submitted milestone.
// @Summary Decline milestone
// @Tags Milestones
// @Param id path int true "milestone id"
// @Router /api/milestones/{id}/decline [post]
func (h *MilestoneHandler) HandleDecline(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	m, err := h.workflow.DeclineMilestone(r.Context(), caller, id)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, m)
}

// HandleSetTimelock sets the milestone update timelock. Owners only.
// @Summary Set milestone update timelock
// @Tags Milestones
// @Accept json
// @Param body body models.TimelockRequest true "timelock"
// @Router /api/milestones/timelock [put]
func (h *MilestoneHandler) HandleSetTimelock(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req models.TimelockRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if err := h.workflow.SetMilestoneUpdateTimelock(r.Context(), caller, req.Seconds); err != nil {
		h.sendWorkflowError(w, err)
		return
	}
	h.sendSuccess(w, map[string]interface{}{"update_timelock": req.Seconds})
}
