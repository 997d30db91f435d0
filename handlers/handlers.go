package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"orchestrator-backend/core/workflow"
	"orchestrator-backend/middleware"
	"orchestrator-backend/models"
	"orchestrator-backend/services"
)

// BaseHandler provides common functionality for all handlers
type BaseHandler struct{}

// NewBaseHandler creates a new base handler
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// sendJSON sends a JSON response
func (h *BaseHandler) sendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// sendError sends an error response
func (h *BaseHandler) sendError(w http.ResponseWriter, statusCode int, message string) {
	errorResp := models.NewErrorResponse(message, statusCode)
	h.sendJSON(w, statusCode, errorResp)
}

// sendSuccess sends a success response
func (h *BaseHandler) sendSuccess(w http.ResponseWriter, data interface{}) {
	successResp := models.NewSuccessResponse(data)
	h.sendJSON(w, http.StatusOK, successResp)
}

// sendCreated sends a success response with 201
func (h *BaseHandler) sendCreated(w http.ResponseWriter, data interface{}) {
	h.sendJSON(w, http.StatusCreated, models.NewSuccessResponse(data))
}

// sendList sends a collection with its size
func (h *BaseHandler) sendList(w http.ResponseWriter, items interface{}, total int) {
	h.sendSuccess(w, models.ListResponse{Items: items, Total: total})
}

// statusForKind maps a workflow error kind to an HTTP status.
func statusForKind(k workflow.Kind) int {
	switch k {
	case workflow.KindAuthorization:
		return http.StatusForbidden
	case workflow.KindValidation:
		return http.StatusBadRequest
	case workflow.KindNotFound:
		return http.StatusNotFound
	case workflow.KindState:
		return http.StatusConflict
	case workflow.KindResource:
		return http.StatusPaymentRequired
	case workflow.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// sendWorkflowError reports a rejected workflow operation with the status of
// its kind.
func (h *BaseHandler) sendWorkflowError(w http.ResponseWriter, err error) {
	kind := workflow.KindOf(err)
	status := statusForKind(kind)
	if status == http.StatusInternalServerError {
		log.Printf("workflow operation failed: %v", err)
	}
	h.sendJSON(w, status, models.NewErrorResponseWithKind(err.Error(), status, kind.String(), workflow.IsRetryable(err)))
}

// parseJSON parses JSON from request
func (h *BaseHandler) parseJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body required")
		}
		return err
	}
	return nil
}

// caller returns the acting address bound to the request's API key.
func (h *BaseHandler) caller(w http.ResponseWriter, r *http.Request) (workflow.Address, bool) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		h.sendError(w, http.StatusUnauthorized, "API key required")
	}
	return caller, ok
}

// pathID parses the uint64 path value name.
func (h *BaseHandler) pathID(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

// HealthHandler handles health check requests
type HealthHandler struct {
	*BaseHandler
	healthService *services.HealthService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(healthService *services.HealthService) *HealthHandler {
	return &HealthHandler{
		BaseHandler:   NewBaseHandler(),
		healthService: healthService,
	}
}

// HandleHealth handles health check requests
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /api/health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := h.healthService.GetHealthStatus(r.Context())
	h.sendSuccess(w, health)
}

// QRCodeHandler handles QR code generation requests
type QRCodeHandler struct {
	*BaseHandler
	qrService *services.QRCodeService
	workflow  *services.WorkflowService
}

// NewQRCodeHandler creates a new QR code handler
func NewQRCodeHandler(qrService *services.QRCodeService, wf *services.WorkflowService) *QRCodeHandler {
	return &QRCodeHandler{
		BaseHandler: NewBaseHandler(),
		qrService:   qrService,
		workflow:    wf,
	}
}

// HandleGenerateQRCode renders the claim link of a contributor as a PNG.
// @Summary Claim link QR code
// @Tags Payments
// @Produce png
// @Param client query string true "payment client (alias or address)"
// @Param contributor query string true "contributor address"
// @Router /api/qrcode [get]
func (h *QRCodeHandler) HandleGenerateQRCode(w http.ResponseWriter, r *http.Request) {
	clientRaw := r.URL.Query().Get("client")
	contributor := workflow.NormalizeAddress(r.URL.Query().Get("contributor"))
	if clientRaw == "" || contributor.IsZero() {
		h.sendError(w, http.StatusBadRequest, "client and contributor parameters required")
		return
	}
	client, err := h.workflow.ResolveClient(clientRaw)
	if err != nil {
		h.sendWorkflowError(w, err)
		return
	}

	qrData, err := h.qrService.GenerateClaimQRCode(client, contributor)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(qrData)
}
