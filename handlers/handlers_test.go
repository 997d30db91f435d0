package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"orchestrator-backend/config"
	"orchestrator-backend/core/workflow"
	"orchestrator-backend/middleware"
	"orchestrator-backend/models"
	"orchestrator-backend/services"
)

func newTestService(t *testing.T) *services.WorkflowService {
	t.Helper()
	dep := config.DefaultDeployment()
	dep.Roles = []config.RoleGrant{{Module: "bounty_manager", Role: "BOUNTY_ISSUER", Address: "0xissuer"}}
	svc, err := services.NewWorkflowService(context.Background(), dep, nil, services.WorkflowOptions{
		Clock: workflow.NewManualClock(1_700_000_000),
	})
	if err != nil {
		t.Fatalf("NewWorkflowService failed: %v", err)
	}
	return svc
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *models.ErrorResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Success || resp.Error == nil {
		t.Fatalf("Expected an error response but got %s", rec.Body.String())
	}
	return resp.Error
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind workflow.Kind
		want int
	}{
		{workflow.KindAuthorization, http.StatusForbidden},
		{workflow.KindValidation, http.StatusBadRequest},
		{workflow.KindNotFound, http.StatusNotFound},
		{workflow.KindState, http.StatusConflict},
		{workflow.KindResource, http.StatusPaymentRequired},
		{workflow.KindExternal, http.StatusBadGateway},
		{workflow.KindUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := statusForKind(tt.kind); got != tt.want {
				t.Errorf("Expected %d but got %d", tt.want, got)
			}
		})
	}
}

func TestSendWorkflowErrorWrapped(t *testing.T) {
	h := NewBaseHandler()
	rec := httptest.NewRecorder()
	h.sendWorkflowError(rec, fmt.Errorf("paying claim 3: %w", workflow.ErrInsufficientBalance))

	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("Expected status 402 but got %d", rec.Code)
	}
	e := decodeError(t, rec)
	if e.Kind != "resource" || e.Code != http.StatusPaymentRequired {
		t.Errorf("Expected kind resource with code 402 but got %+v", e)
	}
	if !strings.Contains(e.Error, "paying claim 3") {
		t.Errorf("Expected the wrapped message but got %q", e.Error)
	}
}

func TestParseJSON(t *testing.T) {
	h := NewBaseHandler()
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"amount": 5}`, ""},
		{"empty", ``, "request body required"},
		{"unknown field", `{"amount": 5, "memo": "x"}`, "unknown field"},
		{"negative", `{"amount": -1}`, "cannot unmarshal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var req models.FundingRequest
			err := h.parseJSON(r, &req)
			if tt.wantErr == "" {
				if err != nil || req.Amount != 5 {
					t.Errorf("Expected amount 5 but got %d, %v", req.Amount, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q but got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPathID(t *testing.T) {
	h := NewBaseHandler()
	for _, raw := range []string{"0", "-1", "x"} {
		t.Run(raw, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.SetPathValue("id", raw)
			rec := httptest.NewRecorder()
			if _, ok := h.pathID(rec, r, "id"); ok {
				t.Fatal("Expected the id to be rejected")
			}
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400 but got %d", rec.Code)
			}
		})
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.SetPathValue("id", "42")
	if id, ok := h.pathID(httptest.NewRecorder(), r, "id"); !ok || id != 42 {
		t.Errorf("Expected 42 but got %d", id)
	}
}

func TestCreateBountyRequiresCaller(t *testing.T) {
	h := NewBountyHandler(newTestService(t))
	body := `{"minimum_payout_amount": 1, "maximum_payout_amount": 10, "details": "docs"}`

	rec := httptest.NewRecorder()
	h.HandleCreateBounty(rec, httptest.NewRequest(http.MethodPost, "/api/bounties", strings.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 but got %d", rec.Code)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/bounties", strings.NewReader(body))
	r = r.WithContext(middleware.WithCaller(r.Context(), "0xissuer"))
	rec = httptest.NewRecorder()
	h.HandleCreateBounty(rec, r)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201 but got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data workflow.Bounty `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Data.ID != 1 || resp.Data.Details != "docs" {
		t.Errorf("Expected bounty 1 but got %+v", resp.Data)
	}
}

func TestQRCodeHandlerParameters(t *testing.T) {
	svc := newTestService(t)
	h := NewQRCodeHandler(services.NewQRCodeService("http://localhost:3001"), svc)

	tests := []struct {
		query string
		want  int
	}{
		{"", http.StatusBadRequest},
		{"?client=bounty", http.StatusBadRequest},
		{"?client=processor&contributor=0xalice", http.StatusNotFound},
		{"?client=milestone&contributor=0xalice", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleGenerateQRCode(rec, httptest.NewRequest(http.MethodGet, "/api/qrcode"+tt.query, nil))
			if rec.Code != tt.want {
				t.Errorf("Expected status %d but got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestListEventsRejectsBadQuery(t *testing.T) {
	h := NewPaymentHandler(newTestService(t))
	for _, q := range []string{"?entity=x", "?limit=-3", "?module=nowhere"} {
		t.Run(q, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleListEvents(rec, httptest.NewRequest(http.MethodGet, "/api/events"+q, nil))
			if rec.Code < 400 {
				t.Errorf("Expected an error status but got %d", rec.Code)
			}
			if e := decodeError(t, rec); e.Error == "" {
				t.Error("Expected an error message")
			}
		})
	}

	rec := httptest.NewRecorder()
	h.HandleListEvents(rec, httptest.NewRequest(http.MethodGet, "/api/events?module=funding", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 but got %d", rec.Code)
	}
}

func TestStreamEvents(t *testing.T) {
	svc := newTestService(t)
	h := NewPaymentHandler(svc)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleStreamEvents))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?type=bounty_added")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Expected an event stream but got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if line, _ := reader.ReadString('\n'); line != ": connected\n" {
		t.Fatalf("Expected the connected comment but got %q", line)
	}

	if _, err := svc.AddBounty(context.Background(), "0xissuer", models.BountyRequest{MinimumPayoutAmount: 1, MaximumPayoutAmount: 5}); err != nil {
		t.Fatalf("AddBounty failed: %v", err)
	}

	var event, data string
	for event == "" || data == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	if event != string(workflow.EventBountyAdded) {
		t.Errorf("Expected bounty_added but got %s", event)
	}
	if !strings.Contains(data, `"entity_id":1`) {
		t.Errorf("Expected bounty 1 in the payload but got %s", data)
	}
}
