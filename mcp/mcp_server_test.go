package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"orchestrator-backend/config"
	"orchestrator-backend/core/workflow"
	"orchestrator-backend/models"
	"orchestrator-backend/services"
)

func newTestWorkflow(t *testing.T) *services.WorkflowService {
	t.Helper()
	dep := config.DefaultDeployment()
	dep.InitialFunding = 10_000
	dep.Roles = []config.RoleGrant{
		{Module: "bounty_manager", Role: "BOUNTY_ISSUER", Address: "0xagent"},
		{Module: "bounty_manager", Role: "CLAIMANT", Address: "0xagent"},
		{Module: "bounty_manager", Role: "VERIFIER", Address: "0xagent"},
	}
	svc, err := services.NewWorkflowService(context.Background(), dep, nil, services.WorkflowOptions{
		Clock: workflow.NewManualClock(1_700_000_000),
	})
	if err != nil {
		t.Fatalf("NewWorkflowService failed: %v", err)
	}
	return svc
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("Expected tool content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected text content but got %T", res.Content[0])
	}
	return text.Text
}

func TestRegisteredTools(t *testing.T) {
	s := NewMCPServer(newTestWorkflow(t), "0xagent")
	want := []string{
		"list_bounties", "get_bounty", "add_claim", "verify_claim",
		"list_milestones", "get_milestone", "submit_milestone",
		"get_payments", "claim_all", "list_events",
	}
	got := s.ToolNames()
	if len(got) != len(want) {
		t.Fatalf("Expected %d tools but got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected tool %s at %d but got %s", want[i], i, got[i])
		}
	}
}

func TestClaimFlowThroughTools(t *testing.T) {
	wf := newTestWorkflow(t)
	s := NewMCPServer(wf, "0xagent")
	ctx := context.Background()

	b, err := wf.AddBounty(ctx, "0xagent", models.BountyRequest{MinimumPayoutAmount: 10, MaximumPayoutAmount: 100})
	if err != nil {
		t.Fatalf("AddBounty failed: %v", err)
	}

	res, err := s.handleAddClaim(ctx, callRequest("add_claim", map[string]interface{}{
		"bounty_id":    float64(b.ID),
		"contributors": []interface{}{map[string]interface{}{"address": "0xAgent", "claim_amount": float64(40)}},
		"details":      "done",
	}))
	if err != nil || res.IsError {
		t.Fatalf("add_claim failed: %v %s", err, resultText(t, res))
	}
	var claim workflow.Claim
	if err := json.Unmarshal([]byte(resultText(t, res)), &claim); err != nil {
		t.Fatalf("decoding claim: %v", err)
	}

	res, _ = s.handleVerifyClaim(ctx, callRequest("verify_claim", map[string]interface{}{
		"claim_id": float64(claim.ID), "bounty_id": float64(b.ID),
	}))
	if res.IsError {
		t.Fatalf("verify_claim failed: %s", resultText(t, res))
	}

	res, _ = s.handleClaimAll(ctx, callRequest("claim_all", map[string]interface{}{"client": "bounty"}))
	if res.IsError {
		t.Fatalf("claim_all failed: %s", resultText(t, res))
	}
	var view services.PaymentsView
	if err := json.Unmarshal([]byte(resultText(t, res)), &view); err != nil {
		t.Fatalf("decoding payments: %v", err)
	}
	if view.Balance != 40 {
		t.Errorf("Expected balance 40 but got %d", view.Balance)
	}

	res, _ = s.handleListEvents(ctx, callRequest("list_events", map[string]interface{}{"type": "tokens_released"}))
	if !strings.Contains(resultText(t, res), `"total_count": 1`) {
		t.Errorf("Expected one release event but got %s", resultText(t, res))
	}

	res, _ = s.handleVerifyClaim(ctx, callRequest("verify_claim", map[string]interface{}{
		"claim_id": float64(claim.ID), "bounty_id": float64(b.ID),
	}))
	if !res.IsError || !strings.Contains(resultText(t, res), ErrCodeConflict) {
		t.Errorf("Expected a conflict but got %s", resultText(t, res))
	}
}

func TestToolArgumentErrors(t *testing.T) {
	ctx := context.Background()
	s := NewMCPServer(newTestWorkflow(t), "0xagent")

	tests := []struct {
		name string
		call func() (*mcp.CallToolResult, error)
		code string
	}{
		{"missing id", func() (*mcp.CallToolResult, error) {
			return s.handleGetBounty(ctx, callRequest("get_bounty", nil))
		}, ErrCodeMissingRequired},
		{"fractional id", func() (*mcp.CallToolResult, error) {
			return s.handleGetBounty(ctx, callRequest("get_bounty", map[string]interface{}{"bounty_id": 1.5}))
		}, ErrCodeInvalidValue},
		{"unknown bounty", func() (*mcp.CallToolResult, error) {
			return s.handleGetBounty(ctx, callRequest("get_bounty", map[string]interface{}{"bounty_id": "7"}))
		}, ErrCodeNotFound},
		{"bad contributors", func() (*mcp.CallToolResult, error) {
			return s.handleAddClaim(ctx, callRequest("add_claim", map[string]interface{}{"bounty_id": float64(1), "contributors": "0xa"}))
		}, ErrCodeInvalidValue},
		{"unknown client", func() (*mcp.CallToolResult, error) {
			return s.handleGetPayments(ctx, callRequest("get_payments", map[string]interface{}{"client": "processor"}))
		}, ErrCodeNotFound},
		{"unknown milestone", func() (*mcp.CallToolResult, error) {
			return s.handleSubmitMilestone(ctx, callRequest("submit_milestone", map[string]interface{}{"milestone_id": float64(1), "submission_data": "x"}))
		}, ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.call()
			if err != nil {
				t.Fatalf("Expected a tool error result but got %v", err)
			}
			if !res.IsError {
				t.Fatalf("Expected an error result but got %s", resultText(t, res))
			}
			var te ToolError
			if err := json.Unmarshal([]byte(resultText(t, res)), &te); err != nil {
				t.Fatalf("decoding tool error: %v", err)
			}
			if te.Code != tt.code {
				t.Errorf("Expected code %s but got %s (%s)", tt.code, te.Code, te.Message)
			}
		})
	}

	anonymous := NewMCPServer(newTestWorkflow(t), "")
	res, _ := anonymous.handleClaimAll(ctx, callRequest("claim_all", map[string]interface{}{"client": "bounty"}))
	if !res.IsError || !strings.Contains(resultText(t, res), ErrCodeUnauthorized) {
		t.Errorf("Expected an unauthorized result but got %s", resultText(t, res))
	}
}
