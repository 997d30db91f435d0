package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"orchestrator-backend/core/workflow"
	"orchestrator-backend/models"
	"orchestrator-backend/services"
	"orchestrator-backend/storage/events"
)

// MCPServer exposes the workflow operations as MCP tools. Every write acts
// as the configured caller address.
type MCPServer struct {
	mcpServer *server.MCPServer
	workflow  *services.WorkflowService
	caller    workflow.Address
	tools     []string
}

// NewMCPServer creates a new MCP server using the mcp-go library
func NewMCPServer(wf *services.WorkflowService, caller workflow.Address) *MCPServer {
	mcpServer := server.NewMCPServer(
		"Orchestrator MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &MCPServer{
		mcpServer: mcpServer,
		workflow:  wf,
		caller:    caller,
	}
	s.registerTools()
	return s
}

// GetMCPServer returns the underlying MCP server for transport setup
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// ToolNames lists the registered tools in registration order.
func (s *MCPServer) ToolNames() []string {
	return append([]string(nil), s.tools...)
}

func (s *MCPServer) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.tools = append(s.tools, tool.Name)
	s.mcpServer.AddTool(tool, handler)
}

// registerTools registers all MCP tools with the server
func (s *MCPServer) registerTools() {
	// Bounty tools
	s.addTool(mcp.NewTool("list_bounties",
		mcp.WithDescription("List all bounties with their payout range and lock state"),
	), s.handleListBounties)
	s.addTool(mcp.NewTool("get_bounty",
		mcp.WithDescription("Get one bounty"),
		mcp.WithNumber("bounty_id", mcp.Required(), mcp.Description("ID of the bounty")),
	), s.handleGetBounty)
	s.addTool(mcp.NewTool("add_claim",
		mcp.WithDescription("Propose a claim splitting a bounty among contributors (CLAIMANT role)"),
		mcp.WithNumber("bounty_id", mcp.Required(), mcp.Description("ID of the bounty")),
		mcp.WithArray("contributors", mcp.Required(),
			mcp.Description(`Contributors as [{"address": "0x..", "claim_amount": 100}]`)),
		mcp.WithString("details", mcp.Description("Free-form claim details")),
	), s.handleAddClaim)
	s.addTool(mcp.NewTool("verify_claim",
		mcp.WithDescription("Verify a claim, paying its contributors and locking the bounty (VERIFIER role)"),
		mcp.WithNumber("claim_id", mcp.Required(), mcp.Description("ID of the claim")),
		mcp.WithNumber("bounty_id", mcp.Required(), mcp.Description("ID of the bounty the claim belongs to")),
	), s.handleVerifyClaim)

	// Milestone tools
	s.addTool(mcp.NewTool("list_milestones",
		mcp.WithDescription("List milestones with the active milestone and activation state"),
	), s.handleListMilestones)
	s.addTool(mcp.NewTool("get_milestone",
		mcp.WithDescription("Get one milestone"),
		mcp.WithNumber("milestone_id", mcp.Required(), mcp.Description("ID of the milestone")),
	), s.handleGetMilestone)
	s.addTool(mcp.NewTool("submit_milestone",
		mcp.WithDescription("Submit work for a started milestone (milestone contributors only)"),
		mcp.WithNumber("milestone_id", mcp.Required(), mcp.Description("ID of the milestone")),
		mcp.WithString("submission_data", mcp.Required(), mcp.Description("Link or summary of the delivered work")),
	), s.handleSubmitMilestone)

	// Payment tools
	s.addTool(mcp.NewTool("get_payments",
		mcp.WithDescription("Show the vesting wallets, releasable and unclaimable amounts of a contributor"),
		mcp.WithString("client", mcp.Required(), mcp.Description("Payment client: bounty, milestone or an address")),
		mcp.WithString("contributor", mcp.Description("Contributor address (defaults to the caller)")),
	), s.handleGetPayments)
	s.addTool(mcp.NewTool("claim_all",
		mcp.WithDescription("Release everything vested for the caller at a payment client"),
		mcp.WithString("client", mcp.Required(), mcp.Description("Payment client: bounty, milestone or an address")),
	), s.handleClaimAll)

	// Events tool
	s.addTool(mcp.NewTool("list_events",
		mcp.WithDescription("List recorded workflow events, newest first"),
		mcp.WithString("type", mcp.Description("Event type, e.g. claim_verified")),
		mcp.WithString("module", mcp.Description("Module alias or address")),
		mcp.WithNumber("entity_id", mcp.Description("Bounty, claim or milestone id")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of events (default 100)")),
	), s.handleListEvents)
}

// idArg reads a positive integer argument.
func idArg(req mcp.CallToolRequest, tool, name string, required bool) (uint64, *ToolError) {
	raw, ok := req.GetArguments()[name]
	if !ok || raw == nil {
		if required {
			return 0, NewFieldError(tool, name, nil, name+" is required")
		}
		return 0, nil
	}
	switch v := raw.(type) {
	case float64:
		if v >= 1 && v == math.Trunc(v) && v < 1<<63 {
			return uint64(v), nil
		}
	case string:
		if id, err := strconv.ParseUint(v, 10, 64); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, NewFieldError(tool, name, raw, name+" must be a positive integer")
}

func (s *MCPServer) requireCaller(tool string) *ToolError {
	if s.caller.IsZero() {
		return &ToolError{
			Code:    ErrCodeUnauthorized,
			Message: "no caller address configured",
			Tool:    tool,
			Hint:    "set auth.caller_address (ORCH_CALLER_ADDRESS)",
		}
	}
	return nil
}

func (s *MCPServer) handleListBounties(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bounties := s.workflow.ListBounties()
	return jsonResult(map[string]interface{}{"bounties": bounties, "total_count": len(bounties)})
}

func (s *MCPServer) handleGetBounty(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, terr := idArg(req, "get_bounty", "bounty_id", true)
	if terr != nil {
		return errorResult(terr), nil
	}
	b, err := s.workflow.GetBounty(id)
	if err != nil {
		return errorResult(NewWorkflowToolError("get_bounty", err)), nil
	}
	return jsonResult(b)
}

func (s *MCPServer) handleAddClaim(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "add_claim"
	if terr := s.requireCaller(tool); terr != nil {
		return errorResult(terr), nil
	}
	bountyID, terr := idArg(req, tool, "bounty_id", true)
	if terr != nil {
		return errorResult(terr), nil
	}
	raw, ok := req.GetArguments()["contributors"]
	if !ok {
		return errorResult(NewFieldError(tool, "contributors", nil, "contributors is required")), nil
	}
	var contributors []models.ClaimContributor
	encoded, _ := json.Marshal(raw)
	if err := json.Unmarshal(encoded, &contributors); err != nil {
		return errorResult(NewFieldError(tool, "contributors", raw, "expected an array of {address, claim_amount}")), nil
	}

	c, err := s.workflow.AddClaim(ctx, s.caller, models.ClaimRequest{
		BountyID:     bountyID,
		Contributors: contributors,
		Details:      req.GetString("details", ""),
	})
	if err != nil {
		return errorResult(NewWorkflowToolError(tool, err)), nil
	}
	return jsonResult(c)
}

func (s *MCPServer) handleVerifyClaim(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "verify_claim"
	if terr := s.requireCaller(tool); terr != nil {
		return errorResult(terr), nil
	}
	claimID, terr := idArg(req, tool, "claim_id", true)
	if terr != nil {
		return errorResult(terr), nil
	}
	bountyID, terr := idArg(req, tool, "bounty_id", true)
	if terr != nil {
		return errorResult(terr), nil
	}
	c, err := s.workflow.VerifyClaim(ctx, s.caller, claimID, bountyID)
	if err != nil {
		return errorResult(NewWorkflowToolError(tool, err)), nil
	}
	return jsonResult(c)
}

func (s *MCPServer) handleListMilestones(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.workflow.ListMilestones())
}

func (s *MCPServer) handleGetMilestone(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, terr := idArg(req, "get_milestone", "milestone_id", true)
	if terr != nil {
		return errorResult(terr), nil
	}
	m, err := s.workflow.GetMilestone(id)
	if err != nil {
		return errorResult(NewWorkflowToolError("get_milestone", err)), nil
	}
	return jsonResult(m)
}

func (s *MCPServer) handleSubmitMilestone(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "submit_milestone"
	if terr := s.requireCaller(tool); terr != nil {
		return errorResult(terr), nil
	}
	id, terr := idArg(req, tool, "milestone_id", true)
	if terr != nil {
		return errorResult(terr), nil
	}
	data, err := req.RequireString("submission_data")
	if err != nil {
		return errorResult(NewFieldError(tool, "submission_data", nil, err.Error())), nil
	}
	m, err := s.workflow.SubmitMilestone(ctx, s.caller, id, data)
	if err != nil {
		return errorResult(NewWorkflowToolError(tool, err)), nil
	}
	return jsonResult(m)
}

func (s *MCPServer) handleGetPayments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "get_payments"
	raw, err := req.RequireString("client")
	if err != nil {
		return errorResult(NewFieldError(tool, "client", nil, err.Error())), nil
	}
	client, err := s.workflow.ResolveClient(raw)
	if err != nil {
		return errorResult(NewWorkflowToolError(tool, err)), nil
	}
	contributor := workflow.NormalizeAddress(req.GetString("contributor", ""))
	if contributor.IsZero() {
		contributor = s.caller
	}
	if contributor.IsZero() {
		return errorResult(NewFieldError(tool, "contributor", nil, "contributor is required when no caller is configured")), nil
	}
	return jsonResult(s.workflow.Payments(client, contributor))
}

func (s *MCPServer) handleClaimAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "claim_all"
	if terr := s.requireCaller(tool); terr != nil {
		return errorResult(terr), nil
	}
	raw, err := req.RequireString("client")
	if err != nil {
		return errorResult(NewFieldError(tool, "client", nil, err.Error())), nil
	}
	client, err := s.workflow.ResolveClient(raw)
	if err != nil {
		return errorResult(NewWorkflowToolError(tool, err)), nil
	}
	v, err := s.workflow.ClaimAll(ctx, s.caller, client)
	if err != nil {
		return errorResult(NewWorkflowToolError(tool, err)), nil
	}
	return jsonResult(v)
}

func (s *MCPServer) handleListEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "list_events"
	filter := events.Filter{Type: workflow.EventType(req.GetString("type", ""))}
	if raw := req.GetString("module", ""); raw != "" {
		module, err := s.workflow.ResolveModule(raw)
		if err != nil {
			return errorResult(NewWorkflowToolError(tool, err)), nil
		}
		filter.Module = module.String()
	}
	entity, terr := idArg(req, tool, "entity_id", false)
	if terr != nil {
		return errorResult(terr), nil
	}
	filter.EntityID = entity
	limit, terr := idArg(req, tool, "limit", false)
	if terr != nil {
		return errorResult(terr), nil
	}
	if limit > 1000 {
		limit = 1000
	}
	filter.Limit = int(limit)

	recs, err := s.workflow.Events(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return jsonResult(map[string]interface{}{"events": recs, "total_count": len(recs)})
}
