package main

import (
	"context"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"orchestrator-backend/core/workflow"
	"orchestrator-backend/mcp"
	"orchestrator-backend/services"
	"orchestrator-backend/storage/events"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the workflow as MCP tools on stdio",
	Long: `Serve the workflow as MCP tools on stdio. Write tools act as
auth.caller_address (ORCH_CALLER_ADDRESS).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		dsn := cfg.Store.SQLitePath
		if cfg.Store.Driver == events.DriverPostgres {
			dsn = cfg.Store.PGDSN
		}
		store, err := events.Open(ctx, cfg.Store.Driver, dsn)
		if err != nil {
			return fmt.Errorf("failed to init store: %w", err)
		}
		defer store.Close()

		wf, err := services.NewWorkflowService(ctx, cfg.Deployment, store, services.WorkflowOptions{})
		if err != nil {
			return err
		}

		caller := workflow.NormalizeAddress(cfg.Auth.CallerAddress)
		mcpServer := mcp.NewMCPServer(wf, caller)

		// stdout carries the protocol, so logs go to stderr (log default).
		log.Printf("Orchestrator MCP server starting (driver=%s, caller=%s)", cfg.Store.Driver, caller)
		return server.ServeStdio(mcpServer.GetMCPServer())
	},
}
