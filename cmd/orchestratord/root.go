package main

import (
	"os"

	"github.com/spf13/cobra"

	"orchestrator-backend/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "orchestratord",
	Short: "Workflow orchestrator for bounties, milestones and streaming payments",
	Long: `orchestratord boots one workflow deployment (funding manager, streaming
payment processor, bounty and milestone managers) and serves it over HTTP
or as MCP tools on stdio.

Configuration comes from an optional YAML file (--config) and ORCH_
environment variables.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(configCmd)
}
