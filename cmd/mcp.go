package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/evidence/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

Tracker credentials come from auth.username and auth.password. Configure a
client with:

  {
    "mcpServers": {
      "evidence": { "command": "evidence", "args": ["mcp"] }
    }
  }

Available tools: evidence_create_month, evidence_create_year,
evidence_list_templates, redmine_sync`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(cmd *cobra.Command) error {
	ctx := cmd.Context()
	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := mcp.NewServer(svc.pipeline, svc.store, svc.syncer, configCredentials(), buildVersion)
	return srv.ServeStdio(ctx)
}
