package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joescharf/projectops/internal/backup"
	"github.com/joescharf/projectops/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio so assistants
can read projects and issues and trigger backups. Configure with:

  {
    "mcpServers": {
      "projectops": { "command": "projectops", "args": ["mcp"] }
    }
  }

Available tools: projectops_list_projects, projectops_project_summary,
projectops_list_issues, projectops_create_issue, projectops_update_issue,
projectops_list_backups, projectops_export_backup`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return mcpRun(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(ctx context.Context) error {
	// stdout carries the protocol, so logs go to stderr only.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	s, err := getStore()
	if err != nil {
		return err
	}

	var backups *backup.Service
	if svc, err := newBackupService(ctx); err != nil {
		slog.Warn("backup tools disabled", "error", err)
	} else {
		backups = svc
	}

	return mcp.NewServer(s, backups, buildVersion).ServeStdio(ctx)
}
