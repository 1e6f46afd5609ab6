package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/framegrab/internal/pipeline"
	"github.com/raphaelgruber/framegrab/internal/server"
	"github.com/raphaelgruber/framegrab/internal/tools"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve capture tools over MCP on stdio",
	Long: `Serve framegrab as a Model Context Protocol server on stdin/stdout.

Tools:
  capture_frame   capture a scene frame at a position and copy scene metadata
  get_job         show a background job
  recent_logs     list recent server log entries

Logs go to stderr and the log file; stdout carries the protocol only.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	orch := newOrchestrator(server.LogNotifier{Logger: logger}, pipeline.NopGuard{})

	srv := tools.NewServer(Version, &tools.Dependencies{
		Runner: orch,
		Stash:  stashClient,
		Logger: logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return tools.Serve(ctx, srv, logger)
}
