package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/framegrab/internal/pipeline"
	"github.com/raphaelgruber/framegrab/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a local HTTP endpoint that triggers captures",
	Long: `Serve a local HTTP endpoint that triggers capture runs, for use from
browser userscripts or player hooks.

Routes:
  POST /scenes/{id}/capture   body {"position": 10.0}
  GET  /health
  GET  /stats

Only one capture runs at a time; a trigger while one is running is answered
with 409 Conflict.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	// The server has no terminal to protect, so shutdown waits for the run
	// in flight instead of a guard intercepting signals.
	orch := newOrchestrator(server.LogNotifier{Logger: logger}, pipeline.NopGuard{})

	srv := server.New(addr, server.Config{
		Runner:    orch,
		Metrics:   collector,
		Logger:    logger,
		Version:   Version,
		StartTime: time.Now(),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
