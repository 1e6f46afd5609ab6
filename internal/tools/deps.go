// Package tools exposes the capture pipeline as MCP tools.
package tools

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/framegrab/internal/pipeline"
	"github.com/raphaelgruber/framegrab/internal/stash"
)

// Runner runs capture pipelines; *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, sceneID string, pb pipeline.Playback) (*pipeline.Result, error)
	Busy() bool
}

// Server is the subset of the Stash client the tools read from.
type Server interface {
	FindJob(ctx context.Context, id string) (*stash.Job, error)
	Logs(ctx context.Context) ([]stash.LogEntry, error)
}

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Runner Runner
	Stash  Server
	Logger *slog.Logger
}
