package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GetJobInput defines the input schema for the get_job tool.
type GetJobInput struct {
	ID string `json:"id" jsonschema:"Job id"`
}

// NewGetJobHandler creates the get_job tool handler.
func NewGetJobHandler(deps *Dependencies) mcp.ToolHandlerFor[GetJobInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetJobInput) (*mcp.CallToolResult, any, error) {
		if input.ID == "" {
			return ErrorResult("id is required", ""), nil, nil
		}

		job, err := deps.Stash.FindJob(ctx, input.ID)
		if err != nil {
			return ErrorResult(fmt.Sprintf("get job: %v", err), "Check that the Stash server is reachable"), nil, nil
		}
		if job == nil {
			return ErrorResult("job not found: "+input.ID, "Finished jobs are dropped from the queue"), nil, nil
		}

		lines := []string{
			fmt.Sprintf("job %s: %s", job.ID, job.Status),
			fmt.Sprintf("description: %s", job.Description),
		}
		if job.Progress != nil {
			lines = append(lines, fmt.Sprintf("progress: %.0f%%", *job.Progress*100))
		}
		if job.Error != nil && *job.Error != "" {
			lines = append(lines, "error: "+*job.Error)
		}
		return TextResult(FormatResults(lines)), nil, nil
	}
}

// RecentLogsInput defines the input schema for the recent_logs tool.
type RecentLogsInput struct {
	Level  string `json:"level,omitempty" jsonschema:"Only entries with this level, case-insensitive"`
	Prefix string `json:"prefix,omitempty" jsonschema:"Only entries whose message starts with this prefix"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of entries, newest last (default 20)"`
}

// defaultLogLimit is used when the caller gives no limit.
const defaultLogLimit = 20

// NewRecentLogsHandler creates the recent_logs tool handler.
func NewRecentLogsHandler(deps *Dependencies) mcp.ToolHandlerFor[RecentLogsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RecentLogsInput) (*mcp.CallToolResult, any, error) {
		entries, err := deps.Stash.Logs(ctx)
		if err != nil {
			return ErrorResult(fmt.Sprintf("fetch logs: %v", err), "Check that the Stash server is reachable"), nil, nil
		}

		limit := input.Limit
		if limit <= 0 {
			limit = defaultLogLimit
		}

		var lines []string
		for _, e := range entries {
			if input.Level != "" && !strings.EqualFold(e.Level, input.Level) {
				continue
			}
			if input.Prefix != "" && !strings.HasPrefix(e.Message, input.Prefix) {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s [%s] %s", e.Time.Format(time.RFC3339), e.Level, e.Message))
		}
		if len(lines) > limit {
			lines = lines[len(lines)-limit:]
		}
		if len(lines) == 0 {
			return TextResult("no matching log entries"), nil, nil
		}
		return TextResult(FormatResults(lines)), nil, nil
	}
}
