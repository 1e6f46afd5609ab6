package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "capture_frame",
		Description: "Capture the frame of a Stash scene at a playback position and copy the scene's tags, galleries and date onto the new image",
	}, NewCaptureHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_job",
		Description: "Show the status and progress of a Stash background job",
	}, NewGetJobHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recent_logs",
		Description: "List recent Stash server log entries, optionally filtered by level and message prefix",
	}, NewRecentLogsHandler(deps))
}
