package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/framegrab/internal/pipeline"
	"github.com/raphaelgruber/framegrab/internal/stash"
)

// CaptureInput defines the input schema for the capture_frame tool.
type CaptureInput struct {
	Scene    string   `json:"scene" jsonschema:"Scene id or scene page URL"`
	Position *float64 `json:"position,omitempty" jsonschema:"Playback position in seconds"`
}

// NewCaptureHandler creates the capture_frame tool handler.
func NewCaptureHandler(deps *Dependencies) mcp.ToolHandlerFor[CaptureInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CaptureInput) (*mcp.CallToolResult, any, error) {
		sceneID, err := stash.ParseSceneRef(input.Scene)
		if err != nil {
			return ErrorResult(err.Error(), "Pass a numeric scene id or a /scenes/<id> URL"), nil, nil
		}
		if input.Position == nil {
			return ErrorResult("position is required", "Pass the playback position in seconds"), nil, nil
		}

		deps.Logger.Debug("capture_frame tool called", "scene_id", sceneID, "position", *input.Position)

		res, err := deps.Runner.Run(context.WithoutCancel(ctx), sceneID, pipeline.Position(*input.Position))
		switch {
		case errors.Is(err, pipeline.ErrBusy):
			return ErrorResult(err.Error(), "Wait for the running capture to finish and retry"), nil, nil
		case err != nil:
			return ErrorResult(fmt.Sprintf("capture failed: %v", err), ""), nil, nil
		}

		return TextResult(FormatResults([]string{
			fmt.Sprintf("Captured %s", res.FrameFile),
			fmt.Sprintf("image: %s", res.ImageID),
			fmt.Sprintf("scan job: %s", res.ScanJobID),
			fmt.Sprintf("reconciliations: %d", res.Reconciliations),
		})), nil, nil
	}
}
