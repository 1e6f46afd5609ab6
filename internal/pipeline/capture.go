package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"
)

// Defaults matching the imagecapture plugin.
const (
	DefaultPluginID  = "imagecapture"
	DefaultTaskName  = "Capture Frame"
	DefaultOperation = "captureFrame"
	DefaultLogLevel  = "Info"

	// DefaultLogPrefix is the prefix the plugin writes its result after.
	DefaultLogPrefix = "[Plugin / ImageCapture] " + DefaultOperation + " ="
)

// CaptureConfig names the plugin task and the log line carrying its result.
type CaptureConfig struct {
	PluginID  string
	TaskName  string
	Operation string
	LogPrefix string
	LogLevel  string
	// AwaitTask waits for the task's job to end before reading the log when
	// the server returned a job id for the dispatch.
	AwaitTask bool
}

func (c CaptureConfig) withDefaults() CaptureConfig {
	if c.PluginID == "" {
		c.PluginID = DefaultPluginID
	}
	if c.TaskName == "" {
		c.TaskName = DefaultTaskName
	}
	if c.Operation == "" {
		c.Operation = DefaultOperation
	}
	if c.LogPrefix == "" {
		c.LogPrefix = "[Plugin / ImageCapture] " + c.Operation + " ="
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	return c
}

// FrameIndex converts a playback position to a frame number.
func FrameIndex(seconds, frameRate float64) (int64, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, inputError("current time is not a number")
	}
	if seconds < 0 {
		return 0, inputError("current time is negative")
	}
	if math.IsNaN(frameRate) || math.IsInf(frameRate, 0) || frameRate <= 0 {
		return 0, inputError(fmt.Sprintf("invalid frame rate %v", frameRate))
	}
	return int64(math.Floor(seconds * frameRate)), nil
}

// Capturer runs the capture stage.
type Capturer struct {
	remote     Remote
	correlator *Correlator
	tracker    *Tracker
	cfg        CaptureConfig
	now        func() time.Time
	logger     *slog.Logger
}

// NewCapturer creates the capture stage. tracker may be nil, which disables
// AwaitTask.
func NewCapturer(remote Remote, correlator *Correlator, tracker *Tracker, cfg CaptureConfig, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{
		remote:     remote,
		correlator: correlator,
		tracker:    tracker,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
		logger:     logger,
	}
}

// captureResult is the JSON the plugin logs after the prefix.
type captureResult struct {
	Result json.RawMessage `json:"result"`
}

// Capture grabs the frame under the playhead and returns the stored image
// path. Nothing is dispatched when the playback position is unusable.
func (c *Capturer) Capture(ctx context.Context, scene *Scene, pb Playback) (string, error) {
	if scene == nil || len(scene.Files) == 0 {
		return "", inputError("invalid scene")
	}
	if pb == nil {
		return "", inputError("no playback session")
	}
	seconds, ok := pb.CurrentTime()
	if !ok {
		return "", inputError("no playback session")
	}
	frame, err := FrameIndex(seconds, scene.Files[0].FrameRate)
	if err != nil {
		return "", err
	}

	logger := c.logger.With("scene_id", scene.ID, "frame_idx", frame)

	task := Task{
		PluginID: c.cfg.PluginID,
		Name:     c.cfg.TaskName,
		Args: map[string]string{
			"name":      c.cfg.Operation,
			"mode":      c.cfg.Operation,
			"scene_id":  scene.ID,
			"frame_idx": strconv.FormatInt(frame, 10),
		},
	}

	since := c.now()
	jobID, err := c.remote.DispatchTask(ctx, task)
	if err != nil {
		return "", fmt.Errorf("%w: run plugin task: %w", ErrDispatch, err)
	}
	logger.Info("capture task dispatched", "job_id", jobID)

	if c.cfg.AwaitTask && c.tracker != nil && jobID != "" {
		if _, err := c.tracker.Await(ctx, jobID); err != nil {
			return "", fmt.Errorf("capture task: %w", err)
		}
	}

	text, err := c.correlator.Await(ctx, c.cfg.LogPrefix, c.cfg.LogLevel, since)
	if err != nil {
		logger.Warn("capture result not found, retrying log correlation", "error", err)
		text, err = c.correlator.Await(ctx, c.cfg.LogPrefix, c.cfg.LogLevel, since)
		if err != nil {
			return "", err
		}
	}

	path, err := parseCaptureResult(text)
	if err != nil {
		return "", err
	}
	logger.Info("frame captured", "path", path)
	return path, nil
}

func parseCaptureResult(text string) (string, error) {
	var res captureResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return "", fmt.Errorf("%w: decode result %q: %w", ErrCaptureFailed, text, err)
	}
	var path string
	if err := json.Unmarshal(res.Result, &path); err != nil || path == "" {
		return "", ErrCaptureFailed
	}
	return path, nil
}
