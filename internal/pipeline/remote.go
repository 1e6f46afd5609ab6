// Package pipeline captures a still frame from a playing scene and carries the
// scene's metadata over to the resulting image record.
//
// A run moves through four stages: capture (dispatch a plugin task and learn
// the output path from the server log), rescan (scan the output directory and
// wait for the scan job), and reconciliation (find the image by path and copy
// tags, galleries and date onto it, retried once). The Orchestrator sequences
// the stages and owns the navigation guard.
package pipeline

import (
	"context"
	"time"
)

// Scene is the snapshot of the source scene taken at the start of a run.
type Scene struct {
	ID         string
	Date       string
	Files      []VideoFile
	TagIDs     []string
	GalleryIDs []string
}

// VideoFile describes one file backing a scene.
type VideoFile struct {
	Path      string
	FrameRate float64
}

// JobStatus is the server-side state of a background job.
type JobStatus string

const (
	JobReady     JobStatus = "READY"
	JobRunning   JobStatus = "RUNNING"
	JobStopping  JobStatus = "STOPPING"
	JobFinished  JobStatus = "FINISHED"
	JobCancelled JobStatus = "CANCELLED"
	JobFailed    JobStatus = "FAILED"
)

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	return s == JobFinished || s == JobCancelled || s == JobFailed
}

// Job is a freshly fetched job record. Progress is a fraction in [0, 1].
type Job struct {
	ID       string
	Status   JobStatus
	Progress float64
}

// LogEntry is one line of the server's event log.
type LogEntry struct {
	Time    time.Time
	Level   string
	Message string
}

// Image is the reconciliation target.
type Image struct {
	ID   string
	Path string
}

// ImageUpdate carries the scene attributes written onto an image.
// A nil Date leaves the image's date untouched.
type ImageUpdate struct {
	TagIDs     []string
	GalleryIDs []string
	Date       *string
}

// Task is a plugin task invocation. Args are sent as string values.
type Task struct {
	PluginID string
	Name     string
	Args     map[string]string
}

// Remote is the request/response channel to the media server.
type Remote interface {
	// FetchScene returns nil without error when no scene has the id.
	FetchScene(ctx context.Context, id string) (*Scene, error)
	// FindImagesByPath returns every image whose path equals path exactly.
	FindImagesByPath(ctx context.Context, path string) ([]Image, error)
	// UpdateImage writes u onto the image and returns its id.
	UpdateImage(ctx context.Context, id string, u ImageUpdate) (string, error)
	// DispatchRescan starts a metadata scan of dir and returns the job id.
	DispatchRescan(ctx context.Context, dir string) (string, error)
	// DispatchTask starts a plugin task. The returned job id is empty when
	// the server does not report one.
	DispatchTask(ctx context.Context, task Task) (string, error)
	// FetchJob returns nil without error when the job is unknown.
	FetchJob(ctx context.Context, id string) (*Job, error)
	// FetchLogs returns the current log snapshot in log order.
	FetchLogs(ctx context.Context) ([]LogEntry, error)
}

// Playback exposes the host's player.
type Playback interface {
	// CurrentTime returns the playback position in seconds; ok is false when
	// no playback session exists.
	CurrentTime() (seconds float64, ok bool)
}

// PlaybackFunc adapts a function to Playback.
type PlaybackFunc func() (float64, bool)

func (f PlaybackFunc) CurrentTime() (float64, bool) { return f() }

// Position is a fixed playback position.
type Position float64

func (p Position) CurrentTime() (float64, bool) { return float64(p), true }

// Notifier is the user-facing surface of a run.
type Notifier interface {
	// Progress shows a blocking progress indicator.
	Progress(msg string)
	// Notice shows a transient, non-error message.
	Notice(msg string)
	// Error shows the failure surface of a run.
	Error(msg string)
	// Dismiss hides the progress indicator and any notice.
	Dismiss()
}

// Guard protects the host against being left while an update is in flight.
type Guard interface {
	Install()
	Remove()
}

// NopNotifier discards every message.
type NopNotifier struct{}

func (NopNotifier) Progress(string) {}
func (NopNotifier) Notice(string)   {}
func (NopNotifier) Error(string)    {}
func (NopNotifier) Dismiss()        {}

// NopGuard does nothing.
type NopGuard struct{}

func (NopGuard) Install() {}
func (NopGuard) Remove()  {}
