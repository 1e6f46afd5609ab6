package stash

import "time"

// =============================================================================
// TYPES (matching the Stash GraphQL schema)
// =============================================================================

// IDRef is an object reduced to its id.
type IDRef struct {
	ID string `json:"id"`
}

// VideoFile is a file backing a scene.
type VideoFile struct {
	Path      string  `json:"path"`
	FrameRate float64 `json:"frame_rate"`
	Duration  float64 `json:"duration"`
}

// Scene is the subset of a scene the capture pipeline reads.
type Scene struct {
	ID        string      `json:"id"`
	Title     *string     `json:"title,omitempty"`
	Date      *string     `json:"date,omitempty"`
	Files     []VideoFile `json:"files"`
	Tags      []IDRef     `json:"tags"`
	Galleries []IDRef     `json:"galleries"`
}

// Image is an image record.
type Image struct {
	ID    string      `json:"id"`
	Title *string     `json:"title,omitempty"`
	Date  *string     `json:"date,omitempty"`
	Files []ImageFile `json:"files,omitempty"`
}

// ImageFile is a file backing an image.
type ImageFile struct {
	Path string `json:"path"`
}

// ImageUpdateInput is the input of the imageUpdate mutation.
type ImageUpdateInput struct {
	ID         string   `json:"id"`
	TagIDs     []string `json:"tag_ids"`
	GalleryIDs []string `json:"gallery_ids"`
	Date       *string  `json:"date,omitempty"`
}

// Job status values.
const (
	JobStatusReady     = "READY"
	JobStatusRunning   = "RUNNING"
	JobStatusFinished  = "FINISHED"
	JobStatusStopping  = "STOPPING"
	JobStatusCancelled = "CANCELLED"
	JobStatusFailed    = "FAILED"
)

// Job represents a background job on the server.
type Job struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Description string     `json:"description"`
	Progress    *float64   `json:"progress,omitempty"`
	SubTasks    []string   `json:"subTasks,omitempty"`
	AddTime     time.Time  `json:"addTime"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// Log levels as reported by the server.
const (
	LogLevelTrace    = "Trace"
	LogLevelDebug    = "Debug"
	LogLevelInfo     = "Info"
	LogLevelProgress = "Progress"
	LogLevelWarning  = "Warning"
	LogLevelError    = "Error"
)

// LogEntry is one line of the server log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// PluginArg is one key/value argument of a plugin task.
type PluginArg struct {
	Key   string      `json:"key"`
	Value PluginValue `json:"value"`
}

// PluginValue holds a plugin argument value; only strings are sent.
type PluginValue struct {
	Str *string `json:"str,omitempty"`
}
