package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ContainingDir returns every segment of path but the last, joined with the
// path's separator and terminated by it. Server paths that contain no "/"
// but do contain "\" are treated as Windows paths.
func ContainingDir(path string) string {
	sep := "/"
	if !strings.Contains(path, "/") && strings.Contains(path, `\`) {
		sep = `\`
	}
	segments := strings.Split(path, sep)
	return strings.Join(segments[:len(segments)-1], sep) + sep
}

// Rescanner runs the rescan stage.
type Rescanner struct {
	remote  Remote
	tracker *Tracker
	logger  *slog.Logger
}

// NewRescanner creates the rescan stage.
func NewRescanner(remote Remote, tracker *Tracker, logger *slog.Logger) *Rescanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rescanner{remote: remote, tracker: tracker, logger: logger}
}

// Rescan scans the directory holding artifactPath and waits for the scan job
// to finish.
func (r *Rescanner) Rescan(ctx context.Context, artifactPath string) (*Job, error) {
	dir := ContainingDir(artifactPath)

	jobID, err := r.remote.DispatchRescan(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata scan %s: %w", ErrDispatch, dir, err)
	}
	r.logger.Info("rescan dispatched", "dir", dir, "job_id", jobID)

	job, err := r.tracker.Await(ctx, jobID)
	if err != nil {
		return nil, err
	}
	r.logger.Info("rescan finished", "dir", dir, "job_id", jobID)
	return job, nil
}
