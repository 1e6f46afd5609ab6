package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/framegrab/internal/poll"
)

// JobSource fetches job records.
type JobSource interface {
	FetchJob(ctx context.Context, id string) (*Job, error)
}

// Tracker waits for a server job to reach a terminal state.
type Tracker struct {
	jobs   JobSource
	poller poll.Poller
	logger *slog.Logger
}

// NewTracker creates a tracker that polls jobs with p.
func NewTracker(jobs JobSource, p poll.Poller, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{jobs: jobs, poller: p, logger: logger}
}

// Classify maps a fetched job to a poll outcome: FINISHED succeeds, FAILED
// and CANCELLED fail terminally, anything else keeps polling.
func Classify(job *Job) poll.Outcome[*Job] {
	if job == nil {
		return poll.NotYet[*Job]()
	}
	switch job.Status {
	case JobFinished:
		return poll.Success(job)
	case JobFailed, JobCancelled:
		return poll.Fail[*Job](fmt.Errorf("%w: job %s ended %s", ErrJobFailed, job.ID, job.Status))
	default:
		return poll.NotYet[*Job]()
	}
}

// Await polls job id until it finishes. The error wraps ErrJobFailed for a
// failed or cancelled job and ErrJobTimeout when the budget runs out.
func (t *Tracker) Await(ctx context.Context, id string) (*Job, error) {
	logger := t.logger.With("job_id", id)

	job, err := poll.Run(ctx, t.poller, func(ctx context.Context, attempt int) poll.Outcome[*Job] {
		job, err := t.jobs.FetchJob(ctx, id)
		if err != nil {
			return poll.Fail[*Job](fmt.Errorf("fetch job %s: %w", id, err))
		}
		if job != nil {
			logger.Debug("job polled", "attempt", attempt, "status", job.Status, "progress", job.Progress)
		}
		return Classify(job)
	})
	if errors.Is(err, poll.ErrTimeout) {
		return nil, fmt.Errorf("%w: job %s (%w)", ErrJobTimeout, id, err)
	}
	return job, err
}
