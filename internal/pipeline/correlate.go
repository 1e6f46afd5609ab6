package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/framegrab/internal/poll"
)

// LogSource fetches the server log snapshot.
type LogSource interface {
	FetchLogs(ctx context.Context) ([]LogEntry, error)
}

// Correlator waits for a log message that reports the result of an earlier
// dispatched operation.
type Correlator struct {
	logs   LogSource
	poller poll.Poller
	logger *slog.Logger
}

// NewCorrelator creates a correlator that polls logs with p.
func NewCorrelator(logs LogSource, p poll.Poller, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{logs: logs, poller: p, logger: logger}
}

// MatchLog returns the text after prefix of the first entry in entries whose
// level equals level, whose time is strictly after since, and whose message
// starts with prefix.
func MatchLog(entries []LogEntry, prefix, level string, since time.Time) (string, bool) {
	for _, e := range entries {
		if !strings.EqualFold(e.Level, level) {
			continue
		}
		if !e.Time.After(since) {
			continue
		}
		if !strings.HasPrefix(e.Message, prefix) {
			continue
		}
		return strings.TrimSpace(strings.TrimPrefix(e.Message, prefix)), true
	}
	return "", false
}

// Await polls the log until a matching message appears and returns its text
// with the prefix and surrounding whitespace removed. An exhausted budget
// yields an error wrapping ErrCorrelationTimeout; a failed log fetch ends the
// wait immediately.
func (c *Correlator) Await(ctx context.Context, prefix, level string, since time.Time) (string, error) {
	text, err := poll.Run(ctx, c.poller, func(ctx context.Context, attempt int) poll.Outcome[string] {
		entries, err := c.logs.FetchLogs(ctx)
		if err != nil {
			return poll.Fail[string](fmt.Errorf("fetch logs: %w", err))
		}
		if text, ok := MatchLog(entries, prefix, level, since); ok {
			c.logger.Debug("log message correlated", "attempt", attempt, "prefix", prefix)
			return poll.Success(text)
		}
		return poll.NotYet[string]()
	})
	if errors.Is(err, poll.ErrTimeout) {
		return "", fmt.Errorf("%w: %q (%w)", ErrCorrelationTimeout, prefix, err)
	}
	return text, err
}
