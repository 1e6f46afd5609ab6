// Package poll provides a bounded retry loop that repeats a check on a delay
// schedule until it succeeds, fails terminally, or runs out of attempts.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when the attempt budget is exhausted without the
// check reporting success or terminal failure.
var ErrTimeout = errors.New("poll timed out")

// Status is the tri-state result of a single check.
type Status int

const (
	Pending Status = iota
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is what a check reports for one attempt.
type Outcome[T any] struct {
	Status Status
	Value  T
	Err    error
}

// NotYet reports that the awaited condition has not been observed yet.
func NotYet[T any]() Outcome[T] {
	return Outcome[T]{Status: Pending}
}

// Success reports the awaited value.
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{Status: Succeeded, Value: v}
}

// Fail reports a terminal failure; no further attempts are made.
func Fail[T any](err error) Outcome[T] {
	return Outcome[T]{Status: Failed, Err: err}
}

// Check is invoked once per attempt. attempt is 1-based.
type Check[T any] func(ctx context.Context, attempt int) Outcome[T]

// Schedule returns the wait before the attempt with the given 0-based index.
type Schedule func(n int) time.Duration

// Linear waits 2×(n+1)×base before attempt n, so the first wait is 2×base.
func Linear(base time.Duration) Schedule {
	return func(n int) time.Duration {
		return 2 * time.Duration(n+1) * base
	}
}

// Exponential waits 2^n×base before attempt n, so the first wait is base.
func Exponential(base time.Duration) Schedule {
	return func(n int) time.Duration {
		if n > 30 {
			n = 30
		}
		return time.Duration(1<<uint(n)) * base
	}
}

// Capped bounds every delay of s by limit. A non-positive limit disables the cap.
func Capped(s Schedule, limit time.Duration) Schedule {
	if limit <= 0 {
		return s
	}
	return func(n int) time.Duration {
		if d := s(n); d < limit {
			return d
		}
		return limit
	}
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poller describes one polling policy.
type Poller struct {
	// Schedule computes the wait before each attempt.
	Schedule Schedule
	// MaxAttempts is the attempt budget; values below 1 are treated as 1.
	MaxAttempts int
	// Settle is an extra wait before the first scheduled delay.
	Settle time.Duration
	// Sleep replaces the real timer, mostly in tests.
	Sleep SleepFunc
	// OnAttempt, when set, observes every attempt with its outcome status.
	OnAttempt func(attempt int, waited time.Duration, status Status)
}

// Run repeats check until it succeeds or fails, or until the attempt budget
// is spent, in which case the returned error wraps ErrTimeout. A terminal
// failure is returned as reported by the check.
func Run[T any](ctx context.Context, p Poller, check Check[T]) (T, error) {
	var zero T

	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	budget := p.MaxAttempts
	if budget < 1 {
		budget = 1
	}

	if p.Settle > 0 {
		if err := sleep(ctx, p.Settle); err != nil {
			return zero, err
		}
	}

	for attempt := 0; attempt < budget; attempt++ {
		var wait time.Duration
		if p.Schedule != nil {
			wait = p.Schedule(attempt)
		}
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}

		out := check(ctx, attempt+1)
		if p.OnAttempt != nil {
			p.OnAttempt(attempt+1, wait, out.Status)
		}

		switch out.Status {
		case Succeeded:
			return out.Value, nil
		case Failed:
			if out.Err == nil {
				return zero, errors.New("poll: check failed")
			}
			return zero, out.Err
		}
	}

	return zero, fmt.Errorf("%w after %d attempts", ErrTimeout, budget)
}
