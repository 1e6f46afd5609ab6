package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for each failure kind of a run.
// Use errors.Is() to classify an error returned by a stage or by Run.
var (
	// ErrInput covers a missing playback session, a non-numeric position and
	// an unknown scene.
	ErrInput = errors.New("invalid input")

	// ErrDispatch indicates the server rejected starting a task or job.
	ErrDispatch = errors.New("dispatch rejected")

	// ErrCorrelationTimeout indicates the awaited log message never appeared.
	ErrCorrelationTimeout = errors.New("log message not observed")

	// ErrCaptureFailed indicates the capture task reported no output.
	ErrCaptureFailed = errors.New("failed capture attempt")

	// ErrJobTimeout indicates a job did not reach a terminal state in budget.
	ErrJobTimeout = errors.New("job timed out")

	// ErrJobFailed indicates a job ended FAILED or CANCELLED.
	ErrJobFailed = errors.New("job failed")

	// ErrRecordNotFound indicates no single image matches the captured path.
	ErrRecordNotFound = errors.New("image not found")

	// ErrUpdate indicates the image lookup or update call failed.
	ErrUpdate = errors.New("image update failed")

	// ErrBusy is returned by Run while another run is in flight.
	ErrBusy = errors.New("a capture is already running")
)

// Stage names a step of a run.
type Stage string

const (
	StageFetchScene Stage = "fetch_scene"
	StageCapture    Stage = "capture"
	StageRescan     Stage = "rescan"
	StageReconcile  Stage = "reconcile"
)

// StageError records which stage ended a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// inputError wraps a human readable reason with ErrInput.
func inputError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInput, reason)
}
