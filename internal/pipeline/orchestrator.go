package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/raphaelgruber/framegrab/internal/metrics"
	"github.com/raphaelgruber/framegrab/internal/poll"
)

// State is a step of the run state machine.
type State string

const (
	StateIdle          State = "idle"
	StateFetchingScene State = "fetching_scene"
	StateCapturing     State = "capturing"
	StateRescanning    State = "rescanning"
	StateReconciling   State = "reconciling"
	StateRetrying      State = "retrying"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// User-facing messages.
const (
	msgCapturing = "Creating capture..."
	msgRetrying  = "failed meta update, retrying..."
	msgNoScene   = "scene not found"
)

// Config wires an Orchestrator.
type Config struct {
	Remote   Remote
	Notifier Notifier
	Guard    Guard
	Logger   *slog.Logger
	Metrics  *metrics.Collector

	Capture CaptureConfig
	// LogPoller drives log correlation; JobPoller drives job tracking.
	LogPoller poll.Poller
	JobPoller poll.Poller

	// OnTransition, when set, observes every state change.
	OnTransition func(State)
}

// Result describes a finished run.
type Result struct {
	SceneID   string
	FrameFile string
	ImageID   string
	ScanJobID string
	State     State
	// Reconciliations counts reconciliation attempts (at most 2).
	Reconciliations int
	Duration        time.Duration
	Err             error
}

// Orchestrator sequences the stages of one capture run. It allows a single
// run at a time.
type Orchestrator struct {
	remote     Remote
	capturer   *Capturer
	rescanner  *Rescanner
	reconciler *Reconciler
	notifier   Notifier
	guard      Guard
	metrics    *metrics.Collector
	logger     *slog.Logger
	observe    func(State)

	running atomic.Bool
}

// New creates an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pipeline")

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	guard := cfg.Guard
	if guard == nil {
		guard = NopGuard{}
	}

	logPoller := withAttemptCounter(cfg.LogPoller, cfg.Metrics)
	jobPoller := withAttemptCounter(cfg.JobPoller, cfg.Metrics)

	tracker := NewTracker(cfg.Remote, jobPoller, logger)
	correlator := NewCorrelator(cfg.Remote, logPoller, logger)

	return &Orchestrator{
		remote:     cfg.Remote,
		capturer:   NewCapturer(cfg.Remote, correlator, tracker, cfg.Capture, logger),
		rescanner:  NewRescanner(cfg.Remote, tracker, logger),
		reconciler: NewReconciler(cfg.Remote, logger),
		notifier:   notifier,
		guard:      guard,
		metrics:    cfg.Metrics,
		logger:     logger,
		observe:    cfg.OnTransition,
	}
}

func withAttemptCounter(p poll.Poller, m *metrics.Collector) poll.Poller {
	if m == nil {
		return p
	}
	next := p.OnAttempt
	p.OnAttempt = func(attempt int, waited time.Duration, status poll.Status) {
		m.Inc(metrics.CountPollAttempts)
		if next != nil {
			next(attempt, waited, status)
		}
	}
	return p
}

// Busy reports whether a run is in flight.
func (o *Orchestrator) Busy() bool {
	return o.running.Load()
}

// run holds the per-run state; the guard flag is only touched here.
type run struct {
	o      *Orchestrator
	res    *Result
	logger *slog.Logger
	start  time.Time
	guard  bool
}

func (r *run) transition(s State) {
	r.logger.Debug("state transition", "from", r.res.State, "to", s)
	r.res.State = s
	if r.o.observe != nil {
		r.o.observe(s)
	}
}

func (r *run) installGuard() {
	if r.guard {
		return
	}
	r.o.guard.Install()
	r.guard = true
}

func (r *run) removeGuard() {
	if !r.guard {
		return
	}
	r.o.guard.Remove()
	r.guard = false
}

// fail is the single exit for every failed run.
func (r *run) fail(stage Stage, err error, userMsg string) (*Result, error) {
	r.o.notifier.Dismiss()
	if userMsg == "" {
		userMsg = err.Error()
	}
	r.o.notifier.Error(userMsg)
	r.removeGuard()

	serr := &StageError{Stage: stage, Err: err}
	r.res.Err = serr
	r.res.Duration = time.Since(r.start)
	r.transition(StateFailed)

	r.logger.Error("capture run failed", "stage", stage, "error", err)
	r.o.metrics.Inc(metrics.CountRunsFailed)
	r.o.metrics.Since(metrics.OpRun, r.start, serr)
	return r.res, serr
}

func (r *run) done() (*Result, error) {
	r.removeGuard()
	r.o.notifier.Dismiss()
	r.res.Duration = time.Since(r.start)
	r.transition(StateDone)

	r.logger.Info("capture run done", "image_id", r.res.ImageID, "path", r.res.FrameFile,
		"duration_ms", r.res.Duration.Milliseconds())
	r.o.metrics.Inc(metrics.CountRunsDone)
	r.o.metrics.Since(metrics.OpRun, r.start, nil)
	return r.res, nil
}

func (r *run) timed(stage Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	r.o.metrics.Since(metrics.OpStage+string(stage), start, err)
	return err
}

// Run executes the pipeline for sceneID using pb as the playback source.
// It returns ErrBusy without side effects when another run is in flight.
// On failure the returned error is a *StageError and the Result's State is
// StateFailed.
func (o *Orchestrator) Run(ctx context.Context, sceneID string, pb Playback) (*Result, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.metrics.Inc(metrics.CountRunsRejected)
		o.logger.Warn("capture rejected, another run is in flight", "scene_id", sceneID)
		return nil, ErrBusy
	}
	defer o.running.Store(false)

	r := &run{
		o:      o,
		res:    &Result{SceneID: sceneID, State: StateIdle},
		logger: o.logger.With("scene_id", sceneID),
		start:  time.Now(),
	}
	// A panic in a collaborator must not leave the guard installed.
	defer r.removeGuard()

	r.transition(StateFetchingScene)
	var scene *Scene
	err := r.timed(StageFetchScene, func() (err error) {
		scene, err = o.remote.FetchScene(ctx, sceneID)
		return err
	})
	if err != nil {
		return r.fail(StageFetchScene, fmt.Errorf("fetch scene: %w", err), "")
	}
	if scene == nil {
		return r.fail(StageFetchScene, inputError(msgNoScene), msgNoScene)
	}

	r.transition(StateCapturing)
	o.notifier.Progress(msgCapturing)
	err = r.timed(StageCapture, func() (err error) {
		r.res.FrameFile, err = o.capturer.Capture(ctx, scene, pb)
		return err
	})
	if err != nil {
		return r.fail(StageCapture, err, "")
	}

	r.transition(StateRescanning)
	err = r.timed(StageRescan, func() error {
		job, err := o.rescanner.Rescan(ctx, r.res.FrameFile)
		if job != nil {
			r.res.ScanJobID = job.ID
		}
		return err
	})
	if err != nil {
		return r.fail(StageRescan, err, "")
	}

	r.transition(StateReconciling)
	r.installGuard()
	if err = r.reconcile(ctx, scene); err == nil {
		return r.done()
	}
	r.logger.Warn("image update failed, retrying", "error", err)
	o.metrics.Inc(metrics.CountRetries)

	r.transition(StateRetrying)
	o.notifier.Dismiss()
	o.notifier.Notice(msgRetrying)
	if err = r.reconcile(ctx, scene); err == nil {
		return r.done()
	}
	return r.fail(StageReconcile, err, "")
}

func (r *run) reconcile(ctx context.Context, scene *Scene) error {
	r.res.Reconciliations++
	return r.timed(StageReconcile, func() (err error) {
		r.res.ImageID, err = r.o.reconciler.Reconcile(ctx, scene, r.res.FrameFile)
		return err
	})
}
