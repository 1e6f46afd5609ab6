// Package server provides the local HTTP endpoint that triggers capture runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/raphaelgruber/framegrab/internal/metrics"
	"github.com/raphaelgruber/framegrab/internal/pipeline"
)

// shutdownTimeout bounds graceful shutdown; it covers a capture run in flight.
const shutdownTimeout = 2 * time.Minute

// maxBodyBytes caps the capture request body.
const maxBodyBytes = 1 << 16

// Runner runs capture pipelines; *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, sceneID string, pb pipeline.Playback) (*pipeline.Result, error)
	Busy() bool
}

// Config wires the HTTP handlers.
type Config struct {
	Runner    Runner
	Metrics   *metrics.Collector
	Logger    *slog.Logger
	Version   string
	StartTime time.Time
}

// CaptureRequest is the body of POST /scenes/{id}/capture. A missing
// position means there is no playback session.
type CaptureRequest struct {
	Position *float64 `json:"position"`
}

// CaptureResponse describes the outcome of a capture run.
type CaptureResponse struct {
	SceneID         string `json:"scene_id"`
	State           string `json:"state"`
	FrameFile       string `json:"frame_file,omitempty"`
	ImageID         string `json:"image_id,omitempty"`
	ScanJobID       string `json:"scan_job_id,omitempty"`
	Reconciliations int    `json:"reconciliations"`
	DurationMs      int64  `json:"duration_ms"`
	Stage           string `json:"stage,omitempty"`
	Error           string `json:"error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	Busy    bool   `json:"busy"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg Config) *chi.Mux {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Now()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/stats", statsHandler(cfg))
	r.Post("/scenes/{id}/capture", captureHandler(cfg))

	return r
}

func healthHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
			Busy:    cfg.Runner.Busy(),
		})
	}
}

func statsHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cfg.Metrics.Snapshot())
	}
}

func captureHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sceneID := chi.URLParam(r, "id")

		var req CaptureRequest
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read body", "INVALID_REQUEST")
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_REQUEST")
				return
			}
		}

		var pb pipeline.Playback = pipeline.PlaybackFunc(func() (float64, bool) { return 0, false })
		if req.Position != nil {
			pb = pipeline.Position(*req.Position)
		}

		// The run outlives a disconnected client so the update is never cut short.
		res, err := cfg.Runner.Run(context.WithoutCancel(r.Context()), sceneID, pb)
		if errors.Is(err, pipeline.ErrBusy) {
			writeError(w, http.StatusConflict, "a capture is already running", "BUSY")
			return
		}

		writeJSON(w, captureStatus(err), toCaptureResponse(sceneID, res, err))
	}
}

// captureStatus maps a run error to an HTTP status.
func captureStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, pipeline.ErrInput):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func toCaptureResponse(sceneID string, res *pipeline.Result, err error) CaptureResponse {
	resp := CaptureResponse{SceneID: sceneID, State: string(pipeline.StateFailed)}
	if res != nil {
		resp.State = string(res.State)
		resp.FrameFile = res.FrameFile
		resp.ImageID = res.ImageID
		resp.ScanJobID = res.ScanJobID
		resp.Reconciliations = res.Reconciliations
		resp.DurationMs = res.Duration.Milliseconds()
	}
	if err != nil {
		resp.Error = err.Error()
		var serr *pipeline.StageError
		if errors.As(err, &serr) {
			resp.Stage = string(serr.Stage)
		}
	}
	return resp
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Server wraps the HTTP server with lifecycle management.
type Server struct {
	http   *http.Server
	logger *slog.Logger
}

// New creates a server listening on addr.
func New(addr string, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		http: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(cfg),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: shutdownTimeout,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger.With("component", "server"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully, letting a
// capture run in flight finish.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
