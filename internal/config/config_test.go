package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raphaelgruber/framegrab/internal/stash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every config source at an empty temp directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	for _, key := range []string{
		"FRAMEGRAB_CONFIG", "STASH_URL", "STASH_API_KEY", "FRAMEGRAB_PLUGIN_ID",
		"FRAMEGRAB_ADDR", "FRAMEGRAB_LOG_FILE", "FRAMEGRAB_LOG_LEVEL",
		"FRAMEGRAB_RATE_LIMIT", "FRAMEGRAB_AWAIT_TASK",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, stash.DefaultEndpoint, cfg.Stash.URL)
	assert.Equal(t, "imagecapture", cfg.Capture.PluginID)
	assert.True(t, cfg.Capture.AwaitTask)
	assert.Equal(t, 20, cfg.Poll.LogBudget)
	assert.Equal(t, 20, cfg.Poll.JobBudget)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll.Settle)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "framegrab", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`
stash:
  url: http://stash.lan:9999/graphql
  api_key: from-file
capture:
  await_task: false
poll:
  settle: 1s
  log_budget: 5
log:
  level: debug
`), 0o644))
	t.Setenv("STASH_API_KEY", "from-env")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "http://stash.lan:9999/graphql", cfg.Stash.URL)
	assert.Equal(t, "from-env", cfg.Stash.APIKey)
	assert.False(t, cfg.Capture.AwaitTask)
	assert.Equal(t, time.Second, cfg.Poll.Settle)
	assert.Equal(t, 5, cfg.Poll.LogBudget)
	assert.Equal(t, 20, cfg.Poll.JobBudget, "untouched fields keep defaults")
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	dir := isolate(t)
	t.Setenv("FRAMEGRAB_CONFIG", filepath.Join(dir, "missing.yaml"))

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad url", env: map[string]string{"STASH_URL": "not a url"}},
		{name: "bad level", env: map[string]string{"FRAMEGRAB_LOG_LEVEL": "LOUD"}},
		{name: "bad rate", env: map[string]string{"FRAMEGRAB_RATE_LIMIT": "fast"}},
		{name: "bad addr", env: map[string]string{"FRAMEGRAB_ADDR": "nowhere"}},
		{name: "bad bool", env: map[string]string{"FRAMEGRAB_AWAIT_TASK": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()

			assert.Error(t, err)
		})
	}
}

func TestPollers(t *testing.T) {
	cfg := Default()

	logPoller := cfg.LogPoller()
	assert.Equal(t, 20, logPoller.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, logPoller.Settle)
	assert.Equal(t, 100*time.Millisecond, logPoller.Schedule(0))
	assert.Equal(t, 3200*time.Millisecond, logPoller.Schedule(19), "capped")

	jobPoller := cfg.JobPoller()
	assert.Equal(t, 20, jobPoller.MaxAttempts)
	assert.Zero(t, jobPoller.Settle)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLogLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("whatever"))
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("capture run done", "scene_id", "1")

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "scene_id=1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &rec))
	assert.Equal(t, "capture run done", rec["msg"])
}

func TestSetupLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framegrab.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)

	logger.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
