package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/raphaelgruber/framegrab/internal/pipeline"
	"github.com/raphaelgruber/framegrab/internal/poll"
	"github.com/raphaelgruber/framegrab/internal/stash"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	Stash   StashConfig   `yaml:"stash"`
	Capture CaptureConfig `yaml:"capture"`
	Poll    PollConfig    `yaml:"poll"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// StashConfig locates the media server.
type StashConfig struct {
	URL     string        `yaml:"url" validate:"required,url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	// RateLimit is requests per second; negative disables throttling.
	RateLimit float64 `yaml:"rate_limit"`
}

// CaptureConfig names the capture plugin task and its result log line.
type CaptureConfig struct {
	PluginID  string `yaml:"plugin_id" validate:"required"`
	TaskName  string `yaml:"task_name" validate:"required"`
	Operation string `yaml:"operation" validate:"required"`
	LogPrefix string `yaml:"log_prefix"`
	LogLevel  string `yaml:"log_level" validate:"required"`
	AwaitTask bool   `yaml:"await_task"`
}

// PollConfig bounds the log and job polls.
type PollConfig struct {
	LogBudget int           `yaml:"log_budget" validate:"min=1"`
	LogBase   time.Duration `yaml:"log_base" validate:"gt=0"`
	LogCap    time.Duration `yaml:"log_cap" validate:"gte=0"`
	Settle    time.Duration `yaml:"settle" validate:"gte=0"`
	JobBudget int           `yaml:"job_budget" validate:"min=1"`
	JobBase   time.Duration `yaml:"job_base" validate:"gt=0"`
}

// ServerConfig configures the local trigger endpoint.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// LogConfig configures logging.
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level" validate:"oneof=DEBUG INFO WARN WARNING ERROR debug info warn warning error"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Stash: StashConfig{
			URL:       stash.DefaultEndpoint,
			Timeout:   stash.DefaultTimeout,
			RateLimit: stash.DefaultRateLimit,
		},
		Capture: CaptureConfig{
			PluginID:  pipeline.DefaultPluginID,
			TaskName:  pipeline.DefaultTaskName,
			Operation: pipeline.DefaultOperation,
			LogLevel:  pipeline.DefaultLogLevel,
			AwaitTask: true,
		},
		Poll: PollConfig{
			LogBudget: 20,
			LogBase:   100 * time.Millisecond,
			LogCap:    3200 * time.Millisecond,
			Settle:    500 * time.Millisecond,
			JobBudget: 20,
			JobBase:   100 * time.Millisecond,
		},
		Server: ServerConfig{Addr: "127.0.0.1:8765"},
		Log: LogConfig{
			File:  filepath.Join(os.TempDir(), "framegrab.log"),
			Level: "INFO",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file and
// environment variables, in that order, and validates the result.
func Load() (Config, error) {
	cfg := Default()

	path := Path()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Path returns the config file location: FRAMEGRAB_CONFIG, or
// $XDG_CONFIG_HOME/framegrab/config.yaml.
func Path() string {
	if p := os.Getenv("FRAMEGRAB_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "framegrab", "config.yaml")
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && os.Getenv("FRAMEGRAB_CONFIG") == "" {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Stash.URL = getEnv("STASH_URL", c.Stash.URL)
	c.Stash.APIKey = getEnv("STASH_API_KEY", c.Stash.APIKey)
	c.Capture.PluginID = getEnv("FRAMEGRAB_PLUGIN_ID", c.Capture.PluginID)
	c.Server.Addr = getEnv("FRAMEGRAB_ADDR", c.Server.Addr)
	c.Log.File = getEnv("FRAMEGRAB_LOG_FILE", c.Log.File)
	c.Log.Level = getEnv("FRAMEGRAB_LOG_LEVEL", c.Log.Level)

	if v := os.Getenv("FRAMEGRAB_RATE_LIMIT"); v != "" {
		rl, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FRAMEGRAB_RATE_LIMIT: %w", err)
		}
		c.Stash.RateLimit = rl
	}
	if v := os.Getenv("FRAMEGRAB_AWAIT_TASK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FRAMEGRAB_AWAIT_TASK: %w", err)
		}
		c.Capture.AwaitTask = b
	}
	return nil
}

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c Config) LogLevel() slog.Level {
	return parseLogLevel(c.Log.Level)
}

// StashOptions returns the client options for the configured server.
func (c Config) StashOptions() stash.Options {
	return stash.Options{
		Endpoint:  c.Stash.URL,
		APIKey:    c.Stash.APIKey,
		Timeout:   c.Stash.Timeout,
		RateLimit: c.Stash.RateLimit,
	}
}

// PipelineCapture returns the capture stage settings.
func (c Config) PipelineCapture() pipeline.CaptureConfig {
	return pipeline.CaptureConfig{
		PluginID:  c.Capture.PluginID,
		TaskName:  c.Capture.TaskName,
		Operation: c.Capture.Operation,
		LogPrefix: c.Capture.LogPrefix,
		LogLevel:  c.Capture.LogLevel,
		AwaitTask: c.Capture.AwaitTask,
	}
}

// LogPoller returns the exponential poller used for log correlation.
func (c Config) LogPoller() poll.Poller {
	schedule := poll.Exponential(c.Poll.LogBase)
	if c.Poll.LogCap > 0 {
		schedule = poll.Capped(schedule, c.Poll.LogCap)
	}
	return poll.Poller{
		Schedule:    schedule,
		MaxAttempts: c.Poll.LogBudget,
		Settle:      c.Poll.Settle,
	}
}

// JobPoller returns the linear poller used for job tracking.
func (c Config) JobPoller() poll.Poller {
	return poll.Poller{
		Schedule:    poll.Linear(c.Poll.JobBase),
		MaxAttempts: c.Poll.JobBudget,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
