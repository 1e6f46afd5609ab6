// Package cli provides the command-line interface for framegrab.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/framegrab/internal/config"
	"github.com/raphaelgruber/framegrab/internal/metrics"
	"github.com/raphaelgruber/framegrab/internal/pipeline"
	"github.com/raphaelgruber/framegrab/internal/stash"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, logger and Stash client
	cfg         config.Config
	logger      *slog.Logger
	stashClient *stash.Client
	collector   *metrics.Collector

	closeLog = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "framegrab",
	Short: "Capture still frames from Stash scenes",
	Long: `Framegrab captures a still image from a scene on a Stash server, waits for
the server to index it, and copies the scene's tags, galleries and date onto
the new image.

Configuration is read from $XDG_CONFIG_HOME/framegrab/config.yaml (or
FRAMEGRAB_CONFIG) and overridden by STASH_URL, STASH_API_KEY and the other
FRAMEGRAB_* environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		level := cfg.LogLevel()
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLog = config.SetupLogger(cfg.Log.File, level)

		if err := stash.Validate(); err != nil {
			return fmt.Errorf("operation documents: %w", err)
		}

		collector = metrics.NewCollector()
		opts := cfg.StashOptions()
		opts.Logger = logger
		opts.Metrics = collector
		stashClient = stash.New(opts)

		logger.Debug("configured", "endpoint", stashClient.Endpoint(), "config", config.Path())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	},
}

// newOrchestrator wires the capture pipeline against the configured server.
func newOrchestrator(notifier pipeline.Notifier, guard pipeline.Guard) *pipeline.Orchestrator {
	return pipeline.New(pipeline.Config{
		Remote:    stash.NewRemote(stashClient),
		Notifier:  notifier,
		Guard:     guard,
		Logger:    logger,
		Metrics:   collector,
		Capture:   cfg.PipelineCapture(),
		LogPoller: cfg.LogPoller(),
		JobPoller: cfg.JobPoller(),
	})
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "framegrab %s\n", Version)
	},
}
