package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/raphaelgruber/framegrab/internal/stash"
	"github.com/spf13/cobra"
)

var (
	logsFollow bool
	logsLevel  string
	logsPrefix string
	logsSince  time.Duration
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the server log",
	Long: `Print the server's in-memory log, or stream new entries with --follow.

Examples:
  framegrab logs --level error
  framegrab logs --follow --prefix "[Plugin / ImageCapture]"`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "stream new entries")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "only entries with this level (case-insensitive)")
	logsCmd.Flags().StringVar(&logsPrefix, "prefix", "", "only entries whose message starts with this prefix")
	logsCmd.Flags().DurationVar(&logsSince, "since", 0, "only entries newer than this (snapshot only)")
}

// logFilter selects log entries by level, prefix and age.
type logFilter struct {
	level  string
	prefix string
	after  time.Time
}

func (f logFilter) match(e stash.LogEntry) bool {
	if f.level != "" && !strings.EqualFold(e.Level, f.level) {
		return false
	}
	if f.prefix != "" && !strings.HasPrefix(e.Message, f.prefix) {
		return false
	}
	if !f.after.IsZero() && !e.Time.After(f.after) {
		return false
	}
	return true
}

func formatLogEntry(e stash.LogEntry) string {
	return fmt.Sprintf("%s %-8s %s", e.Time.Local().Format("15:04:05.000"), strings.ToUpper(e.Level), e.Message)
}

func runLogs(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	filter := logFilter{level: logsLevel, prefix: logsPrefix}

	if logsFollow {
		return followLogs(cmd, out, filter)
	}

	if logsSince > 0 {
		filter.after = time.Now().Add(-logsSince)
	}

	entries, err := stashClient.Logs(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch logs: %w", err)
	}
	for _, e := range entries {
		if filter.match(e) {
			fmt.Fprintln(out, formatLogEntry(e))
		}
	}
	return nil
}

func followLogs(cmd *cobra.Command, out io.Writer, filter logFilter) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := stashClient.SubscribeLogs(ctx, func(e stash.LogEntry) error {
		if filter.match(e) {
			fmt.Fprintln(out, formatLogEntry(e))
		}
		return nil
	})
	if errors.Is(err, ctx.Err()) && ctx.Err() != nil {
		return nil
	}
	return err
}
