package cli

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/raphaelgruber/framegrab/internal/metrics"
	"github.com/raphaelgruber/framegrab/internal/pipeline"
	"github.com/raphaelgruber/framegrab/internal/stash"
	"github.com/spf13/cobra"
)

var (
	captureAt    string
	captureStats bool
)

var captureCmd = &cobra.Command{
	Use:   "capture <scene-id|scene-url>",
	Short: "Capture a frame and copy the scene's metadata onto it",
	Long: `Capture the frame at the given position of a scene, wait for Stash to index
the image, then copy the scene's tags, galleries and date onto it.

The position accepts seconds (10.5), a duration (1m30s) or a clock
position (1:30, 0:01:30). Without --at there is no playback position and the
capture fails.

Examples:
  framegrab capture 42 --at 10
  framegrab capture http://localhost:9999/scenes/42 --at 1m30s --stats`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().StringVar(&captureAt, "at", "", "playback position")
	captureCmd.Flags().BoolVar(&captureStats, "stats", false, "print request and stage timings")
}

func runCapture(cmd *cobra.Command, args []string) error {
	sceneID, err := stash.ParseSceneRef(args[0])
	if err != nil {
		return err
	}

	var pb pipeline.Playback = pipeline.PlaybackFunc(func() (float64, bool) { return 0, false })
	if cmd.Flags().Changed("at") {
		pos, err := ParsePosition(captureAt)
		if err != nil {
			return err
		}
		pb = pipeline.Position(pos)
	}

	guard := newSignalGuard(os.Stderr)
	orch := newOrchestrator(newTerminalNotifier(), guard)

	res, err := orch.Run(cmd.Context(), sceneID, pb)

	installs, removes, intercepted := guard.counts()
	logger.Debug("guard lifecycle", "installs", installs, "removes", removes, "intercepted", intercepted)

	if captureStats {
		printStats(cmd.OutOrStdout(), collector.Snapshot())
	}
	if err != nil {
		// The notifier already showed the failure.
		return errReported
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Captured %s\n", res.FrameFile)
	fmt.Fprintf(cmd.OutOrStdout(), "  Image: %s\n", res.ImageID)
	fmt.Fprintf(cmd.OutOrStdout(), "  Scan job: %s\n", res.ScanJobID)
	fmt.Fprintf(cmd.OutOrStdout(), "  Duration: %s\n", res.Duration.Round(time.Millisecond))
	return nil
}

// errReported marks a failure the user has already been shown.
var errReported = errors.New("capture failed")

// IsReported reports whether err was already shown to the user.
func IsReported(err error) bool {
	return errors.Is(err, errReported)
}

// ParsePosition converts seconds, a Go duration or a clock position to
// seconds.
func ParsePosition(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: position %q is not a number", pipeline.ErrInput, s)
		}
		return v, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d.Seconds(), nil
	}
	if v, ok := parseClock(s); ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: invalid position %q", pipeline.ErrInput, s)
}

// parseClock parses m:ss, m:ss.f and h:mm:ss.
func parseClock(s string) (float64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	var total float64
	for i, p := range parts {
		last := i == len(parts)-1
		var v float64
		if last {
			f, err := strconv.ParseFloat(p, 64)
			if err != nil || f < 0 || f >= 60 {
				return 0, false
			}
			v = f
		} else {
			n, err := strconv.ParseUint(p, 10, 32)
			if err != nil || (i > 0 && n >= 60) {
				return 0, false
			}
			v = float64(n)
		}
		total = total*60 + v
	}
	return total, true
}

// printStats writes a timing table for a metrics snapshot.
func printStats(w io.Writer, snap metrics.Snapshot) {
	fmt.Fprintf(w, "\n%-32s %6s %6s %10s %10s %10s\n", "OPERATION", "COUNT", "ERRORS", "AVG", "MIN", "MAX")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, op := range snap.Operations {
		fmt.Fprintf(w, "%-32s %6d %6d %10s %10s %10s\n", op.Name, op.Count, op.Errors,
			fmt.Sprintf("%.1fms", op.AvgTimeMs),
			fmt.Sprintf("%dms", op.MinTimeMs),
			fmt.Sprintf("%dms", op.MaxTimeMs))
	}
	if len(snap.Counters) > 0 {
		fmt.Fprintln(w)
		for _, name := range sortedKeys(snap.Counters) {
			fmt.Fprintf(w, "%-32s %6d\n", name, snap.Counters[name])
		}
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
