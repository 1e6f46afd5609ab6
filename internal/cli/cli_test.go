package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/raphaelgruber/framegrab/internal/metrics"
	"github.com/raphaelgruber/framegrab/internal/pipeline"
	"github.com/raphaelgruber/framegrab/internal/stash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "10", want: 10},
		{in: "10.5", want: 10.5},
		{in: "1m30s", want: 90},
		{in: "1500ms", want: 1.5},
		{in: "1:30", want: 90},
		{in: "1:02:03", want: 3723},
		{in: "0:07.25", want: 7.25},
		{in: "1:75", wantErr: true},
		{in: "NaN", wantErr: true},
		{in: "Inf", wantErr: true},
		{in: "soon", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePosition(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, pipeline.ErrInput)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestTerminalNotifier_Plain(t *testing.T) {
	var buf bytes.Buffer
	n := &terminalNotifier{out: &buf, theme: defaultTheme}

	n.Progress("Creating capture...")
	n.Notice("failed meta update, retrying...")
	n.Dismiss()
	n.Error("scene not found")

	assert.Equal(t, "Creating capture...\nfailed meta update, retrying...\nError: scene not found\n", buf.String())
}

func TestTerminalNotifier_StyledDismissClearsProgress(t *testing.T) {
	var buf bytes.Buffer
	n := &terminalNotifier{out: &buf, styled: true, theme: defaultTheme}

	n.Progress("Creating capture...")
	assert.True(t, n.pending)
	n.Dismiss()
	assert.False(t, n.pending)
	assert.True(t, strings.HasSuffix(buf.String(), clearLine))

	buf.Reset()
	n.Dismiss()
	assert.Empty(t, buf.String(), "nothing to clear")
}

func TestSignalGuard_InterceptsWhileInstalled(t *testing.T) {
	var buf syncBuffer
	g := newSignalGuard(&buf)

	g.Install()
	g.Install() // idempotent
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))
	require.Eventually(t, func() bool {
		_, _, intercepted := g.counts()
		return intercepted == 1
	}, 2*time.Second, 10*time.Millisecond)
	g.Remove()
	g.Remove()

	installs, removes, _ := g.counts()
	assert.Equal(t, 1, installs)
	assert.Equal(t, 1, removes)
	assert.Contains(t, buf.String(), guardWarning)
}

func TestLogFilter(t *testing.T) {
	now := time.Now()
	entry := stash.LogEntry{Time: now, Level: "Info", Message: "[Plugin / ImageCapture] captureFrame = {}"}

	assert.True(t, logFilter{}.match(entry))
	assert.True(t, logFilter{level: "info"}.match(entry))
	assert.False(t, logFilter{level: "error"}.match(entry))
	assert.True(t, logFilter{prefix: "[Plugin / ImageCapture]"}.match(entry))
	assert.False(t, logFilter{prefix: "[Scan]"}.match(entry))
	assert.True(t, logFilter{after: now.Add(-time.Second)}.match(entry))
	assert.False(t, logFilter{after: now}.match(entry))
}

func TestJobFraction(t *testing.T) {
	p := func(v float64) *float64 { return &v }

	assert.Zero(t, jobFraction(nil))
	assert.Zero(t, jobFraction(&stash.Job{}))
	assert.Equal(t, 0.25, jobFraction(&stash.Job{Progress: p(0.25)}))
	assert.Equal(t, 1.0, jobFraction(&stash.Job{Progress: p(1.5)}))
	assert.Zero(t, jobFraction(&stash.Job{Progress: p(-1)}))
}

type fakeJobs struct{}

func (fakeJobs) FindJob(ctx context.Context, id string) (*stash.Job, error) { return nil, nil }

func TestProgressModel_TerminalStates(t *testing.T) {
	msg := "disk full"
	tests := []struct {
		name    string
		update  jobUpdateMsg
		wantErr string
	}{
		{name: "finished", update: jobUpdateMsg{job: &stash.Job{ID: "1", Status: stash.JobStatusFinished}}},
		{name: "dropped from queue", update: jobUpdateMsg{}},
		{name: "failed", update: jobUpdateMsg{job: &stash.Job{ID: "1", Status: stash.JobStatusFailed, Error: &msg}}, wantErr: "disk full"},
		{name: "cancelled", update: jobUpdateMsg{job: &stash.Job{ID: "1", Status: stash.JobStatusCancelled}}, wantErr: "job CANCELLED"},
		{name: "fetch error", update: jobUpdateMsg{err: errors.New("offline")}, wantErr: "offline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newProgressModel(fakeJobs{}, &stash.Job{ID: "1", Status: stash.JobStatusRunning})

			m, cmd := m.applyUpdate(tt.update)

			assert.True(t, m.done)
			assert.NotNil(t, cmd)
			if tt.wantErr == "" {
				assert.NoError(t, m.err)
				assert.Contains(t, m.renderContent(), "Completed")
				return
			}
			require.Error(t, m.err)
			assert.Contains(t, m.err.Error(), tt.wantErr)
		})
	}
}

func TestProgressModel_RunningKeepsPolling(t *testing.T) {
	m := newProgressModel(fakeJobs{}, &stash.Job{ID: "1", Status: stash.JobStatusReady})
	half := 0.5

	m, cmd := m.applyUpdate(jobUpdateMsg{job: &stash.Job{ID: "1", Status: stash.JobStatusRunning, Progress: &half, Description: "Scanning..."}})

	assert.False(t, m.done)
	assert.NotNil(t, cmd)
	out := m.renderContent()
	assert.Contains(t, out, "RUNNING")
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "Scanning...")
}

func TestPrintStats(t *testing.T) {
	m := metrics.NewCollector()
	m.RecordTiming(metrics.OpRemote+"Logs", 12*time.Millisecond, false)
	m.RecordTiming(metrics.OpRun, time.Second, true)
	m.Inc(metrics.CountPollAttempts)

	var buf bytes.Buffer
	printStats(&buf, m.Snapshot())

	out := buf.String()
	assert.Contains(t, out, "remote:Logs")
	assert.Contains(t, out, "run")
	assert.Contains(t, out, "poll_attempts")
	assert.Less(t, strings.Index(out, "remote:Logs"), strings.Index(out, "run "), "sorted by name")
}
