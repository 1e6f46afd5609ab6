package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchLog(t *testing.T) {
	ref := time.Unix(100, 0)
	entries := []LogEntry{
		{Time: time.Unix(50, 0), Level: "Info", Message: "X=old"},
		{Time: time.Unix(150, 0), Level: "Warn", Message: "X=warn"},
		{Time: time.Unix(200, 0), Level: "Info", Message: "X=42"},
		{Time: time.Unix(300, 0), Level: "Info", Message: "X=later"},
	}

	got, ok := MatchLog(entries, "X=", "Info", ref)
	require.True(t, ok)
	assert.Equal(t, "42", got)
}

func TestMatchLog_Filtering(t *testing.T) {
	ref := time.Unix(100, 0)

	tests := []struct {
		name    string
		entries []LogEntry
		want    string
		ok      bool
	}{
		{"empty log", nil, "", false},
		{"timestamp equal to reference is excluded", []LogEntry{{Time: ref, Level: "Info", Message: "X=1"}}, "", false},
		{"wrong prefix", []LogEntry{{Time: time.Unix(101, 0), Level: "Info", Message: "Y=1"}}, "", false},
		{"prefix not at start", []LogEntry{{Time: time.Unix(101, 0), Level: "Info", Message: " X=1"}}, "", false},
		{"trims whitespace", []LogEntry{{Time: time.Unix(101, 0), Level: "Info", Message: "X=   7  "}}, "7", true},
		{"level compared case-insensitively", []LogEntry{{Time: time.Unix(101, 0), Level: "info", Message: "X=8"}}, "8", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MatchLog(tt.entries, "X=", "Info", ref)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCorrelatorAwait_FindsMessageOnLaterTick(t *testing.T) {
	ref := time.Now()
	remote := newFakeRemote()
	remote.logsFor = func(n int) []LogEntry {
		if n < 3 {
			return []LogEntry{{Time: ref.Add(-time.Second), Level: "Info", Message: "P old"}}
		}
		return []LogEntry{{Time: ref.Add(time.Second), Level: "Info", Message: "P new"}}
	}

	c := NewCorrelator(remote, testPoller(20), nil)
	got, err := c.Await(context.Background(), "P", "Info", ref)

	require.NoError(t, err)
	assert.Equal(t, "new", got)
	assert.Equal(t, 3, remote.logCalls)
}

func TestCorrelatorAwait_TimeoutNamesPrefix(t *testing.T) {
	remote := newFakeRemote()
	c := NewCorrelator(remote, testPoller(20), nil)

	_, err := c.Await(context.Background(), "[Plugin] done =", "Info", time.Now())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrelationTimeout)
	assert.Contains(t, err.Error(), "[Plugin] done =")
	assert.Equal(t, 20, remote.logCalls)
}

func TestCorrelatorAwait_FetchErrorStopsPolling(t *testing.T) {
	remote := newFakeRemote()
	remote.logsErr = errRemote
	c := NewCorrelator(remote, testPoller(20), nil)

	_, err := c.Await(context.Background(), "P", "Info", time.Now())

	assert.True(t, errors.Is(err, errRemote))
	assert.NotErrorIs(t, err, ErrCorrelationTimeout)
	assert.Equal(t, 1, remote.logCalls)
}
