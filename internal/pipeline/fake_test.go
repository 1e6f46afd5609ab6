package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/raphaelgruber/framegrab/internal/poll"
)

var errRemote = errors.New("remote unavailable")

// fakeRemote is a scripted in-memory Remote.
type fakeRemote struct {
	mu sync.Mutex

	scene    *Scene
	sceneErr error

	// logsFor returns the log snapshot for the n-th FetchLogs call (1-based).
	logsFor func(n int) []LogEntry
	logsErr error

	taskJobID string
	taskErr   error
	tasks     []Task

	rescanJobID string
	rescanErr   error
	rescanDirs  []string

	// jobsFor returns the job for the n-th FetchJob call of an id (1-based).
	jobsFor  func(id string, n int) *Job
	jobErr   error
	jobCalls map[string]int

	images    []Image
	findErrs  []error // consumed one per FindImagesByPath call
	findCalls int

	updateErrs []error // consumed one per UpdateImage call
	updates    []ImageUpdate
	updatedIDs []string

	logCalls int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{jobCalls: map[string]int{}}
}

func (f *fakeRemote) FetchScene(ctx context.Context, id string) (*Scene, error) {
	if f.sceneErr != nil {
		return nil, f.sceneErr
	}
	if f.scene == nil || f.scene.ID != id {
		return nil, nil
	}
	return f.scene, nil
}

func (f *fakeRemote) FindImagesByPath(ctx context.Context, path string) ([]Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if len(f.findErrs) > 0 {
		err := f.findErrs[0]
		f.findErrs = f.findErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	var out []Image
	for _, img := range f.images {
		if img.Path == path {
			out = append(out, img)
		}
	}
	return out, nil
}

func (f *fakeRemote) UpdateImage(ctx context.Context, id string, u ImageUpdate) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return "", err
		}
	}
	f.updates = append(f.updates, u)
	f.updatedIDs = append(f.updatedIDs, id)
	return id, nil
}

func (f *fakeRemote) DispatchRescan(ctx context.Context, dir string) (string, error) {
	f.rescanDirs = append(f.rescanDirs, dir)
	if f.rescanErr != nil {
		return "", f.rescanErr
	}
	return f.rescanJobID, nil
}

func (f *fakeRemote) DispatchTask(ctx context.Context, task Task) (string, error) {
	f.tasks = append(f.tasks, task)
	if f.taskErr != nil {
		return "", f.taskErr
	}
	return f.taskJobID, nil
}

func (f *fakeRemote) FetchJob(ctx context.Context, id string) (*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.jobErr != nil {
		return nil, f.jobErr
	}
	f.jobCalls[id]++
	if f.jobsFor == nil {
		return nil, nil
	}
	return f.jobsFor(id, f.jobCalls[id]), nil
}

func (f *fakeRemote) FetchLogs(ctx context.Context) ([]LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logCalls++
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	if f.logsFor == nil {
		return nil, nil
	}
	return f.logsFor(f.logCalls), nil
}

// recordingNotifier remembers every call in order.
type recordingNotifier struct {
	calls []string
}

func (n *recordingNotifier) Progress(msg string) { n.calls = append(n.calls, "progress:"+msg) }
func (n *recordingNotifier) Notice(msg string)   { n.calls = append(n.calls, "notice:"+msg) }
func (n *recordingNotifier) Error(msg string)    { n.calls = append(n.calls, "error:"+msg) }
func (n *recordingNotifier) Dismiss()            { n.calls = append(n.calls, "dismiss") }

func (n *recordingNotifier) errors() []string {
	var out []string
	for _, c := range n.calls {
		if len(c) > 6 && c[:6] == "error:" {
			out = append(out, c[6:])
		}
	}
	return out
}

// countingGuard counts installs and removes and tracks the current state.
type countingGuard struct {
	installs  int
	removes   int
	installed bool
}

func (g *countingGuard) Install() {
	g.installs++
	g.installed = true
}

func (g *countingGuard) Remove() {
	g.removes++
	g.installed = false
}

func instantSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func testPoller(budget int) poll.Poller {
	return poll.Poller{
		Schedule:    poll.Linear(100 * time.Millisecond),
		MaxAttempts: budget,
		Sleep:       instantSleep,
	}
}

func testScene() *Scene {
	return &Scene{
		ID:         "1",
		Date:       "2024-01-01",
		Files:      []VideoFile{{FrameRate: 24, Path: "/a/b/c.mp4"}},
		TagIDs:     []string{"t1"},
		GalleryIDs: []string{"g1"},
	}
}

func captureLog(at time.Time, path string) LogEntry {
	return LogEntry{
		Time:    at,
		Level:   "Info",
		Message: DefaultLogPrefix + ` {"result": "` + path + `"}`,
	}
}
