package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainingDir(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/a/b/c_00240.jpg", "/a/b/"},
		{"/c.jpg", "/"},
		{"c.jpg", "/"},
		{"/a/b/", "/a/b/"},
		{`C:\media\clips\x_001.jpg`, `C:\media\clips\`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainingDir(tt.path))
		})
	}
}

func TestRescan(t *testing.T) {
	remote := newFakeRemote()
	remote.rescanJobID = "5"
	remote.jobsFor = func(id string, n int) *Job {
		return &Job{ID: id, Status: JobFinished}
	}

	job, err := NewRescanner(remote, NewTracker(remote, testPoller(20), nil), nil).
		Rescan(context.Background(), "/a/b/c_00240.jpg")

	require.NoError(t, err)
	assert.Equal(t, "5", job.ID)
	assert.Equal(t, []string{"/a/b/"}, remote.rescanDirs)
}

func TestRescan_Failures(t *testing.T) {
	t.Run("dispatch rejected", func(t *testing.T) {
		remote := newFakeRemote()
		remote.rescanErr = errRemote

		_, err := NewRescanner(remote, NewTracker(remote, testPoller(20), nil), nil).Rescan(context.Background(), "/a/b.jpg")

		assert.ErrorIs(t, err, ErrDispatch)
		assert.Empty(t, remote.jobCalls)
	})

	t.Run("job failed", func(t *testing.T) {
		remote := newFakeRemote()
		remote.rescanJobID = "5"
		remote.jobsFor = func(id string, n int) *Job { return &Job{ID: id, Status: JobFailed} }

		_, err := NewRescanner(remote, NewTracker(remote, testPoller(20), nil), nil).Rescan(context.Background(), "/a/b.jpg")

		assert.ErrorIs(t, err, ErrJobFailed)
	})

	t.Run("job timed out", func(t *testing.T) {
		remote := newFakeRemote()
		remote.rescanJobID = "5"
		remote.jobsFor = func(id string, n int) *Job { return &Job{ID: id, Status: JobRunning} }

		_, err := NewRescanner(remote, NewTracker(remote, testPoller(3), nil), nil).Rescan(context.Background(), "/a/b.jpg")

		assert.ErrorIs(t, err, ErrJobTimeout)
	})
}

func TestUpdateFor(t *testing.T) {
	scene := testScene()
	u := UpdateFor(scene)
	assert.Equal(t, []string{"t1"}, u.TagIDs)
	assert.Equal(t, []string{"g1"}, u.GalleryIDs)
	require.NotNil(t, u.Date)
	assert.Equal(t, "2024-01-01", *u.Date)

	scene.Date = ""
	assert.Nil(t, UpdateFor(scene).Date, "an undated scene leaves the image date alone")
}

func TestReconcile(t *testing.T) {
	remote := newFakeRemote()
	remote.images = []Image{{ID: "77", Path: "/a/b/c_00240.jpg"}, {ID: "78", Path: "/a/b/other.jpg"}}

	id, err := NewReconciler(remote, nil).Reconcile(context.Background(), testScene(), "/a/b/c_00240.jpg")

	require.NoError(t, err)
	assert.Equal(t, "77", id)
	assert.Equal(t, []string{"77"}, remote.updatedIDs)
	require.Len(t, remote.updates, 1)
	assert.Equal(t, []string{"t1"}, remote.updates[0].TagIDs)
}

func TestReconcile_Failures(t *testing.T) {
	t.Run("no match", func(t *testing.T) {
		remote := newFakeRemote()
		_, err := NewReconciler(remote, nil).Reconcile(context.Background(), testScene(), "/missing.jpg")
		assert.ErrorIs(t, err, ErrRecordNotFound)
		assert.Equal(t, 1, remote.findCalls, "a single attempt per call")
		assert.Empty(t, remote.updates)
	})

	t.Run("ambiguous match", func(t *testing.T) {
		remote := newFakeRemote()
		remote.images = []Image{{ID: "1", Path: "/p.jpg"}, {ID: "2", Path: "/p.jpg"}}
		_, err := NewReconciler(remote, nil).Reconcile(context.Background(), testScene(), "/p.jpg")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("lookup error", func(t *testing.T) {
		remote := newFakeRemote()
		remote.findErrs = []error{errRemote}
		_, err := NewReconciler(remote, nil).Reconcile(context.Background(), testScene(), "/p.jpg")
		assert.ErrorIs(t, err, ErrUpdate)
		assert.ErrorIs(t, err, errRemote)
	})

	t.Run("update error", func(t *testing.T) {
		remote := newFakeRemote()
		remote.images = []Image{{ID: "1", Path: "/p.jpg"}}
		remote.updateErrs = []error{errRemote}
		_, err := NewReconciler(remote, nil).Reconcile(context.Background(), testScene(), "/p.jpg")
		assert.ErrorIs(t, err, ErrUpdate)
	})
}
