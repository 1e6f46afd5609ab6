package stash

import (
	"context"
	"strings"

	"github.com/raphaelgruber/framegrab/internal/pipeline"
)

// Remote adapts a Client to pipeline.Remote.
type Remote struct {
	client *Client
}

// NewRemote wraps client for use by the capture pipeline.
func NewRemote(client *Client) *Remote {
	return &Remote{client: client}
}

var _ pipeline.Remote = (*Remote)(nil)

func (r *Remote) FetchScene(ctx context.Context, id string) (*pipeline.Scene, error) {
	scene, err := r.client.FindScene(ctx, id)
	if err != nil || scene == nil {
		return nil, err
	}
	return toPipelineScene(scene), nil
}

func (r *Remote) FindImagesByPath(ctx context.Context, path string) ([]pipeline.Image, error) {
	images, err := r.client.FindImagesByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	out := make([]pipeline.Image, 0, len(images))
	for _, img := range images {
		p := path
		if len(img.Files) > 0 {
			p = img.Files[0].Path
		}
		out = append(out, pipeline.Image{ID: img.ID, Path: p})
	}
	return out, nil
}

func (r *Remote) UpdateImage(ctx context.Context, id string, u pipeline.ImageUpdate) (string, error) {
	return r.client.UpdateImage(ctx, ImageUpdateInput{
		ID:         id,
		TagIDs:     nonNil(u.TagIDs),
		GalleryIDs: nonNil(u.GalleryIDs),
		Date:       u.Date,
	})
}

func (r *Remote) DispatchRescan(ctx context.Context, dir string) (string, error) {
	return r.client.MetadataScan(ctx, []string{dir})
}

func (r *Remote) DispatchTask(ctx context.Context, task pipeline.Task) (string, error) {
	return r.client.RunPluginTask(ctx, task.PluginID, task.Name, PluginArgs(task.Args))
}

func (r *Remote) FetchJob(ctx context.Context, id string) (*pipeline.Job, error) {
	job, err := r.client.FindJob(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	return toPipelineJob(job), nil
}

func (r *Remote) FetchLogs(ctx context.Context) ([]pipeline.LogEntry, error) {
	entries, err := r.client.Logs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]pipeline.LogEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, pipeline.LogEntry{Time: e.Time, Level: e.Level, Message: e.Message})
	}
	return out, nil
}

func toPipelineScene(s *Scene) *pipeline.Scene {
	out := &pipeline.Scene{ID: s.ID}
	if s.Date != nil {
		out.Date = strings.TrimSpace(*s.Date)
	}
	for _, f := range s.Files {
		out.Files = append(out.Files, pipeline.VideoFile{Path: f.Path, FrameRate: f.FrameRate})
	}
	for _, t := range s.Tags {
		out.TagIDs = append(out.TagIDs, t.ID)
	}
	for _, g := range s.Galleries {
		out.GalleryIDs = append(out.GalleryIDs, g.ID)
	}
	return out
}

func toPipelineJob(j *Job) *pipeline.Job {
	out := &pipeline.Job{ID: j.ID, Status: pipeline.JobStatus(j.Status)}
	if j.Progress != nil {
		out.Progress = *j.Progress
	}
	return out
}

// nonNil keeps empty id lists serialised as [] so the server clears them.
func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
