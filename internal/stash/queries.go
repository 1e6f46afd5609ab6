package stash

import (
	"context"
	"sort"
)

// =============================================================================
// SCENE / IMAGE OPERATIONS
// =============================================================================

const findSceneQuery = `
	query FindScene($id: ID!) {
		findScene(id: $id) {
			id title date
			files { path frame_rate duration }
			tags { id }
			galleries { id }
		}
	}
`

// FindScene retrieves a scene by ID. Returns nil if no scene has the ID.
func (c *Client) FindScene(ctx context.Context, id string) (*Scene, error) {
	var result struct {
		FindScene *Scene `json:"findScene"`
	}
	if err := c.Execute(ctx, findSceneQuery, map[string]any{"id": id}, &result); err != nil {
		return nil, err
	}
	return result.FindScene, nil
}

const findImagesByPathQuery = `
	query FindImagesByPath($filter: FindFilterType, $image_filter: ImageFilterType) {
		findImages(filter: $filter, image_filter: $image_filter) {
			count
			images { id title date files { path } }
		}
	}
`

// FindImagesByPath returns every image whose path equals path.
func (c *Client) FindImagesByPath(ctx context.Context, path string) ([]Image, error) {
	vars := map[string]any{
		"filter": map[string]any{"per_page": -1},
		"image_filter": map[string]any{
			"path": map[string]any{"value": path, "modifier": "EQUALS"},
		},
	}

	var result struct {
		FindImages struct {
			Count  int     `json:"count"`
			Images []Image `json:"images"`
		} `json:"findImages"`
	}
	if err := c.Execute(ctx, findImagesByPathQuery, vars, &result); err != nil {
		return nil, err
	}
	return result.FindImages.Images, nil
}

const imageUpdateMutation = `
	mutation ImageUpdate($input: ImageUpdateInput!) {
		imageUpdate(input: $input) {
			id
		}
	}
`

// UpdateImage applies input and returns the updated image ID.
func (c *Client) UpdateImage(ctx context.Context, input ImageUpdateInput) (string, error) {
	var result struct {
		ImageUpdate *IDRef `json:"imageUpdate"`
	}
	if err := c.Execute(ctx, imageUpdateMutation, map[string]any{"input": input}, &result); err != nil {
		return "", err
	}
	if result.ImageUpdate == nil {
		return input.ID, nil
	}
	return result.ImageUpdate.ID, nil
}

// =============================================================================
// TASK / JOB OPERATIONS
// =============================================================================

const metadataScanMutation = `
	mutation MetadataScan($input: ScanMetadataInput!) {
		metadataScan(input: $input)
	}
`

// MetadataScan starts a scan of the given paths and returns the job ID.
func (c *Client) MetadataScan(ctx context.Context, paths []string) (string, error) {
	var result struct {
		MetadataScan string `json:"metadataScan"`
	}
	vars := map[string]any{"input": map[string]any{"paths": paths}}
	if err := c.Execute(ctx, metadataScanMutation, vars, &result); err != nil {
		return "", err
	}
	return result.MetadataScan, nil
}

const runPluginTaskMutation = `
	mutation RunPluginTask($plugin_id: ID!, $task_name: String!, $args: [PluginArgInput!]) {
		runPluginTask(plugin_id: $plugin_id, task_name: $task_name, args: $args)
	}
`

// PluginArgs converts a string map to plugin arguments sorted by key.
func PluginArgs(args map[string]string) []PluginArg {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]PluginArg, 0, len(keys))
	for _, k := range keys {
		v := args[k]
		out = append(out, PluginArg{Key: k, Value: PluginValue{Str: &v}})
	}
	return out
}

// RunPluginTask starts a plugin task and returns the job ID the server
// assigned, which is empty on servers that do not report one.
func (c *Client) RunPluginTask(ctx context.Context, pluginID, taskName string, args []PluginArg) (string, error) {
	var result struct {
		RunPluginTask *string `json:"runPluginTask"`
	}
	vars := map[string]any{
		"plugin_id": pluginID,
		"task_name": taskName,
		"args":      args,
	}
	if err := c.Execute(ctx, runPluginTaskMutation, vars, &result); err != nil {
		return "", err
	}
	if result.RunPluginTask == nil {
		return "", nil
	}
	return *result.RunPluginTask, nil
}

const findJobQuery = `
	query FindJob($input: FindJobInput!) {
		findJob(input: $input) {
			id status description progress subTasks addTime startTime endTime error
		}
	}
`

// FindJob retrieves a job by ID. Returns nil if the job is unknown.
func (c *Client) FindJob(ctx context.Context, id string) (*Job, error) {
	var result struct {
		FindJob *Job `json:"findJob"`
	}
	vars := map[string]any{"input": map[string]any{"id": id}}
	if err := c.Execute(ctx, findJobQuery, vars, &result); err != nil {
		return nil, err
	}
	return result.FindJob, nil
}

const jobQueueQuery = `
	query JobQueue {
		jobQueue {
			id status description progress subTasks addTime startTime endTime error
		}
	}
`

// JobQueue lists the jobs currently queued or running.
func (c *Client) JobQueue(ctx context.Context) ([]Job, error) {
	var result struct {
		JobQueue []Job `json:"jobQueue"`
	}
	if err := c.Execute(ctx, jobQueueQuery, nil, &result); err != nil {
		return nil, err
	}
	return result.JobQueue, nil
}

const stopJobMutation = `
	mutation StopJob($job_id: ID!) {
		stopJob(job_id: $job_id)
	}
`

// StopJob asks the server to stop a job.
func (c *Client) StopJob(ctx context.Context, id string) (bool, error) {
	var result struct {
		StopJob bool `json:"stopJob"`
	}
	if err := c.Execute(ctx, stopJobMutation, map[string]any{"job_id": id}, &result); err != nil {
		return false, err
	}
	return result.StopJob, nil
}

// =============================================================================
// LOG OPERATIONS
// =============================================================================

const logsQuery = `
	query Logs {
		logs { time level message }
	}
`

// Logs returns the server's in-memory log in the order the server reports it.
func (c *Client) Logs(ctx context.Context) ([]LogEntry, error) {
	var result struct {
		Logs []LogEntry `json:"logs"`
	}
	if err := c.Execute(ctx, logsQuery, nil, &result); err != nil {
		return nil, err
	}
	return result.Logs, nil
}

// documents lists every operation this package sends.
var documents = []string{
	findSceneQuery,
	findImagesByPathQuery,
	imageUpdateMutation,
	metadataScanMutation,
	runPluginTaskMutation,
	findJobQuery,
	jobQueueQuery,
	stopJobMutation,
	logsQuery,
	logsSubscription,
}

// Validate parses every operation document and reports the first malformed
// one.
func Validate() error {
	for _, doc := range documents {
		if _, err := OperationName(doc); err != nil {
			return err
		}
	}
	return nil
}
