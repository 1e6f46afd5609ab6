//go:build integration

package stash

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testClient *Client

const setupMutation = `
	mutation Setup($input: SetupInput!) {
		setup(input: $input)
	}
`

// TestMain starts a throwaway Stash server and completes its first-run setup.
func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "stashapp/stash:latest",
			ExposedPorts: []string{"9999/tcp"},
			Env:          map[string]string{"STASH_PORT": "9999"},
			WaitingFor:   wait.ForHTTP("/").WithPort("9999/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start Stash container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "9999")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testClient = New(Options{Endpoint: fmt.Sprintf("http://%s:%s/graphql", host, port.Port()), RateLimit: -1})

	err = testClient.Execute(ctx, setupMutation, map[string]any{"input": map[string]any{
		"configLocation":       "/root/.stash/config.yml",
		"stashes":              []any{},
		"databaseFile":         "/root/.stash/stash-go.sqlite",
		"generatedLocation":    "/root/.stash/generated",
		"cacheLocation":        "/root/.stash/cache",
		"blobsLocation":        "/root/.stash/blobs",
		"storeBlobsInDatabase": false,
	}}, nil)
	if err != nil {
		log.Fatalf("Failed to set up Stash: %v", err)
	}

	code := m.Run()

	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestIntegration_Logs(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := testClient.Logs(ctx)
	require.NoError(t, err)
}

func TestIntegration_UnknownRecords(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scene, err := testClient.FindScene(ctx, "999999")
	require.NoError(t, err)
	assert.Nil(t, scene)

	job, err := testClient.FindJob(ctx, "999999")
	require.NoError(t, err)
	assert.Nil(t, job)

	images, err := testClient.FindImagesByPath(ctx, "/nowhere/frame.jpg")
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestIntegration_ScanJobFinishes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	id, err := testClient.MetadataScan(ctx, []string{"/tmp/"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		job, err := testClient.FindJob(ctx, id)
		if err != nil {
			return false
		}
		return job == nil || job.Status == JobStatusFinished
	}, 30*time.Second, 500*time.Millisecond)
}
