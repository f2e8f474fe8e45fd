package mailer_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/journeys/pkg/mailer"
	"github.com/dukex/journeys/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s/0", endpoint)
}

func TestNewRedisQueue_EmptyURL(t *testing.T) {
	_, err := mailer.NewRedisQueue(t.Context(), slog.New(slog.NewTextHandler(io.Discard, nil)), "", "")
	assert.ErrorIs(t, err, mailer.ErrEmptyRedisURL)
}

func TestNewRedisQueue_InvalidURL(t *testing.T) {
	_, err := mailer.NewRedisQueue(t.Context(), slog.New(slog.NewTextHandler(io.Discard, nil)), "http://localhost", "")
	assert.Error(t, err)
}

func TestRedisQueue_Enqueue(t *testing.T) {
	url := setupRedis(t)
	ctx := t.Context()

	queue, err := mailer.NewRedisQueue(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), url, "test:mailer")
	require.NoError(t, err)

	defer func() { _ = queue.Close() }()

	require.NoError(t, queue.HealthCheck(ctx))

	addedAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, queue.Enqueue(ctx, models.NewCampaignDispatch(7, 100, addedAt)))
	require.NoError(t, queue.Enqueue(ctx, models.NewCampaignDispatch(8, 100, addedAt)))

	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	assert.Equal(t, int64(7), pending[0].CampaignID)
	assert.Equal(t, int64(8), pending[1].CampaignID)
	assert.Equal(t, int64(100), pending[1].ContactID)
	assert.Equal(t, models.DispatchStatusPending, pending[0].Status)
	assert.True(t, addedAt.Equal(pending[0].AddedAt))
}
