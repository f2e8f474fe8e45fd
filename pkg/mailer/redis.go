// Package mailer holds dispatch queue sinks that live outside the journey
// database.
package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list campaign dispatches are pushed onto.
const DefaultRedisKey = "journeys:mailer_queue"

var ErrEmptyRedisURL = errors.New("redis url is required")

var _ persistence.DispatchQueue = (*RedisQueue)(nil)

// RedisQueue appends dispatch requests as JSON documents to a Redis list.
// The mailer consumes the list from the head.
type RedisQueue struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
}

// NewRedisQueue connects to url (redis://[:password@]host:port[/db]) and
// verifies the connection. An empty key selects DefaultRedisKey.
func NewRedisQueue(ctx context.Context, logger *slog.Logger, url, key string) (*RedisQueue, error) {
	if url == "" {
		return nil, ErrEmptyRedisURL
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	queue := NewRedisQueueWithClient(logger, client, key)
	queue.logger.InfoContext(ctx, "connected to redis", "addr", opts.Addr, "db", opts.DB)

	return queue, nil
}

// NewRedisQueueWithClient wraps an existing client.
func NewRedisQueueWithClient(logger *slog.Logger, client redis.UniversalClient, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}

	return &RedisQueue{
		client: client,
		key:    key,
		logger: logger.With("module", "mailer_redis", "key", key),
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, dispatch *models.CampaignDispatch) error {
	payload, err := json.Marshal(dispatch)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch: %w", err)
	}

	err = q.client.RPush(ctx, q.key, payload).Err()
	if err != nil {
		return fmt.Errorf("failed to push dispatch of campaign %d: %w", dispatch.CampaignID, err)
	}

	q.logger.DebugContext(ctx, "dispatch queued", "campaign_id", dispatch.CampaignID, "contact_id", dispatch.ContactID)

	return nil
}

// Pending returns the queued dispatches without removing them. The mailer
// consuming the list pops from the head; Pending is for operators and for
// consumers that inspect the backlog.
func (q *RedisQueue) Pending(ctx context.Context) ([]*models.CampaignDispatch, error) {
	raw, err := q.client.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", q.key, err)
	}

	dispatches := make([]*models.CampaignDispatch, 0, len(raw))

	for _, item := range raw {
		var dispatch models.CampaignDispatch

		err := json.Unmarshal([]byte(item), &dispatch)
		if err != nil {
			return nil, fmt.Errorf("failed to decode dispatch: %w", err)
		}

		dispatches = append(dispatches, &dispatch)
	}

	return dispatches, nil
}

func (q *RedisQueue) HealthCheck(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
