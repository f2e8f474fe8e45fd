package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/journeys/pkg/mailer"
	"github.com/dukex/journeys/pkg/persistence"
)

// NewDispatchQueue returns where campaign dispatches go. They are always
// written to the persistence's own mailer_queue; a redis:// URL also pushes
// them to a Redis list. The returned close func is never nil.
func NewDispatchQueue(
	ctx context.Context,
	logger *slog.Logger,
	mailerURL, redisKey string,
	store persistence.Persistence,
) (persistence.DispatchQueue, func() error, error) {
	if mailerURL == "" {
		return store.DispatchQueue(), func() error { return nil }, nil
	}

	if !strings.HasPrefix(mailerURL, "redis://") && !strings.HasPrefix(mailerURL, "rediss://") {
		return nil, nil, fmt.Errorf("unsupported mailer queue url %q", mailerURL)
	}

	queue, err := mailer.NewRedisQueue(ctx, logger, mailerURL, redisKey)
	if err != nil {
		return nil, nil, err
	}

	return recordedIn(store, queue), queue.Close, nil
}

// recordedIn keeps store's mailer_queue as the record opens are joined to.
func recordedIn(store persistence.Persistence, outbound persistence.DispatchQueue) persistence.DispatchQueue {
	return mailer.NewMirroredQueue(store.DispatchQueue(), outbound)
}
