package eventbus_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/journeys/pkg/channels/gochannel"
	"github.com/dukex/journeys/pkg/eventbus"
	"github.com/dukex/journeys/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(logger, pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_DeliversTypedEvents(t *testing.T) {
	bus := newBus(t)
	received := make(chan *events.ContactAddedToList, 1)

	require.NoError(t, bus.Handle(events.ContactAddedToListEvent, func(_ context.Context, event any) error {
		received <- event.(*events.ContactAddedToList)

		return nil
	}))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	sent := events.NewContactAddedToList(100, 5)
	require.NoError(t, bus.Publish(ctx, "100", sent))

	select {
	case event := <-received:
		assert.Equal(t, sent.ID, event.ID)
		assert.Equal(t, int64(100), event.ContactID)
		assert.Equal(t, int64(5), event.ListID)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_RedeliversOnHandlerError(t *testing.T) {
	bus := newBus(t)

	var calls atomic.Int32

	done := make(chan struct{})

	require.NoError(t, bus.Handle(events.ContactAddedToListEvent, func(context.Context, any) error {
		if calls.Add(1) == 1 {
			return errors.New("database unavailable")
		}

		close(done)

		return nil
	}))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))
	require.NoError(t, bus.Publish(ctx, "100", events.NewContactAddedToList(100, 5)))

	select {
	case <-done:
		assert.Equal(t, int32(2), calls.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("event was not redelivered")
	}
}

func TestWatermillEventBus_HandleUnknownType(t *testing.T) {
	bus := newBus(t)

	err := bus.Handle("contact.unsubscribed", func(context.Context, any) error { return nil })
	assert.ErrorIs(t, err, eventbus.ErrUnknownEventType)
	assert.NotEmpty(t, bus.GenerateID())
}
