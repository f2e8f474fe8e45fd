package trigger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/journeys/pkg/auditlog"
	"github.com/dukex/journeys/pkg/channels/gochannel"
	"github.com/dukex/journeys/pkg/eventbus"
	"github.com/dukex/journeys/pkg/events"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/persistence/file"
	"github.com/dukex/journeys/pkg/steptree"
	"github.com/dukex/journeys/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func automation(id int64, status models.AutomationStatus, listID any) *models.Automation {
	return &models.Automation{
		ID:              id,
		Name:            "automation",
		Status:          status,
		TriggerType:     models.TriggerContactAddedToList,
		TriggerSettings: models.Settings{"list_id": listID},
	}
}

func action(id, automationID int64, order int) *models.StepNode {
	return &models.StepNode{ID: id, AutomationID: automationID, Branch: models.BranchNone, Type: models.StepTypeAction, Order: order}
}

func seed(t *testing.T, store *file.Persistence) {
	t.Helper()

	ctx := t.Context()

	for _, a := range []*models.Automation{
		automation(1, models.AutomationStatusActive, 5),
		automation(2, models.AutomationStatusActive, "5"),
		automation(3, models.AutomationStatusActive, 6),
		automation(4, models.AutomationStatusInactive, 5),
		automation(5, models.AutomationStatusActive, 5),
	} {
		require.NoError(t, store.AutomationRepository().Save(ctx, a))
	}

	require.NoError(t, store.StepRepository().ReplaceSteps(ctx, 1, []*models.StepNode{action(12, 1, 1), action(11, 1, 0)}))
	require.NoError(t, store.StepRepository().ReplaceSteps(ctx, 2, []*models.StepNode{action(21, 2, 0)}))
	require.NoError(t, store.StepRepository().ReplaceSteps(ctx, 3, []*models.StepNode{action(31, 3, 0)}))
	require.NoError(t, store.StepRepository().ReplaceSteps(ctx, 4, []*models.StepNode{action(41, 4, 0)}))
}

func newDispatcher(store *file.Persistence, trees steptree.Source) *trigger.Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return trigger.NewDispatcher(logger, store.AutomationRepository(), trees, store.JourneyRepository(), auditlog.New(logger, store.LogRepository()))
}

func TestDispatcher_OneJourneyPerMatchingAutomation(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	seed(t, store)

	dispatcher := newDispatcher(store, steptree.NewLoader(store.StepRepository()))

	created, err := dispatcher.HandleEvent(t.Context(), models.TriggerContactAddedToList, 100, 5)
	require.NoError(t, err)
	require.Len(t, created, 2)

	firstSteps := map[int64]int64{}
	for _, journey := range created {
		firstSteps[journey.AutomationID] = journey.CurrentStepID
		assert.Equal(t, int64(100), journey.ContactID)
		assert.Equal(t, models.JourneyStatusWaiting, journey.Status)
		assert.NotZero(t, journey.QueueID)
	}

	assert.Equal(t, map[int64]int64{1: 11, 2: 21}, firstSteps)

	stored, err := store.JourneyRepository().List(t.Context(), persistence.JourneyFilter{ContactID: 100})
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	entries, err := store.Logs().Entries(t.Context())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.CategoryTrigger, entries[0].Category)
}

func TestDispatcher_NoDeduplication(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	seed(t, store)

	dispatcher := newDispatcher(store, steptree.NewLoader(store.StepRepository()))

	for range 2 {
		_, err := dispatcher.HandleEvent(t.Context(), models.TriggerContactAddedToList, 100, 6)
		require.NoError(t, err)
	}

	stored, err := store.JourneyRepository().List(t.Context(), persistence.JourneyFilter{AutomationID: 3})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestDispatcher_NoMatch(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	seed(t, store)

	dispatcher := newDispatcher(store, steptree.NewLoader(store.StepRepository()))

	created, err := dispatcher.HandleEvent(t.Context(), models.TriggerContactAddedToList, 100, 99)
	require.NoError(t, err)
	assert.Empty(t, created)

	created, err = dispatcher.HandleEvent(t.Context(), "contact_unsubscribed", 100, 5)
	require.NoError(t, err)
	assert.Empty(t, created)
}

type failingSource struct {
	next    steptree.Source
	failFor int64
}

func (f failingSource) Tree(ctx context.Context, automationID int64) (*steptree.Tree, error) {
	if automationID == f.failFor {
		return nil, errors.New("steps unavailable")
	}

	return f.next.Tree(ctx, automationID)
}

func TestDispatcher_ContinuesPastFailures(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	seed(t, store)

	dispatcher := newDispatcher(store, failingSource{next: steptree.NewLoader(store.StepRepository()), failFor: 1})

	created, err := dispatcher.HandleEvent(t.Context(), models.TriggerContactAddedToList, 100, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps unavailable")
	assert.True(t, errors.As(err, new(*persistence.AutomationError)))
	require.Len(t, created, 1)
	assert.Equal(t, int64(2), created[0].AutomationID)
}

func TestDispatcher_RegisterOnBus(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	seed(t, store)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(logger, pub, sub)
	defer bus.Close()

	dispatcher := newDispatcher(store, steptree.NewLoader(store.StepRepository()))
	require.NoError(t, dispatcher.Register(bus))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))
	require.NoError(t, bus.Publish(ctx, "100", events.NewContactAddedToList(100, 6)))

	assert.Eventually(t, func() bool {
		journeys, err := store.JourneyRepository().List(ctx, persistence.JourneyFilter{AutomationID: 3})

		return err == nil && len(journeys) == 1
	}, 5*time.Second, 20*time.Millisecond)
}
