package mailer_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dukex/journeys/pkg/mailer"
	"github.com/dukex/journeys/pkg/mocks"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMirroredQueue_KeepsOpensJoinable(t *testing.T) {
	ctx := t.Context()
	store := file.NewPersistence(t.TempDir())
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	outbound := &mocks.MockDispatchQueue{}
	outbound.On("Enqueue", mock.Anything, mock.MatchedBy(func(d *models.CampaignDispatch) bool {
		return d.CampaignID == 7 && d.ContactID == 100
	})).Return(nil).Once()

	queue := mailer.NewMirroredQueue(store.DispatchQueue(), outbound)
	require.NoError(t, queue.Enqueue(ctx, models.NewCampaignDispatch(7, 100, now)))
	outbound.AssertExpectations(t)

	recorded, err := store.Mailer().Dispatches(ctx)
	require.NoError(t, err)
	require.Len(t, recorded, 1)

	require.NoError(t, store.Mailer().RecordOpen(ctx, 100, 7, now.Add(time.Hour)))

	opened, err := store.OpenHistory().HasOpened(ctx, 100, 7)
	require.NoError(t, err)
	assert.True(t, opened)
}

func TestMirroredQueue_RecordFailureSkipsOutbound(t *testing.T) {
	record := &mocks.MockDispatchQueue{}
	record.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	outbound := &mocks.MockDispatchQueue{}

	err := mailer.NewMirroredQueue(record, outbound).Enqueue(t.Context(), models.NewCampaignDispatch(7, 100, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	outbound.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestMirroredQueue_OutboundFailure(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	outbound := &mocks.MockDispatchQueue{}
	outbound.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("redis: connection refused"))

	err := mailer.NewMirroredQueue(store.DispatchQueue(), outbound).Enqueue(t.Context(), models.NewCampaignDispatch(7, 100, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
