package mocks

import (
	"context"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

var (
	_ persistence.JourneyRepository = (*MockJourneyRepository)(nil)
	_ persistence.DispatchQueue     = (*MockDispatchQueue)(nil)
	_ persistence.OpenHistory       = (*MockOpenHistory)(nil)
)

// MockJourneyRepository is a mock implementation of persistence.JourneyRepository interface.
type MockJourneyRepository struct {
	mock.Mock
}

func (m *MockJourneyRepository) Create(ctx context.Context, journey *models.Journey) error {
	args := m.Called(ctx, journey)

	return args.Error(0)
}

func (m *MockJourneyRepository) Due(ctx context.Context, query persistence.DueQuery) ([]*models.Journey, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Journey), args.Error(1)
}

func (m *MockJourneyRepository) Claim(ctx context.Context, queueID int64, query persistence.ClaimQuery) (*models.Journey, bool, error) {
	args := m.Called(ctx, queueID, query)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}

	return args.Get(0).(*models.Journey), args.Bool(1), args.Error(2)
}

func (m *MockJourneyRepository) Advance(ctx context.Context, queueID, nextStepID int64, status models.JourneyStatus, processAt time.Time) error {
	args := m.Called(ctx, queueID, nextStepID, status, processAt)

	return args.Error(0)
}

func (m *MockJourneyRepository) Complete(ctx context.Context, queueID int64) error {
	args := m.Called(ctx, queueID)

	return args.Error(0)
}

func (m *MockJourneyRepository) Release(ctx context.Context, queueID int64) error {
	args := m.Called(ctx, queueID)

	return args.Error(0)
}

func (m *MockJourneyRepository) ByID(ctx context.Context, queueID int64) (*models.Journey, error) {
	args := m.Called(ctx, queueID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Journey), args.Error(1)
}

func (m *MockJourneyRepository) List(ctx context.Context, filter persistence.JourneyFilter) ([]*models.Journey, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Journey), args.Error(1)
}

// MockDispatchQueue is a mock implementation of persistence.DispatchQueue interface.
type MockDispatchQueue struct {
	mock.Mock
}

func (m *MockDispatchQueue) Enqueue(ctx context.Context, dispatch *models.CampaignDispatch) error {
	args := m.Called(ctx, dispatch)

	return args.Error(0)
}

// MockOpenHistory is a mock implementation of persistence.OpenHistory interface.
type MockOpenHistory struct {
	mock.Mock
}

func (m *MockOpenHistory) HasOpened(ctx context.Context, contactID, campaignID int64) (bool, error) {
	args := m.Called(ctx, contactID, campaignID)

	return args.Bool(0), args.Error(1)
}
