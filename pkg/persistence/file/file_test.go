package file

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	p := NewPersistence("/tmp/test")
	assert.Equal(t, "/tmp/test", p.root)

	p = NewPersistence("file:///tmp/test")
	assert.Equal(t, "/tmp/test", p.root)
}

func TestPersistence_HealthCheck(t *testing.T) {
	p := NewPersistence(t.TempDir())
	require.NoError(t, p.HealthCheck(t.Context()))

	missing := NewPersistence(t.TempDir() + "/missing")
	assert.Error(t, missing.HealthCheck(t.Context()))
	assert.NoError(t, missing.Close(t.Context()))
}

func TestAutomationRepository(t *testing.T) {
	ctx := t.Context()
	p := NewPersistence(t.TempDir())
	repo := p.AutomationRepository()

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, repo.Save(ctx, &models.Automation{
		ID: 2, Name: "welcome", Status: models.AutomationStatusActive,
		TriggerType: models.TriggerContactAddedToList, TriggerSettings: models.Settings{"list_id": 5},
	}))
	require.NoError(t, repo.Save(ctx, &models.Automation{
		ID: 1, Name: "paused", Status: models.AutomationStatusInactive,
		TriggerType: models.TriggerContactAddedToList, TriggerSettings: models.Settings{"list_id": 5},
	}))

	active, err := repo.ActiveByTrigger(ctx, models.TriggerContactAddedToList)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(2), active[0].ID)

	target, ok := active[0].TriggerTarget()
	assert.True(t, ok)
	assert.Equal(t, int64(5), target)

	all, err = repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID)

	_, err = repo.ByID(ctx, 99)
	assert.True(t, persistence.IsAutomationNotFound(err))
}

func TestStepRepository_ReplaceSteps(t *testing.T) {
	ctx := t.Context()
	p := NewPersistence(t.TempDir())
	repo := p.StepRepository()

	require.NoError(t, repo.ReplaceSteps(ctx, 1, []*models.StepNode{
		{ID: 1, Type: models.StepTypeAction, Branch: models.BranchNone},
		{ID: 2, Type: models.StepTypeDelay, Branch: models.BranchNone, Order: 1},
	}))
	require.NoError(t, repo.ReplaceSteps(ctx, 2, []*models.StepNode{
		{ID: 3, Type: models.StepTypeAction, Branch: models.BranchNone},
	}))

	steps, err := repo.StepsByAutomation(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, steps, 2)

	require.NoError(t, repo.ReplaceSteps(ctx, 1, []*models.StepNode{
		{ID: 4, Type: models.StepTypeAction, Branch: models.BranchNone},
	}))

	steps, err = repo.StepsByAutomation(ctx, 1)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, int64(4), steps[0].ID)
	assert.Equal(t, int64(1), steps[0].AutomationID)

	other, err := repo.StepsByAutomation(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestJourneyRepository_Lifecycle(t *testing.T) {
	ctx := t.Context()
	p := NewPersistence(t.TempDir())
	repo := p.JourneyRepository()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first := models.NewJourney(1, 100, 10, now)
	later := models.NewJourney(1, 101, 10, now.Add(time.Hour))

	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, later))
	assert.Equal(t, int64(1), first.QueueID)
	assert.Equal(t, int64(2), later.QueueID)

	due, err := repo.Due(ctx, persistence.DueQuery{Now: now, Limit: 10})
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, first.QueueID, due[0].QueueID)

	claimed, ok, err := repo.Claim(ctx, first.QueueID, persistence.ClaimQuery{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.JourneyStatusProcessing, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)

	_, ok, err = repo.Claim(ctx, first.QueueID, persistence.ClaimQuery{})
	require.NoError(t, err)
	assert.False(t, ok)

	resume := now.Add(24 * time.Hour)
	require.NoError(t, repo.Advance(ctx, first.QueueID, 11, models.JourneyStatusWaiting, resume))

	stored, err := repo.ByID(ctx, first.QueueID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), stored.CurrentStepID)
	assert.Equal(t, 0, stored.Attempts)
	assert.True(t, stored.ProcessAt.Equal(resume))

	err = repo.Complete(ctx, first.QueueID)
	assert.True(t, persistence.IsJourneyNotClaimed(err))

	_, ok, err = repo.Claim(ctx, first.QueueID, persistence.ClaimQuery{})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, repo.Complete(ctx, first.QueueID))

	completed, err := repo.List(ctx, persistence.JourneyFilter{Status: models.JourneyStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, first.QueueID, completed[0].QueueID)

	_, err = repo.ByID(ctx, 42)
	assert.True(t, persistence.IsJourneyNotFound(err))
}

func TestJourneyRepository_ReleaseKeepsPosition(t *testing.T) {
	ctx := t.Context()
	p := NewPersistence(t.TempDir())
	repo := p.JourneyRepository()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	journey := models.NewJourney(1, 100, 10, now)
	require.NoError(t, repo.Create(ctx, journey))

	_, ok, err := repo.Claim(ctx, journey.QueueID, persistence.ClaimQuery{})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, repo.Release(ctx, journey.QueueID))

	stored, err := repo.ByID(ctx, journey.QueueID)
	require.NoError(t, err)
	assert.Equal(t, models.JourneyStatusWaiting, stored.Status)
	assert.Equal(t, int64(10), stored.CurrentStepID)
	assert.True(t, stored.ProcessAt.Equal(now))
	assert.Equal(t, 1, stored.Attempts)

	_, ok, err = repo.Claim(ctx, journey.QueueID, persistence.ClaimQuery{})
	require.NoError(t, err)
	require.True(t, ok)

	stored, err = repo.ByID(ctx, journey.QueueID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Attempts)
}

func TestJourneyRepository_ReclaimsStaleProcessing(t *testing.T) {
	ctx := t.Context()
	p := NewPersistence(t.TempDir())
	repo := p.JourneyRepository()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	lease := 10 * time.Minute

	journey := models.NewJourney(1, 100, 10, now)
	require.NoError(t, repo.Create(ctx, journey))

	_, ok, err := repo.Claim(ctx, journey.QueueID, persistence.ClaimQuery{Now: now})
	require.NoError(t, err)
	require.True(t, ok)

	later := now.Add(5 * time.Minute)
	due, err := repo.Due(ctx, persistence.DueQuery{Now: later, StaleBefore: later.Add(-lease)})
	require.NoError(t, err)
	assert.Empty(t, due)

	_, ok, err = repo.Claim(ctx, journey.QueueID, persistence.ClaimQuery{Now: later, StaleBefore: later.Add(-lease)})
	require.NoError(t, err)
	assert.False(t, ok)

	expired := now.Add(time.Hour)
	due, err = repo.Due(ctx, persistence.DueQuery{Now: expired, StaleBefore: expired.Add(-lease)})
	require.NoError(t, err)
	require.Len(t, due, 1)

	reclaimed, ok, err := repo.Claim(ctx, journey.QueueID, persistence.ClaimQuery{Now: expired, StaleBefore: expired.Add(-lease)})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, reclaimed.Attempts)
	assert.True(t, reclaimed.UpdatedAt.Equal(expired))

	_, ok, err = repo.Claim(ctx, journey.QueueID, persistence.ClaimQuery{Now: expired, StaleBefore: expired.Add(-lease)})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJourneyRepository_ConcurrentClaim(t *testing.T) {
	ctx := t.Context()
	p := NewPersistence(t.TempDir())
	repo := p.JourneyRepository()

	journey := models.NewJourney(1, 100, 10, time.Now())
	require.NoError(t, repo.Create(ctx, journey))

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)

	for range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, ok, err := repo.Claim(ctx, journey.QueueID, persistence.ClaimQuery{})
			assert.NoError(t, err)

			if ok {
				winners.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestMailerRepository_HasOpened(t *testing.T) {
	ctx := t.Context()
	p := NewPersistence(t.TempDir())
	mailer := p.Mailer()
	now := time.Now().UTC()

	opened, err := mailer.HasOpened(ctx, 100, 7)
	require.NoError(t, err)
	assert.False(t, opened)

	require.NoError(t, p.DispatchQueue().Enqueue(ctx, models.NewCampaignDispatch(7, 100, now)))

	opened, err = mailer.HasOpened(ctx, 100, 7)
	require.NoError(t, err)
	assert.False(t, opened)

	require.NoError(t, mailer.RecordOpen(ctx, 100, 7, now))

	opened, err = p.OpenHistory().HasOpened(ctx, 100, 7)
	require.NoError(t, err)
	assert.True(t, opened)

	opened, err = mailer.HasOpened(ctx, 101, 7)
	require.NoError(t, err)
	assert.False(t, opened)

	dispatches, err := mailer.Dispatches(ctx)
	require.NoError(t, err)
	require.Len(t, dispatches, 1)
	assert.Equal(t, models.DispatchStatusPending, dispatches[0].Status)
}

func TestLogRepository(t *testing.T) {
	ctx := t.Context()
	p := NewPersistence(t.TempDir())

	require.NoError(t, p.LogRepository().SaveLog(ctx, &models.LogEntry{
		Severity: models.SeverityInfo, Category: models.CategoryEngine, Message: "hello",
	}))

	entries, err := p.Logs().Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Message)
}

func TestJourneyRepository_DueActiveOnly(t *testing.T) {
	ctx := t.Context()
	p := NewPersistence(t.TempDir())
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, p.AutomationRepository().Save(ctx, &models.Automation{ID: 1, Name: "on", Status: models.AutomationStatusActive}))
	require.NoError(t, p.AutomationRepository().Save(ctx, &models.Automation{ID: 2, Name: "off", Status: models.AutomationStatusInactive}))

	for _, automationID := range []int64{1, 2, 2} {
		require.NoError(t, p.JourneyRepository().Create(ctx, models.NewJourney(automationID, 100, 10, now)))
	}

	all, err := p.JourneyRepository().Due(ctx, persistence.DueQuery{Now: now})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := p.JourneyRepository().Due(ctx, persistence.DueQuery{Now: now, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].AutomationID)
}
