// Package persistence provides the storage abstraction for automation
// definitions, journeys and the collaborators the engine writes to.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/journeys/pkg/models"
)

// AutomationRepository reads automation definitions.
type AutomationRepository interface {
	// ActiveByTrigger returns active automations started by triggerType.
	ActiveByTrigger(ctx context.Context, triggerType models.TriggerType) ([]*models.Automation, error)
	// ByID returns ErrAutomationNotFound when the automation does not exist.
	ByID(ctx context.Context, id int64) (*models.Automation, error)
	All(ctx context.Context) ([]*models.Automation, error)
	Save(ctx context.Context, automation *models.Automation) error
}

// StepRepository reads the step rows of automations.
type StepRepository interface {
	StepsByAutomation(ctx context.Context, automationID int64) ([]*models.StepNode, error)
	// ReplaceSteps swaps the whole step set of an automation.
	ReplaceSteps(ctx context.Context, automationID int64, steps []*models.StepNode) error
}

// JourneyFilter narrows ListJourneys. Zero values match everything.
type JourneyFilter struct {
	AutomationID int64
	ContactID    int64
	Status       models.JourneyStatus
	Limit        int
}

// DueQuery selects journeys ready to run.
type DueQuery struct {
	Now   time.Time
	Limit int
	// ActiveOnly leaves out journeys whose automation is no longer active.
	ActiveOnly bool
	// StaleBefore also selects processing journeys claimed before it. Zero
	// selects waiting journeys only.
	StaleBefore time.Time
}

// ClaimQuery stamps and guards a claim. A zero Now means time.Now.
type ClaimQuery struct {
	Now time.Time
	// StaleBefore lets a processing journey be claimed again when its claim
	// was taken before it, e.g. by a worker that died mid-step.
	StaleBefore time.Time
}

// JourneyRepository stores journeys and implements the queue state machine.
type JourneyRepository interface {
	// Create inserts the journey and assigns its QueueID.
	Create(ctx context.Context, journey *models.Journey) error
	// Due returns waiting journeys whose process_at is not after query.Now,
	// plus stale processing ones, oldest first.
	Due(ctx context.Context, query DueQuery) ([]*models.Journey, error)
	// Claim atomically moves a waiting or stale journey to processing, stamps
	// updated_at with query.Now and bumps its attempts. claimed is false when
	// another worker won the race.
	Claim(ctx context.Context, queueID int64, query ClaimQuery) (journey *models.Journey, claimed bool, err error)
	// Advance moves the journey to nextStepID and resets attempts.
	Advance(ctx context.Context, queueID, nextStepID int64, status models.JourneyStatus, processAt time.Time) error
	// Complete marks the journey completed.
	Complete(ctx context.Context, queueID int64) error
	// Release hands a claimed journey back to waiting without moving it.
	Release(ctx context.Context, queueID int64) error
	ByID(ctx context.Context, queueID int64) (*models.Journey, error)
	List(ctx context.Context, filter JourneyFilter) ([]*models.Journey, error)
}

// DispatchQueue is the mailer's pending queue. The engine only inserts into it.
type DispatchQueue interface {
	Enqueue(ctx context.Context, dispatch *models.CampaignDispatch) error
}

// OpenHistory answers whether a contact opened a campaign dispatched to them.
type OpenHistory interface {
	HasOpened(ctx context.Context, contactID, campaignID int64) (bool, error)
}

// LogRepository persists audit log entries.
type LogRepository interface {
	SaveLog(ctx context.Context, entry *models.LogEntry) error
}

// Persistence groups the repositories of one storage backend.
type Persistence interface {
	AutomationRepository() AutomationRepository
	StepRepository() StepRepository
	JourneyRepository() JourneyRepository
	DispatchQueue() DispatchQueue
	OpenHistory() OpenHistory
	LogRepository() LogRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
