package models

import "time"

// JourneyStatus is the queue state of a journey.
type JourneyStatus string

const (
	JourneyStatusWaiting    JourneyStatus = "waiting"
	JourneyStatusProcessing JourneyStatus = "processing"
	JourneyStatusCompleted  JourneyStatus = "completed"
)

// Journey is one contact's position in an automation's step tree.
//
// Attempts counts claims since the journey last advanced. It is never used to
// stop retrying; it exists so that journeys failing over and over are visible.
type Journey struct {
	QueueID       int64         `json:"queue_id"`
	AutomationID  int64         `json:"automation_id"`
	ContactID     int64         `json:"contact_id"`
	CurrentStepID int64         `json:"current_step_id"`
	Status        JourneyStatus `json:"status"`
	ProcessAt     time.Time     `json:"process_at"`
	Attempts      int           `json:"attempts"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewJourney positions a contact at the given step, due immediately.
func NewJourney(automationID, contactID, stepID int64, now time.Time) *Journey {
	return &Journey{
		AutomationID:  automationID,
		ContactID:     contactID,
		CurrentStepID: stepID,
		Status:        JourneyStatusWaiting,
		ProcessAt:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsDue reports whether the journey is waiting and its resume time has passed.
func (j *Journey) IsDue(now time.Time) bool {
	return j.Status == JourneyStatusWaiting && !j.ProcessAt.After(now)
}

// IsStale reports whether the journey is processing under a claim taken
// before staleBefore. A zero staleBefore never matches.
func (j *Journey) IsStale(staleBefore time.Time) bool {
	return j.Status == JourneyStatusProcessing && !staleBefore.IsZero() && j.UpdatedAt.Before(staleBefore)
}

// IsCompleted reports whether the journey reached its terminal state.
func (j *Journey) IsCompleted() bool {
	return j.Status == JourneyStatusCompleted
}
