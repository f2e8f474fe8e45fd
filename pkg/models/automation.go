// Package models defines the domain models shared by the journey engine:
// automation definitions, their step rows, journeys and the outbound contracts.
package models

import "time"

// AutomationStatus represents whether an automation accepts new journeys.
type AutomationStatus string

const (
	AutomationStatusActive   AutomationStatus = "active"
	AutomationStatusInactive AutomationStatus = "inactive"
)

// TriggerType names the domain event that starts an automation.
type TriggerType string

const (
	TriggerContactAddedToList TriggerType = "contact_added_to_list"
)

// triggerTargetKeys maps a trigger type to the settings key holding its target.
var triggerTargetKeys = map[TriggerType]string{
	TriggerContactAddedToList: "list_id",
}

// Automation is an externally authored workflow definition. The engine only reads it.
type Automation struct {
	ID              int64            `json:"automation_id"    validate:"required,gt=0"`
	Name            string           `json:"name"             validate:"required"`
	Status          AutomationStatus `json:"status"           validate:"required,oneof=active inactive"`
	TriggerType     TriggerType      `json:"trigger_type"     validate:"required"`
	TriggerSettings Settings         `json:"trigger_settings"`
	CreatedAt       time.Time        `json:"created_at"`
}

// IsActive reports whether new journeys may be started for the automation.
func (a *Automation) IsActive() bool {
	return a.Status == AutomationStatusActive
}

// TriggerTarget returns the identifier the trigger settings point at
// (the list id for contact_added_to_list).
func (a *Automation) TriggerTarget() (int64, bool) {
	key, ok := triggerTargetKeys[a.TriggerType]
	if !ok {
		return 0, false
	}

	target, ok := a.TriggerSettings.Int(key)
	if !ok || target <= 0 {
		return 0, false
	}

	return target, true
}

// MatchesTrigger reports whether an event of eventType aimed at targetID starts this automation.
func (a *Automation) MatchesTrigger(eventType TriggerType, targetID int64) bool {
	if a.TriggerType != eventType {
		return false
	}

	target, ok := a.TriggerTarget()

	return ok && target == targetID
}
