// Package events defines the domain events carried on the event bus.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every journeys event.
const Topic = "journeys.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// ContactAddedToListEvent starts automations triggered by list membership.
	ContactAddedToListEvent EventType = "contact.added_to_list"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ContactAddedToList is published whenever a contact joins a list.
type ContactAddedToList struct {
	BaseEvent

	ContactID int64 `json:"contact_id" validate:"required,gt=0"`
	ListID    int64 `json:"list_id"    validate:"required,gt=0"`
}

func (e ContactAddedToList) GetType() EventType {
	return ContactAddedToListEvent
}

// NewContactAddedToList builds the event with a fresh id.
func NewContactAddedToList(contactID, listID int64) *ContactAddedToList {
	return &ContactAddedToList{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      ContactAddedToListEvent,
			Timestamp: time.Now().UTC(),
		},
		ContactID: contactID,
		ListID:    listID,
	}
}
