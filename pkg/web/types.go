package web

import (
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/steptree"
)

// ContactAddedToListRequest is the body of POST /events/contact-added-to-list.
type ContactAddedToListRequest struct {
	ContactID int64 `json:"contact_id" validate:"required,gt=0"`
	ListID    int64 `json:"list_id"    validate:"required,gt=0"`
}

// EventAcceptedResponse acknowledges an event handed to the bus.
type EventAcceptedResponse struct {
	EventID string `json:"event_id"`
}

// AutomationResponse is an automation definition with the size of its tree.
type AutomationResponse struct {
	*models.Automation

	StepCount int `json:"step_count"`
}

// AutomationTreeResponse is the nested step tree of an automation.
type AutomationTreeResponse struct {
	AutomationID int64                  `json:"automation_id"`
	Steps        []steptree.BuilderStep `json:"steps"`
	Problems     []string               `json:"problems,omitempty"`
}

// ListJourneysRequest holds the query parameters of GET /journeys.
type ListJourneysRequest struct {
	AutomationID int64  `validate:"omitempty,gt=0"`
	ContactID    int64  `validate:"omitempty,gt=0"`
	Status       string `validate:"omitempty,oneof=waiting processing completed"`
	Limit        int    `validate:"omitempty,gt=0,lte=1000"`
}
