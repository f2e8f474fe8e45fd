// Package web provides the HTTP surface: event ingestion and read-only views
// of automations and journeys.
package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/journeys/pkg/eventbus"
	"github.com/dukex/journeys/pkg/events"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/steptree"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	validator   *validator.Validate
	conditions  []string
}

// NewAPIHandlers builds the handlers. conditionKinds lists the registered
// predicate kinds so tree views can flag conditions nothing can evaluate.
func NewAPIHandlers(
	logger *slog.Logger,
	persistence persistence.Persistence,
	publisher eventbus.EventPublisher,
	validator *validator.Validate,
	conditionKinds []string,
) *APIHandlers {
	return &APIHandlers{
		logger:      logger.With("module", "web"),
		persistence: persistence,
		publisher:   publisher,
		validator:   validator,
		conditions:  conditionKinds,
	}
}

// Register mounts every route on app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Post("/events/contact-added-to-list", h.PublishContactAddedToList)

	a := app.Group("/automations")
	a.Get("/", h.GetAutomations)
	a.Get("/:id/tree", h.GetAutomationTree)

	j := app.Group("/journeys")
	j.Get("/", h.GetJourneys)
	j.Get("/:id", h.GetJourney)

	app.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) PublishContactAddedToList(c fiber.Ctx) error {
	var req ContactAddedToListRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := events.NewContactAddedToList(req.ContactID, req.ListID)

	err := h.publisher.Publish(c.Context(), strconv.FormatInt(req.ContactID, 10), event)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "failed to publish event", "error", err, "contact_id", req.ContactID, "list_id", req.ListID)

		return unavailable(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(EventAcceptedResponse{EventID: event.ID})
}

func (h *APIHandlers) GetAutomations(c fiber.Ctx) error {
	automations, err := h.persistence.AutomationRepository().All(c.Context())
	if err != nil {
		return handleError(c, err)
	}

	response := make([]AutomationResponse, 0, len(automations))

	for _, automation := range automations {
		steps, err := h.persistence.StepRepository().StepsByAutomation(c.Context(), automation.ID)
		if err != nil {
			return handleError(c, err)
		}

		response = append(response, AutomationResponse{Automation: automation, StepCount: len(steps)})
	}

	return c.JSON(response)
}

func (h *APIHandlers) GetAutomationTree(c fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return badRequest(c, "Automation ID must be a positive integer")
	}

	automation, err := h.persistence.AutomationRepository().ByID(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	steps, err := h.persistence.StepRepository().StepsByAutomation(c.Context(), automation.ID)
	if err != nil {
		return handleError(c, err)
	}

	tree := steptree.Build(automation.ID, steps)

	response := AutomationTreeResponse{
		AutomationID: automation.ID,
		Steps:        tree.Nest(),
	}

	if response.Steps == nil {
		response.Steps = []steptree.BuilderStep{}
	}

	if err := tree.Validate(h.conditions); err != nil {
		for _, problem := range steptree.Problems(err) {
			response.Problems = append(response.Problems, problem.Error())
		}
	}

	return c.JSON(response)
}

func (h *APIHandlers) GetJourneys(c fiber.Ctx) error {
	req, err := parseListJourneysRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	journeys, err := h.persistence.JourneyRepository().List(c.Context(), persistence.JourneyFilter{
		AutomationID: req.AutomationID,
		ContactID:    req.ContactID,
		Status:       models.JourneyStatus(req.Status),
		Limit:        req.Limit,
	})
	if err != nil {
		return handleError(c, err)
	}

	if journeys == nil {
		journeys = []*models.Journey{}
	}

	return c.JSON(journeys)
}

func parseListJourneysRequest(c fiber.Ctx) (*ListJourneysRequest, error) {
	req := &ListJourneysRequest{Status: c.Query("status")}

	if raw := c.Query("automation_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}

		req.AutomationID = id
	}

	if raw := c.Query("contact_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}

		req.ContactID = id
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	return req, nil
}

func (h *APIHandlers) GetJourney(c fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return badRequest(c, "Journey ID must be a positive integer")
	}

	journey, err := h.persistence.JourneyRepository().ByID(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(journey)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "ok"
	httpStatus := http.StatusOK

	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		status = "unhealthy"
		message = err.Error()
		httpStatus = http.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
