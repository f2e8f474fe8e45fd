// Package trigger turns inbound domain events into new journeys.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/journeys/pkg/auditlog"
	"github.com/dukex/journeys/pkg/eventbus"
	"github.com/dukex/journeys/pkg/events"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/otelhelper"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/steptree"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Dispatcher starts one journey per matching automation for every event.
// Events are not deduplicated: a contact re-added to a list starts again.
type Dispatcher struct {
	logger      *slog.Logger
	automations persistence.AutomationRepository
	trees       steptree.Source
	journeys    persistence.JourneyRepository
	audit       *auditlog.Recorder
	tracer      trace.Tracer
	now         func() time.Time
}

func NewDispatcher(
	logger *slog.Logger,
	automations persistence.AutomationRepository,
	trees steptree.Source,
	journeys persistence.JourneyRepository,
	audit *auditlog.Recorder,
) *Dispatcher {
	return &Dispatcher{
		logger:      logger.With("module", "trigger_dispatcher"),
		automations: automations,
		trees:       trees,
		journeys:    journeys,
		audit:       audit,
		tracer:      otel.Tracer("journeys/trigger"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HandleEvent creates a waiting journey at the first root step of every active
// automation whose trigger matches eventType and targetID. Automations without
// steps are skipped. A failure on one automation does not stop the others;
// all failures are joined in the returned error.
func (d *Dispatcher) HandleEvent(ctx context.Context, eventType models.TriggerType, contactID, targetID int64) ([]*models.Journey, error) {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "trigger.handle_event",
		attribute.String(otelhelper.EventTypeKey, string(eventType)),
		attribute.Int64(otelhelper.ContactIDKey, contactID),
	)
	defer span.End()

	automations, err := d.automations.ActiveByTrigger(ctx, eventType)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load automations for %s: %w", eventType, err)
	}

	var (
		created []*models.Journey
		errs    []error
	)

	for _, automation := range automations {
		if !automation.MatchesTrigger(eventType, targetID) {
			continue
		}

		journey, err := d.start(ctx, automation, contactID)
		if err != nil {
			d.logger.ErrorContext(ctx, "failed to start journey",
				"automation_id", automation.ID,
				"contact_id", contactID,
				"error", err,
			)
			errs = append(errs, err)

			continue
		}

		if journey != nil {
			created = append(created, journey)
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return created, err
}

func (d *Dispatcher) start(ctx context.Context, automation *models.Automation, contactID int64) (*models.Journey, error) {
	tree, err := d.trees.Tree(ctx, automation.ID)
	if err != nil {
		return nil, persistence.NewAutomationError("LoadSteps", automation.ID, err)
	}

	first, ok := tree.First()
	if !ok {
		d.logger.DebugContext(ctx, "automation has no steps", "automation_id", automation.ID)

		return nil, nil
	}

	journey := models.NewJourney(automation.ID, contactID, first.ID, d.now())

	err = d.journeys.Create(ctx, journey)
	if err != nil {
		return nil, persistence.NewAutomationError("CreateJourney", automation.ID, err)
	}

	d.audit.Info(ctx, models.CategoryTrigger,
		fmt.Sprintf("Contact %d entered automation %d (%s).", contactID, automation.ID, automation.Name),
		"queue_id", journey.QueueID,
		"step_id", first.ID,
	)

	return journey, nil
}

// HandleContactAddedToList adapts the typed bus event.
func (d *Dispatcher) HandleContactAddedToList(ctx context.Context, event *events.ContactAddedToList) ([]*models.Journey, error) {
	return d.HandleEvent(ctx, models.TriggerContactAddedToList, event.ContactID, event.ListID)
}

// Register subscribes the dispatcher to the events it understands.
//
// The handler fails, and the bus redelivers, only when no journey was
// created. Partial failures are logged and acknowledged.
func (d *Dispatcher) Register(bus eventbus.EventSubscriber) error {
	return bus.Handle(events.ContactAddedToListEvent, func(ctx context.Context, event any) error {
		contactAdded, ok := event.(*events.ContactAddedToList)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event, events.ContactAddedToListEvent)
		}

		created, err := d.HandleContactAddedToList(ctx, contactAdded)
		if err != nil && len(created) == 0 {
			return err
		}

		if err != nil {
			d.logger.WarnContext(ctx, "event partially handled",
				"event_id", contactAdded.ID,
				"journeys_created", len(created),
				"error", err,
			)
		}

		return nil
	})
}
