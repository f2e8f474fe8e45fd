package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/journeys/pkg/auditlog"
	"github.com/dukex/journeys/pkg/conditions"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/otelhelper"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/steptree"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Engine executes the current step of a claimed journey and applies the
// resulting continuation to the journey store.
type Engine struct {
	logger   *slog.Logger
	trees    steptree.Source
	journeys persistence.JourneyRepository
	handlers map[models.StepType]StepHandler
	audit    *auditlog.Recorder
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithHandler registers or replaces the handler of a step type.
func WithHandler(stepType models.StepType, handler StepHandler) Option {
	return func(e *Engine) {
		e.handlers[stepType] = handler
	}
}

// DefaultHandlers wires the action, delay and condition variants.
func DefaultHandlers(dispatches persistence.DispatchQueue, registry *conditions.Registry, audit *auditlog.Recorder) map[models.StepType]StepHandler {
	return map[models.StepType]StepHandler{
		models.StepTypeAction:    NewActionStep(dispatches, audit),
		models.StepTypeDelay:     NewDelayStep(audit),
		models.StepTypeCondition: NewConditionStep(registry, audit),
	}
}

func New(
	logger *slog.Logger,
	trees steptree.Source,
	journeys persistence.JourneyRepository,
	audit *auditlog.Recorder,
	handlers map[models.StepType]StepHandler,
	opts ...Option,
) *Engine {
	e := &Engine{
		logger:   logger.With("module", "engine"),
		trees:    trees,
		journeys: journeys,
		handlers: make(map[models.StepType]StepHandler, len(handlers)),
		audit:    audit,
		tracer:   otel.Tracer("journeys/engine"),
		now:      func() time.Time { return time.Now().UTC() },
	}

	for stepType, handler := range handlers {
		e.handlers[stepType] = handler
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// WithTreeSource returns a copy of the engine reading step trees from source,
// e.g. a cache that lives for one scheduler tick.
func (e *Engine) WithTreeSource(source steptree.Source) *Engine {
	copied := *e
	copied.trees = source

	return &copied
}

// ProcessStep runs the journey's current step and persists the continuation.
//
// A returned error means nothing was applied and the journey is still claimed.
// Faults the engine recovers from are reported in Continuation.Fault instead.
func (e *Engine) ProcessStep(ctx context.Context, journey *models.Journey) (Continuation, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.process_step",
		attribute.Int64(otelhelper.QueueIDKey, journey.QueueID),
		attribute.Int64(otelhelper.AutomationIDKey, journey.AutomationID),
		attribute.Int64(otelhelper.ContactIDKey, journey.ContactID),
		attribute.Int64(otelhelper.StepIDKey, journey.CurrentStepID),
	)
	defer span.End()

	logger := e.logger.With(
		"queue_id", journey.QueueID,
		"automation_id", journey.AutomationID,
		"contact_id", journey.ContactID,
		"step_id", journey.CurrentStepID,
	)

	cont, err := e.execute(ctx, journey)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "step execution failed", "error", err)

		return Continuation{}, err
	}

	err = e.apply(ctx, journey, cont)
	if err != nil {
		otelhelper.SetError(span, err)

		return Continuation{}, err
	}

	span.SetAttributes(attribute.String(otelhelper.ContinuationKey, cont.Kind.String()))

	if cont.Fault != nil {
		otelhelper.RecordFault(span, cont.Fault)
		logger.WarnContext(ctx, "step recovered from fault", "error", cont.Fault)
	}

	logger.DebugContext(ctx, "step processed",
		"continuation", cont.Kind.String(),
		"next_step_id", cont.NextStepID,
		"process_at", cont.ProcessAt,
	)

	return cont, nil
}

func (e *Engine) execute(ctx context.Context, journey *models.Journey) (Continuation, error) {
	tree, err := e.trees.Tree(ctx, journey.AutomationID)
	if err != nil {
		return Continuation{}, fmt.Errorf("failed to load steps of automation %d: %w", journey.AutomationID, err)
	}

	now := e.now()

	step, ok := tree.Step(journey.CurrentStepID)
	if !ok {
		e.audit.Error(ctx, models.CategoryEngine,
			fmt.Sprintf("Step %d of automation %d not found; journey %d completed.", journey.CurrentStepID, journey.AutomationID, journey.QueueID),
			"contact_id", journey.ContactID,
		)

		return Complete().WithFault(&StepError{QueueID: journey.QueueID, StepID: journey.CurrentStepID, Err: ErrStepNotFound}), nil
	}

	exec := &Execution{Journey: journey, Step: step, Tree: tree, Now: now}

	handler, ok := e.handlers[step.Type]
	if !ok {
		e.audit.Error(ctx, models.CategoryEngine,
			fmt.Sprintf("Step %d of automation %d has unknown type %q; skipped.", step.ID, journey.AutomationID, step.Type),
			"queue_id", journey.QueueID,
		)

		fault := &StepError{QueueID: journey.QueueID, StepID: step.ID, Err: ErrUnknownStepType}

		return continueFrom(tree, step, now).WithFault(fault), nil
	}

	return handler.Execute(ctx, exec)
}

func (e *Engine) apply(ctx context.Context, journey *models.Journey, cont Continuation) error {
	switch cont.Kind {
	case KindAdvance:
		err := e.journeys.Advance(ctx, journey.QueueID, cont.NextStepID, cont.Status, cont.ProcessAt)
		if err != nil {
			return fmt.Errorf("failed to advance journey %d: %w", journey.QueueID, err)
		}
	case KindComplete:
		err := e.journeys.Complete(ctx, journey.QueueID)
		if err != nil {
			return fmt.Errorf("failed to complete journey %d: %w", journey.QueueID, err)
		}
	default:
		return fmt.Errorf("journey %d: invalid continuation kind %d", journey.QueueID, cont.Kind)
	}

	return nil
}
