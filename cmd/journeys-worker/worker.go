package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/journeys/pkg/auditlog"
	"github.com/dukex/journeys/pkg/cmd"
	"github.com/dukex/journeys/pkg/conditions"
	"github.com/dukex/journeys/pkg/engine"
	"github.com/dukex/journeys/pkg/eventbus"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/scheduler"
	"github.com/dukex/journeys/pkg/steptree"
	"github.com/dukex/journeys/pkg/trigger"
)

type workerConfig struct {
	DatabaseURL    string
	MailerQueueURL string
	MailerQueueKey string
	Scheduler      scheduler.Config
}

// Worker owns the components shared by the run and tick commands.
type Worker struct {
	logger          *slog.Logger
	store           persistence.Persistence
	closeDispatches func() error
	dispatcher      *trigger.Dispatcher
	processor       *scheduler.Processor
}

func NewWorker(ctx context.Context, logger *slog.Logger, config workerConfig) (*Worker, error) {
	err := config.Scheduler.Validate()
	if err != nil {
		return nil, err
	}

	store, err := cmd.NewPersistence(ctx, logger, config.DatabaseURL)
	if err != nil {
		return nil, err
	}

	dispatches, closeDispatches, err := cmd.NewDispatchQueue(ctx, logger, config.MailerQueueURL, config.MailerQueueKey, store)
	if err != nil {
		_ = store.Close(ctx)

		return nil, fmt.Errorf("failed to open mailer queue: %w", err)
	}

	audit := auditlog.New(logger, store.LogRepository())
	trees := steptree.NewLoader(store.StepRepository())
	registry := conditions.NewDefaultRegistry(store.OpenHistory())

	eng := engine.New(
		logger,
		trees,
		store.JourneyRepository(),
		audit,
		engine.DefaultHandlers(dispatches, registry, audit),
	)

	return &Worker{
		logger:          logger,
		store:           store,
		closeDispatches: closeDispatches,
		dispatcher:      trigger.NewDispatcher(logger, store.AutomationRepository(), trees, store.JourneyRepository(), audit),
		processor:       scheduler.NewProcessor(logger, store.JourneyRepository(), trees, eng, config.Scheduler),
	}, nil
}

// Start subscribes the trigger dispatcher to bus and starts the tick.
func (w *Worker) Start(ctx context.Context, bus eventbus.EventBus) error {
	err := w.dispatcher.Register(bus)
	if err != nil {
		return fmt.Errorf("failed to register trigger dispatcher: %w", err)
	}

	err = bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	return w.processor.Start(ctx)
}

// Stop stops the tick, waiting for a running one to finish.
func (w *Worker) Stop(ctx context.Context) error {
	return w.processor.Stop(ctx)
}

// Tick runs a single scheduling tick.
func (w *Worker) Tick(ctx context.Context) (scheduler.TickResult, error) {
	return w.processor.RunOnce(ctx)
}

func (w *Worker) Close(ctx context.Context) error {
	return errors.Join(w.closeDispatches(), w.store.Close(ctx))
}
