// Package scheduler runs the recurring tick that claims due journeys and
// hands them to the engine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dukex/journeys/pkg/engine"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/otelhelper"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/steptree"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSpec                  = "@every 1m"
	DefaultBatchSize             = 100
	DefaultConcurrency           = 10
	DefaultAttemptsWarnThreshold = 5
	DefaultClaimTimeout          = 15 * time.Minute
)

var (
	ErrAlreadyStarted = errors.New("processor already started")
	ErrNotStarted     = errors.New("processor not started")
)

// Config tunes the processor. Zero numeric values fall back to the defaults.
type Config struct {
	// Spec is a robfig/cron schedule, e.g. "@every 1m" or "*/5 * * * *".
	Spec        string
	BatchSize   int
	Concurrency int
	// ContinueInactive keeps advancing journeys of automations that were
	// deactivated after the journey started.
	ContinueInactive      bool
	AttemptsWarnThreshold int
	// ClaimTimeout is how long a journey may stay processing before another
	// tick claims it again. It must outlast the slowest step.
	ClaimTimeout time.Duration
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Spec:                  DefaultSpec,
		BatchSize:             DefaultBatchSize,
		Concurrency:           DefaultConcurrency,
		ContinueInactive:      true,
		AttemptsWarnThreshold: DefaultAttemptsWarnThreshold,
		ClaimTimeout:          DefaultClaimTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.Spec == "" {
		c.Spec = DefaultSpec
	}

	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}

	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}

	if c.AttemptsWarnThreshold <= 0 {
		c.AttemptsWarnThreshold = DefaultAttemptsWarnThreshold
	}

	if c.ClaimTimeout <= 0 {
		c.ClaimTimeout = DefaultClaimTimeout
	}

	return c
}

// Validate checks the cron spec without starting anything.
func (c Config) Validate() error {
	_, err := cron.ParseStandard(c.withDefaults().Spec)
	if err != nil {
		return fmt.Errorf("invalid tick spec %q: %w", c.Spec, err)
	}

	return nil
}

// TickResult counts what happened to the journeys selected by one tick.
type TickResult struct {
	Due       int `json:"due"`
	Claimed   int `json:"claimed"`
	Lost      int `json:"lost"`
	Advanced  int `json:"advanced"`
	Completed int `json:"completed"`
	Released  int `json:"released"`
	Failed    int `json:"failed"`
}

// Processor claims due journeys and runs their current step.
type Processor struct {
	logger   *slog.Logger
	journeys persistence.JourneyRepository
	trees    steptree.Source
	engine   *engine.Engine
	config   Config
	tracer   trace.Tracer
	now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func NewProcessor(
	logger *slog.Logger,
	journeys persistence.JourneyRepository,
	trees steptree.Source,
	eng *engine.Engine,
	config Config,
) *Processor {
	return &Processor{
		logger:   logger.With("module", "scheduler"),
		journeys: journeys,
		trees:    trees,
		engine:   eng,
		config:   config.withDefaults(),
		tracer:   otel.Tracer("journeys/scheduler"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces time.Now for the due query.
func (p *Processor) SetClock(now func() time.Time) {
	p.now = now
}

// Start schedules RunOnce on the configured spec. Overlapping ticks are skipped.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil {
		return ErrAlreadyStarted
	}

	p.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger{p.logger}),
		cron.Recover(cronLogger{p.logger}),
	))

	_, err := p.cron.AddFunc(p.config.Spec, func() {
		result, err := p.RunOnce(ctx)
		if err != nil {
			p.logger.ErrorContext(ctx, "tick failed", "error", err)

			return
		}

		if result.Due > 0 {
			p.logger.InfoContext(ctx, "tick finished",
				"due", result.Due,
				"claimed", result.Claimed,
				"advanced", result.Advanced,
				"completed", result.Completed,
				"released", result.Released,
			)
		}
	})
	if err != nil {
		p.cron = nil

		return fmt.Errorf("failed to schedule tick %q: %w", p.config.Spec, err)
	}

	p.cron.Start()
	p.logger.InfoContext(ctx, "scheduler started", "spec", p.config.Spec, "batch_size", p.config.BatchSize, "concurrency", p.config.Concurrency)

	return nil
}

// Stop stops scheduling and waits for a running tick to finish or ctx to expire.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c == nil {
		return ErrNotStarted
	}

	select {
	case <-c.Stop().Done():
		p.logger.InfoContext(ctx, "scheduler stopped")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes a single tick: select due journeys, claim each one and run
// its current step. Journeys left processing longer than ClaimTimeout are
// claimed again. Step definitions are loaded at most once per automation
// per tick. Only the due query failing is returned as an error; per-journey
// failures are logged, released and counted.
func (p *Processor) RunOnce(ctx context.Context) (TickResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "scheduler.tick",
		attribute.Int(otelhelper.BatchSizeKey, p.config.BatchSize),
	)
	defer span.End()

	now := p.now()
	claim := persistence.ClaimQuery{Now: now, StaleBefore: now.Add(-p.config.ClaimTimeout)}

	due, err := p.journeys.Due(ctx, persistence.DueQuery{
		Now:         now,
		Limit:       p.config.BatchSize,
		ActiveOnly:  !p.config.ContinueInactive,
		StaleBefore: claim.StaleBefore,
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return TickResult{}, fmt.Errorf("failed to select due journeys: %w", err)
	}

	var (
		mu     sync.Mutex
		result = TickResult{Due: len(due)}
		eng    = p.engine.WithTreeSource(steptree.NewCache(p.trees))
		group  errgroup.Group
	)

	group.SetLimit(p.config.Concurrency)

	for _, journey := range due {
		group.Go(func() error {
			outcome := p.process(ctx, eng, journey, claim)

			mu.Lock()
			outcome.add(&result)
			mu.Unlock()

			return nil
		})
	}

	_ = group.Wait()

	return result, nil
}

type outcome int

const (
	outcomeLost outcome = iota
	outcomeAdvanced
	outcomeCompleted
	outcomeReleased
	outcomeFailed
)

func (o outcome) add(result *TickResult) {
	switch o {
	case outcomeLost:
		result.Lost++

		return
	case outcomeAdvanced:
		result.Advanced++
	case outcomeCompleted:
		result.Completed++
	case outcomeReleased:
		result.Released++
	case outcomeFailed:
		result.Failed++

		return
	}

	result.Claimed++
}

func (p *Processor) process(ctx context.Context, eng *engine.Engine, journey *models.Journey, claim persistence.ClaimQuery) (result outcome) {
	logger := p.logger.With("queue_id", journey.QueueID, "automation_id", journey.AutomationID, "contact_id", journey.ContactID)

	claimed, ok, err := p.journeys.Claim(ctx, journey.QueueID, claim)
	if err != nil {
		logger.ErrorContext(ctx, "failed to claim journey", "error", err)

		return outcomeFailed
	}

	if !ok {
		logger.DebugContext(ctx, "journey claimed by another worker")

		return outcomeLost
	}

	if journey.Status == models.JourneyStatusProcessing {
		logger.WarnContext(ctx, "reclaimed stale journey", "claimed_at", journey.UpdatedAt, "step_id", claimed.CurrentStepID)
	}

	if claimed.Attempts > p.config.AttemptsWarnThreshold {
		logger.WarnContext(ctx, "journey keeps failing", "attempts", claimed.Attempts, "step_id", claimed.CurrentStepID)
	}

	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}

		logger.ErrorContext(ctx, "step panicked", "panic", recovered, "step_id", claimed.CurrentStepID, "stack", string(debug.Stack()))
		p.release(ctx, logger, claimed.QueueID, fmt.Errorf("panic: %v", recovered))

		result = outcomeReleased
	}()

	cont, err := eng.ProcessStep(ctx, claimed)
	if err != nil {
		p.release(ctx, logger, claimed.QueueID, err)

		return outcomeReleased
	}

	if cont.IsComplete() {
		return outcomeCompleted
	}

	return outcomeAdvanced
}

// release hands the journey back to waiting. It runs detached from ctx so a
// shutdown mid-step still returns the journey to the queue.
func (p *Processor) release(ctx context.Context, logger *slog.Logger, queueID int64, cause error) {
	err := p.journeys.Release(context.WithoutCancel(ctx), queueID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to release journey", "error", err, "step_error", cause)
	}
}
