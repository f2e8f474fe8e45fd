package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dukex/journeys/pkg/auditlog"
	"github.com/dukex/journeys/pkg/models"
)

const (
	defaultDelayValue = 1
	defaultDelayUnit  = "day"
)

// DelayStep parks the journey on the step after it until now + value*unit.
type DelayStep struct {
	audit *auditlog.Recorder
}

func NewDelayStep(audit *auditlog.Recorder) *DelayStep {
	return &DelayStep{audit: audit}
}

func (d *DelayStep) Execute(ctx context.Context, exec *Execution) (Continuation, error) {
	delay, err := DelayDuration(exec.Step.Settings)
	if err != nil {
		d.audit.Error(ctx, models.CategoryEngine,
			fmt.Sprintf("Delay step %d of automation %d skipped: %v.", exec.Step.ID, exec.Journey.AutomationID, err),
			"queue_id", exec.Journey.QueueID,
			"contact_id", exec.Journey.ContactID,
		)

		fault := &StepError{QueueID: exec.Journey.QueueID, StepID: exec.Step.ID, Err: err}

		return continueFrom(exec.Tree, exec.Step, exec.Now).WithFault(fault), nil
	}

	resumeAt := exec.Now.Add(delay)

	d.audit.Info(ctx, models.CategoryEngine,
		fmt.Sprintf("Contact %d paused by automation %d until %s.", exec.Journey.ContactID, exec.Journey.AutomationID, resumeAt.Format(time.RFC3339)),
		"queue_id", exec.Journey.QueueID,
		"step_id", exec.Step.ID,
	)

	return continueFrom(exec.Tree, exec.Step, resumeAt), nil
}

// DelayDuration reads value and unit from delay settings. A missing value
// means 1 and a missing unit means day; anything present but unusable wraps
// ErrDelayComputation.
func DelayDuration(settings models.Settings) (time.Duration, error) {
	value := int64(defaultDelayValue)

	if raw, present := settings[models.SettingDelayValue]; present && raw != nil {
		v, ok := settings.Int(models.SettingDelayValue)
		if !ok || v <= 0 {
			return 0, fmt.Errorf("%w: value %v is not a positive integer", ErrDelayComputation, raw)
		}

		value = v
	}

	written := defaultDelayUnit

	if raw, present := settings[models.SettingDelayUnit]; present && raw != nil {
		s, ok := settings.String(models.SettingDelayUnit)
		if !ok {
			return 0, fmt.Errorf("%w: unit %v is not a string", ErrDelayComputation, raw)
		}

		written = s
	}

	unit, size, ok := models.DelayUnit(written)
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q", ErrDelayComputation, written)
	}

	if value > int64(time.Duration(math.MaxInt64)/size) {
		return 0, fmt.Errorf("%w: %d %s overflows", ErrDelayComputation, value, unit)
	}

	return time.Duration(value) * size, nil
}
