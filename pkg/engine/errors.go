package engine

import (
	"errors"
	"fmt"

	"github.com/dukex/journeys/pkg/conditions"
)

var (
	// ErrStepNotFound means the journey points at a step that no longer exists.
	// The journey is completed and never retried.
	ErrStepNotFound = errors.New("step not found")

	// ErrDelayComputation means a delay step's value or unit is unusable. The
	// delay is skipped and the journey advances immediately.
	ErrDelayComputation = errors.New("cannot compute delay")

	// ErrUnknownStepType means the step's type has no handler. The step is skipped.
	ErrUnknownStepType = errors.New("unknown step type")

	// ErrUnknownPredicate means a condition named an unregistered predicate and
	// was routed to the no branch.
	ErrUnknownPredicate = conditions.ErrUnknownPredicate
)

// StepError ties a non-fatal step fault to the journey and step it happened on.
type StepError struct {
	QueueID int64
	StepID  int64
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("journey %d at step %d: %v", e.QueueID, e.StepID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func (e *StepError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func IsStepNotFound(err error) bool {
	return errors.Is(err, ErrStepNotFound)
}

func IsDelayComputation(err error) bool {
	return errors.Is(err, ErrDelayComputation)
}

func IsUnknownPredicate(err error) bool {
	return errors.Is(err, ErrUnknownPredicate)
}
