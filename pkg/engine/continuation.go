// Package engine executes one step of one journey and moves the journey to
// wherever that step says it goes next.
package engine

import (
	"time"

	"github.com/dukex/journeys/pkg/models"
)

// Kind is the shape of a continuation.
type Kind int

const (
	KindAdvance Kind = iota + 1
	KindComplete
)

func (k Kind) String() string {
	switch k {
	case KindAdvance:
		return "advance"
	case KindComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Continuation is what a step decides about the journey after running.
//
// Fault carries a non-fatal problem (stale step, bad delay, unknown predicate)
// that was already audited; the continuation is still applied.
type Continuation struct {
	Kind       Kind
	NextStepID int64
	Status     models.JourneyStatus
	ProcessAt  time.Time
	Fault      error
}

// Advance moves the journey to nextStepID, to be picked up again at processAt.
func Advance(nextStepID int64, processAt time.Time) Continuation {
	return Continuation{
		Kind:       KindAdvance,
		NextStepID: nextStepID,
		Status:     models.JourneyStatusWaiting,
		ProcessAt:  processAt,
	}
}

// Complete ends the journey.
func Complete() Continuation {
	return Continuation{Kind: KindComplete, Status: models.JourneyStatusCompleted}
}

// WithFault returns a copy of c carrying err.
func (c Continuation) WithFault(err error) Continuation {
	c.Fault = err

	return c
}

func (c Continuation) IsComplete() bool {
	return c.Kind == KindComplete
}
