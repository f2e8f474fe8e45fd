package engine

import (
	"context"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/steptree"
)

// Execution is everything a step handler sees while running.
type Execution struct {
	Journey *models.Journey
	Step    *models.StepNode
	Tree    *steptree.Tree
	Now     time.Time
}

// StepHandler runs one step variant. Returned errors are unexpected failures
// that leave the journey claimed for the caller to release and retry.
type StepHandler interface {
	Execute(ctx context.Context, exec *Execution) (Continuation, error)
}

// StepHandlerFunc adapts a function to StepHandler.
type StepHandlerFunc func(ctx context.Context, exec *Execution) (Continuation, error)

func (f StepHandlerFunc) Execute(ctx context.Context, exec *Execution) (Continuation, error) {
	return f(ctx, exec)
}

// continueFrom resolves the traversal after ref, completing when it is exhausted.
func continueFrom(tree *steptree.Tree, ref *models.StepNode, processAt time.Time) Continuation {
	next, ok := tree.Next(ref)
	if !ok {
		return Complete()
	}

	return Advance(next.ID, processAt)
}
