package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/journeys/pkg/auditlog"
	"github.com/dukex/journeys/pkg/conditions"
	"github.com/dukex/journeys/pkg/models"
)

// ConditionStep evaluates the predicate named by the step's type setting and
// continues on the yes or no branch. An empty branch continues after the
// condition itself.
type ConditionStep struct {
	registry *conditions.Registry
	audit    *auditlog.Recorder
}

func NewConditionStep(registry *conditions.Registry, audit *auditlog.Recorder) *ConditionStep {
	return &ConditionStep{registry: registry, audit: audit}
}

func (c *ConditionStep) Execute(ctx context.Context, exec *Execution) (Continuation, error) {
	kind, _ := exec.Step.Settings.String(models.SettingCondition)

	var fault error

	matched, err := c.registry.Evaluate(ctx, kind, exec.Journey.ContactID, exec.Step.Settings)

	switch {
	case errors.Is(err, conditions.ErrUnknownPredicate):
		matched = false
		fault = &StepError{QueueID: exec.Journey.QueueID, StepID: exec.Step.ID, Err: err}

		c.audit.Warning(ctx, models.CategoryEngine,
			fmt.Sprintf("Condition step %d of automation %d uses unknown predicate %q; taking the no branch.", exec.Step.ID, exec.Journey.AutomationID, kind),
			"queue_id", exec.Journey.QueueID,
			"contact_id", exec.Journey.ContactID,
		)
	case err != nil:
		return Continuation{}, fmt.Errorf("failed to evaluate condition %q on step %d: %w", kind, exec.Step.ID, err)
	}

	branch := models.BranchNo
	if matched {
		branch = models.BranchYes
	}

	next, ok := exec.Tree.FirstChild(exec.Step.ID, branch)
	if ok {
		return Advance(next.ID, exec.Now).WithFault(fault), nil
	}

	return continueFrom(exec.Tree, exec.Step, exec.Now).WithFault(fault), nil
}
