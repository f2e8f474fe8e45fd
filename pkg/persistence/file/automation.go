package file

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
)

// AutomationRepository stores automation definitions in automations.json.
type AutomationRepository struct {
	store *Persistence
}

func (r *AutomationRepository) ActiveByTrigger(_ context.Context, triggerType models.TriggerType) ([]*models.Automation, error) {
	all, err := read[[]*models.Automation](r.store, automationsFile)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Automation, 0)

	for _, automation := range all {
		if automation.IsActive() && automation.TriggerType == triggerType {
			matches = append(matches, automation)
		}
	}

	return matches, nil
}

func (r *AutomationRepository) ByID(_ context.Context, id int64) (*models.Automation, error) {
	all, err := read[[]*models.Automation](r.store, automationsFile)
	if err != nil {
		return nil, err
	}

	for _, automation := range all {
		if automation.ID == id {
			return automation, nil
		}
	}

	return nil, persistence.NewAutomationError("ByID", id, persistence.ErrAutomationNotFound)
}

func (r *AutomationRepository) All(_ context.Context) ([]*models.Automation, error) {
	all, err := read[[]*models.Automation](r.store, automationsFile)
	if err != nil {
		return nil, err
	}

	if all == nil {
		all = make([]*models.Automation, 0)
	}

	slices.SortFunc(all, func(a, b *models.Automation) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return all, nil
}

// Save inserts or replaces the automation with the same id.
func (r *AutomationRepository) Save(_ context.Context, automation *models.Automation) error {
	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = time.Now().UTC()
	}

	return update(r.store, automationsFile, func(all *[]*models.Automation) error {
		for i, existing := range *all {
			if existing.ID == automation.ID {
				(*all)[i] = automation

				return nil
			}
		}

		*all = append(*all, automation)

		return nil
	})
}

// StepRepository stores the steps of every automation in automation_steps.json.
type StepRepository struct {
	store *Persistence
}

func (r *StepRepository) StepsByAutomation(_ context.Context, automationID int64) ([]*models.StepNode, error) {
	all, err := read[[]*models.StepNode](r.store, stepsFile)
	if err != nil {
		return nil, err
	}

	steps := make([]*models.StepNode, 0)

	for _, step := range all {
		if step.AutomationID == automationID {
			steps = append(steps, step)
		}
	}

	return steps, nil
}

func (r *StepRepository) ReplaceSteps(_ context.Context, automationID int64, steps []*models.StepNode) error {
	return update(r.store, stepsFile, func(all *[]*models.StepNode) error {
		kept := slices.DeleteFunc(*all, func(step *models.StepNode) bool {
			return step.AutomationID == automationID
		})

		for _, step := range steps {
			step.AutomationID = automationID
			kept = append(kept, step)
		}

		*all = kept

		return nil
	})
}
