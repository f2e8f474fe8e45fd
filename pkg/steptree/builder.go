package steptree

import (
	"errors"
	"fmt"

	"github.com/dukex/journeys/pkg/models"
)

// BuilderStep is one node of the nested document produced by the automation
// builder. Conditions carry their sub-trees in YesBranch and NoBranch.
type BuilderStep struct {
	ID        int64           `json:"step_id,omitempty"`
	Type      models.StepType `json:"step_type"             validate:"required,oneof=action delay condition"`
	Settings  models.Settings `json:"step_settings"`
	YesBranch []BuilderStep   `json:"yes_branch,omitempty"  validate:"dive"`
	NoBranch  []BuilderStep   `json:"no_branch,omitempty"   validate:"dive"`
}

// IDAllocator hands out step ids for rows produced by Flatten.
type IDAllocator func() int64

// SequentialIDs returns an allocator counting up from start.
func SequentialIDs(start int64) IDAllocator {
	next := start

	return func() int64 {
		id := next
		next++

		return id
	}
}

// Flatten turns a nested builder document into step rows with parent ids,
// branches and sibling orders assigned. Positions inside each array become
// step_order. Branches submitted on non-condition steps are dropped; run
// CheckDocument first to report them.
func Flatten(automationID int64, steps []BuilderStep, nextID IDAllocator) []*models.StepNode {
	rows := make([]*models.StepNode, 0, len(steps))

	var walk func(parentID int64, branch models.Branch, group []BuilderStep)

	walk = func(parentID int64, branch models.Branch, group []BuilderStep) {
		for order, step := range group {
			id := step.ID
			if id == 0 {
				id = nextID()
			}

			rows = append(rows, &models.StepNode{
				ID:           id,
				AutomationID: automationID,
				ParentID:     parentID,
				Branch:       branch,
				Type:         step.Type,
				Settings:     step.Settings,
				Order:        order,
			})

			if step.Type == models.StepTypeCondition {
				walk(id, models.BranchYes, step.YesBranch)
				walk(id, models.BranchNo, step.NoBranch)
			}
		}
	}

	walk(models.RootParentID, models.BranchNone, steps)

	return rows
}

// MaxID returns the highest explicit step id in the document, so an allocator
// starting above it never hands out an id already in use.
func MaxID(steps []BuilderStep) int64 {
	var highest int64

	for _, step := range steps {
		highest = max(highest, step.ID, MaxID(step.YesBranch), MaxID(step.NoBranch))
	}

	return highest
}

// CheckDocument reports what Flatten would silently lose: explicit step ids
// used more than once and branches attached to steps that are not conditions.
// Problems are joined like Validate's.
func CheckDocument(steps []BuilderStep) error {
	var (
		problems []error
		seen     = make(map[int64]bool)
	)

	var walk func(group []BuilderStep)

	walk = func(group []BuilderStep) {
		for _, step := range group {
			if step.ID != 0 {
				if seen[step.ID] {
					problems = append(problems, fmt.Errorf("%w: step id %d is used more than once", ErrInvalidStructure, step.ID))
				}

				seen[step.ID] = true
			}

			if step.Type != models.StepTypeCondition && (len(step.YesBranch) > 0 || len(step.NoBranch) > 0) {
				problems = append(problems, fmt.Errorf("%w: %s step %s has branches, only conditions do", ErrInvalidStructure, step.Type, label(step)))
			}

			walk(step.YesBranch)
			walk(step.NoBranch)
		}
	}

	walk(steps)

	return errors.Join(problems...)
}

func label(step BuilderStep) string {
	if step.ID == 0 {
		return "(new)"
	}

	return fmt.Sprint(step.ID)
}

// Nest rebuilds the builder document from the tree, the inverse of Flatten.
func (t *Tree) Nest() []BuilderStep {
	return t.nestGroup(models.RootParentID, models.BranchNone, make(map[int64]bool, len(t.nodes)))
}

func (t *Tree) nestGroup(parentID int64, branch models.Branch, seen map[int64]bool) []BuilderStep {
	children := t.Children(parentID, branch)
	if len(children) == 0 {
		return nil
	}

	nested := make([]BuilderStep, 0, len(children))

	for _, child := range children {
		if seen[child.ID] {
			continue
		}

		seen[child.ID] = true

		step := BuilderStep{
			ID:       child.ID,
			Type:     child.Type,
			Settings: child.Settings,
		}

		if child.Type == models.StepTypeCondition {
			step.YesBranch = t.nestGroup(child.ID, models.BranchYes, seen)
			step.NoBranch = t.nestGroup(child.ID, models.BranchNo, seen)
		}

		nested = append(nested, step)
	}

	return nested
}
