package steptree

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dukex/journeys/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrInvalidSettings indicates step_settings do not match the schema of the step type.
	ErrInvalidSettings = errors.New("invalid step settings")

	// ErrInvalidStructure indicates parent/branch links that cannot form a step tree.
	ErrInvalidStructure = errors.New("invalid step tree structure")

	// ErrUnknownStepType indicates a step_type outside action, delay and condition.
	ErrUnknownStepType = errors.New("unknown step type")
)

var settingsSchemas = map[models.StepType]map[string]any{
	models.StepTypeAction: {
		"type": "object",
		"properties": map[string]any{
			"campaign_id": map[string]any{"type": []any{"integer", "string"}, "pattern": "^[0-9]+$", "minimum": 1},
		},
	},
	models.StepTypeDelay: {
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{"type": []any{"integer", "string"}, "pattern": "^[0-9]+$", "minimum": 1},
			"unit":  map[string]any{"type": "string"},
		},
	},
	models.StepTypeCondition: {
		"type":     "object",
		"required": []any{"type"},
		"properties": map[string]any{
			"type":        map[string]any{"type": "string", "minLength": 1},
			"campaign_id": map[string]any{"type": []any{"integer", "string"}, "pattern": "^[0-9]+$", "minimum": 1},
		},
	},
}

// Validate checks every step of the tree: settings against the schema of their
// type, condition kinds against knownConditions (skipped when empty), and that
// parent/branch links describe a tree. All problems are joined in the result.
func (t *Tree) Validate(knownConditions []string) error {
	var problems []error

	for _, id := range t.sortedIDs() {
		node := t.nodes[id]

		err := validateSettings(node)
		if err != nil {
			problems = append(problems, err)
		}

		if node.Type == models.StepTypeCondition && len(knownConditions) > 0 {
			kind, _ := node.Settings.String(models.SettingCondition)
			if kind != "" && !slices.Contains(knownConditions, kind) {
				problems = append(problems, fmt.Errorf("%w: step %d uses unknown condition %q", ErrInvalidSettings, id, kind))
			}
		}

		err = t.validateLinks(node)
		if err != nil {
			problems = append(problems, err)
		}
	}

	return errors.Join(problems...)
}

func (t *Tree) validateLinks(node *models.StepNode) error {
	if node.IsRoot() {
		if node.Branch != models.BranchNone {
			return fmt.Errorf("%w: root step %d is on branch %q", ErrInvalidStructure, node.ID, node.Branch)
		}

		return nil
	}

	parent, ok := t.nodes[node.ParentID]
	if !ok {
		return fmt.Errorf("%w: step %d references missing parent %d", ErrInvalidStructure, node.ID, node.ParentID)
	}

	if parent.Type != models.StepTypeCondition {
		return fmt.Errorf("%w: step %d is nested under %s step %d", ErrInvalidStructure, node.ID, parent.Type, parent.ID)
	}

	if node.Branch != models.BranchYes && node.Branch != models.BranchNo {
		return fmt.Errorf("%w: step %d under condition %d has branch %q", ErrInvalidStructure, node.ID, parent.ID, node.Branch)
	}

	if t.Depth(node) > len(t.nodes) {
		return fmt.Errorf("%w: step %d is part of a parent cycle", ErrInvalidStructure, node.ID)
	}

	return nil
}

func validateSettings(node *models.StepNode) error {
	schema, ok := settingsSchemas[node.Type]
	if !ok {
		return fmt.Errorf("%w: step %d has type %q", ErrUnknownStepType, node.ID, node.Type)
	}

	settings := node.Settings
	if settings == nil {
		settings = models.Settings{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(map[string]any(settings)))
	if err != nil {
		return fmt.Errorf("failed to validate settings of step %d: %w", node.ID, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return fmt.Errorf("%w: step %d: %s", ErrInvalidSettings, node.ID, strings.Join(messages, "; "))
	}

	if node.Type == models.StepTypeDelay {
		unit, present := settings.String(models.SettingDelayUnit)
		if _, _, ok := models.DelayUnit(unit); present && !ok {
			return fmt.Errorf("%w: step %d: unknown delay unit %q", ErrInvalidSettings, node.ID, unit)
		}
	}

	return nil
}

func (t *Tree) sortedIDs() []int64 {
	ids := make([]int64, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// Problems splits an error returned by Validate into the individual problems.
func Problems(err error) []error {
	if err == nil {
		return nil
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}

	return []error{err}
}
