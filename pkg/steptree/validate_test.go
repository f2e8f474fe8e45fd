package steptree_test

import (
	"testing"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/steptree"
	"github.com/stretchr/testify/assert"
)

func TestTree_Validate(t *testing.T) {
	known := []string{"campaign_opened"}

	tests := []struct {
		name    string
		steps   []*models.StepNode
		wantErr error
	}{
		{
			name: "valid tree",
			steps: []*models.StepNode{
				{ID: 1, AutomationID: 1, Type: models.StepTypeAction, Settings: models.Settings{"campaign_id": float64(3)}},
				{ID: 2, AutomationID: 1, Type: models.StepTypeDelay, Order: 1, Settings: models.Settings{"value": "2", "unit": "hours"}},
				{ID: 3, AutomationID: 1, Type: models.StepTypeCondition, Order: 2, Settings: models.Settings{"type": "campaign_opened", "campaign_id": 3}},
				{ID: 4, AutomationID: 1, ParentID: 3, Branch: models.BranchYes, Type: models.StepTypeAction, Settings: models.Settings{}},
			},
		},
		{
			name: "delay with unknown unit",
			steps: []*models.StepNode{
				{ID: 1, AutomationID: 1, Type: models.StepTypeDelay, Settings: models.Settings{"value": 2, "unit": "fortnight"}},
			},
			wantErr: steptree.ErrInvalidSettings,
		},
		{
			name: "delay unit written loosely",
			steps: []*models.StepNode{
				{ID: 1, AutomationID: 1, Type: models.StepTypeDelay, Settings: models.Settings{"value": 2, "unit": " HOURS "}},
			},
		},
		{
			name: "delay unit not a string",
			steps: []*models.StepNode{
				{ID: 1, AutomationID: 1, Type: models.StepTypeDelay, Settings: models.Settings{"value": 2, "unit": 3}},
			},
			wantErr: steptree.ErrInvalidSettings,
		},
		{
			name: "delay with zero value",
			steps: []*models.StepNode{
				{ID: 1, AutomationID: 1, Type: models.StepTypeDelay, Settings: models.Settings{"value": 0, "unit": "day"}},
			},
			wantErr: steptree.ErrInvalidSettings,
		},
		{
			name: "unknown condition kind",
			steps: []*models.StepNode{
				{ID: 1, AutomationID: 1, Type: models.StepTypeCondition, Settings: models.Settings{"type": "clicked_link"}},
			},
			wantErr: steptree.ErrInvalidSettings,
		},
		{
			name: "unknown step type",
			steps: []*models.StepNode{
				{ID: 1, AutomationID: 1, Type: models.StepType("webhook")},
			},
			wantErr: steptree.ErrUnknownStepType,
		},
		{
			name: "child of an action",
			steps: []*models.StepNode{
				{ID: 1, AutomationID: 1, Type: models.StepTypeAction},
				{ID: 2, AutomationID: 1, ParentID: 1, Branch: models.BranchYes, Type: models.StepTypeAction},
			},
			wantErr: steptree.ErrInvalidStructure,
		},
		{
			name: "missing parent",
			steps: []*models.StepNode{
				{ID: 2, AutomationID: 1, ParentID: 9, Branch: models.BranchNo, Type: models.StepTypeAction},
			},
			wantErr: steptree.ErrInvalidStructure,
		},
		{
			name: "root step on a branch",
			steps: []*models.StepNode{
				{ID: 1, AutomationID: 1, Branch: models.BranchYes, Type: models.StepTypeAction},
			},
			wantErr: steptree.ErrInvalidStructure,
		},
		{
			name: "condition child without branch",
			steps: []*models.StepNode{
				{ID: 1, AutomationID: 1, Type: models.StepTypeCondition, Settings: models.Settings{"type": "campaign_opened"}},
				{ID: 2, AutomationID: 1, ParentID: 1, Type: models.StepTypeAction},
			},
			wantErr: steptree.ErrInvalidStructure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := steptree.Build(1, tt.steps).Validate(known)

			if tt.wantErr == nil {
				assert.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestProblems(t *testing.T) {
	assert.Nil(t, steptree.Problems(nil))

	tree := steptree.Build(1, []*models.StepNode{
		{ID: 1, AutomationID: 1, Type: models.StepTypeDelay, Settings: models.Settings{"unit": "fortnight"}},
		{ID: 2, AutomationID: 1, ParentID: 9, Branch: models.BranchNo, Type: models.StepTypeAction},
	})

	problems := steptree.Problems(tree.Validate(nil))
	assert.Len(t, problems, 2)
	assert.ErrorIs(t, problems[0], steptree.ErrInvalidSettings)
	assert.ErrorIs(t, problems[1], steptree.ErrInvalidStructure)
}
