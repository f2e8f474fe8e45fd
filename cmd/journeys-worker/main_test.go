package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/journeys/pkg/cmd"
	"github.com/dukex/journeys/pkg/events"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/persistence/file"
	"github.com/dukex/journeys/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := newRootCommand()
	root.Writer = &out
	root.ErrWriter = io.Discard

	err := root.Run(t.Context(), append([]string{"journeys-worker"}, args...))

	return out.String(), err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "automation.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func seed(t *testing.T, root string) *file.Persistence {
	t.Helper()

	store := file.NewPersistence(root)
	ctx := t.Context()

	require.NoError(t, store.AutomationRepository().Save(ctx, &models.Automation{
		ID:              1,
		Name:            "welcome",
		Status:          models.AutomationStatusActive,
		TriggerType:     models.TriggerContactAddedToList,
		TriggerSettings: models.Settings{"list_id": 5},
	}))
	require.NoError(t, store.StepRepository().ReplaceSteps(ctx, 1, []*models.StepNode{
		{ID: 1, AutomationID: 1, Branch: models.BranchNone, Type: models.StepTypeAction, Settings: models.Settings{"campaign_id": 7}},
	}))

	return store
}

func TestValidateCommand_File(t *testing.T) {
	valid := writeFile(t, `[
		{"step_type": "action", "step_settings": {"campaign_id": 3}},
		{"step_type": "delay", "step_settings": {"value": 2, "unit": "days"}},
		{"step_type": "condition", "step_settings": {"type": "campaign_opened", "campaign_id": 3},
		 "yes_branch": [{"step_type": "action", "step_settings": {"campaign_id": 4}}],
		 "no_branch": []}
	]`)

	out, err := run(t, "validate", "--file", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "ok (4 steps)")

	wrapped := writeFile(t, `{"automation_id": 9, "steps": [{"step_type": "action"}]}`)

	out, err = run(t, "validate", "--file", wrapped)
	require.NoError(t, err)
	assert.Contains(t, out, "ok (1 steps)")
}

func TestValidateCommand_InvalidFile(t *testing.T) {
	tests := map[string]string{
		"unknown unit":      `[{"step_type": "delay", "step_settings": {"value": 2, "unit": "weeks"}}]`,
		"unknown condition": `[{"step_type": "condition", "step_settings": {"type": "clicked_link"}}]`,
		"unknown step type": `[{"step_type": "webhook"}]`,
		"malformed json":    `[{"step_type": `,
		"duplicate step id": `[{"step_id": 2, "step_type": "action"}, {"step_id": 2, "step_type": "action"}]`,
		"branch on action":  `[{"step_type": "action", "yes_branch": [{"step_type": "action"}]}]`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := run(t, "validate", "--file", writeFile(t, content))
			assert.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestValidateCommand_FileMixingExplicitAndNewIDs(t *testing.T) {
	path := writeFile(t, `[
		{"step_type": "action", "step_settings": {"campaign_id": 3}},
		{"step_id": 1, "step_type": "delay", "step_settings": {"value": 1}}
	]`)

	out, err := run(t, "validate", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ok (2 steps)")
}

func TestValidateCommand_ReportsDroppedBranches(t *testing.T) {
	path := writeFile(t, `[{"step_type": "delay", "no_branch": [{"step_type": "action"}]}]`)

	out, err := run(t, "validate", "--file", path)
	require.ErrorIs(t, err, ErrInvalidDefinition)
	assert.Contains(t, out, "has branches, only conditions do")
}

func TestValidateCommand_Database(t *testing.T) {
	root := t.TempDir()
	store := seed(t, root)

	out, err := run(t, "validate", "--database-url", "file://"+root)
	require.NoError(t, err)
	assert.Contains(t, out, "1 automations checked, 0 invalid")

	require.NoError(t, store.StepRepository().ReplaceSteps(t.Context(), 1, []*models.StepNode{
		{ID: 1, AutomationID: 1, ParentID: 4, Branch: models.BranchYes, Type: models.StepTypeAction},
	}))

	out, err = run(t, "validate", "--database-url", "file://"+root)
	require.ErrorIs(t, err, ErrInvalidDefinition)
	assert.Contains(t, out, "missing parent")
}

func TestValidateCommand_NothingToValidate(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := run(t, "validate")
	assert.ErrorIs(t, err, ErrNothingToValidate)
}

func TestTickCommand(t *testing.T) {
	root := t.TempDir()
	store := seed(t, root)

	journey := models.NewJourney(1, 100, 1, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, store.JourneyRepository().Create(t.Context(), journey))

	out, err := run(t, "tick", "--database-url", "file://"+root, "--log-level", "error")
	require.NoError(t, err)

	var result scheduler.TickResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, scheduler.TickResult{Due: 1, Claimed: 1, Completed: 1}, result)

	dispatches, err := store.Mailer().Dispatches(t.Context())
	require.NoError(t, err)
	require.Len(t, dispatches, 1)
	assert.Equal(t, int64(7), dispatches[0].CampaignID)
}

func TestTickCommand_InvalidSpec(t *testing.T) {
	_, err := run(t, "tick", "--database-url", "file://"+t.TempDir(), "--tick-spec", "sometimes")
	assert.Error(t, err)
}

func TestWorker_StartsJourneysFromBus(t *testing.T) {
	root := t.TempDir()
	store := seed(t, root)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	config := scheduler.DefaultConfig()
	config.Spec = "@every 1h"

	worker, err := NewWorker(t.Context(), logger, workerConfig{DatabaseURL: "file://" + root, Scheduler: config})
	require.NoError(t, err)

	bus, err := cmd.NewEventBus("gochannel", nil, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, worker.Start(ctx, bus))

	require.NoError(t, bus.Publish(ctx, "100", events.NewContactAddedToList(100, 5)))

	assert.Eventually(t, func() bool {
		journeys, err := store.JourneyRepository().List(ctx, persistence.JourneyFilter{AutomationID: 1})

		return err == nil && len(journeys) == 1 && journeys[0].ContactID == 100
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, worker.Stop(ctx))
	require.NoError(t, bus.Close())
	require.NoError(t, worker.Close(ctx))
}
