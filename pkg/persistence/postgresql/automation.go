package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
)

const automationColumns = `
			automation_id
		  , name
		  , status
		  , trigger_type
		  , trigger_settings
		  , created_at`

// AutomationRepository handles automation-related database operations.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAutomationRepository creates a new automation repository.
func NewAutomationRepository(db *sql.DB, logger *slog.Logger) *AutomationRepository {
	return &AutomationRepository{db: db, logger: logger}
}

func (r *AutomationRepository) ActiveByTrigger(ctx context.Context, triggerType models.TriggerType) ([]*models.Automation, error) {
	query := `SELECT` + automationColumns + `
		FROM automations
		WHERE status = $1 AND trigger_type = $2
		ORDER BY automation_id
	`

	return r.query(ctx, query, models.AutomationStatusActive, triggerType)
}

func (r *AutomationRepository) All(ctx context.Context) ([]*models.Automation, error) {
	query := `SELECT` + automationColumns + `
		FROM automations
		ORDER BY automation_id
	`

	return r.query(ctx, query)
}

func (r *AutomationRepository) ByID(ctx context.Context, id int64) (*models.Automation, error) {
	query := `SELECT` + automationColumns + `
		FROM automations
		WHERE automation_id = $1
	`

	automation, err := scanAutomation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewAutomationError("ByID", id, persistence.ErrAutomationNotFound)
		}

		return nil, persistence.NewAutomationError("ByID", id, err)
	}

	return automation, nil
}

// Save inserts or replaces the automation with the same id.
func (r *AutomationRepository) Save(ctx context.Context, automation *models.Automation) error {
	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = time.Now().UTC()
	}

	settings, err := json.Marshal(automation.TriggerSettings)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger settings: %w", err)
	}

	query := `
		INSERT INTO automations (automation_id, name, status, trigger_type, trigger_settings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (automation_id) DO UPDATE SET
			name = EXCLUDED.name
		  , status = EXCLUDED.status
		  , trigger_type = EXCLUDED.trigger_type
		  , trigger_settings = EXCLUDED.trigger_settings
	`

	_, err = r.db.ExecContext(ctx, query,
		automation.ID,
		automation.Name,
		automation.Status,
		automation.TriggerType,
		settings,
		automation.CreatedAt,
	)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	return nil
}

func (r *AutomationRepository) query(ctx context.Context, query string, args ...any) ([]*models.Automation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	automations := make([]*models.Automation, 0)

	for rows.Next() {
		automation, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, automation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return automations, nil
}

func scanAutomation(row scanner) (*models.Automation, error) {
	var (
		automation   models.Automation
		settingsJSON []byte
	)

	err := row.Scan(
		&automation.ID,
		&automation.Name,
		&automation.Status,
		&automation.TriggerType,
		&settingsJSON,
		&automation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(settingsJSON) > 0 {
		err = json.Unmarshal(settingsJSON, &automation.TriggerSettings)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger settings: %w", err)
		}
	}

	return &automation, nil
}

// StepRepository handles step-related database operations.
type StepRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStepRepository creates a new step repository.
func NewStepRepository(db *sql.DB, logger *slog.Logger) *StepRepository {
	return &StepRepository{db: db, logger: logger}
}

func (r *StepRepository) StepsByAutomation(ctx context.Context, automationID int64) ([]*models.StepNode, error) {
	query := `
		SELECT
			step_id
		  , automation_id
		  , parent_id
		  , branch
		  , step_type
		  , step_settings
		  , step_order
		FROM automation_steps
		WHERE automation_id = $1
		ORDER BY parent_id, branch, step_order, step_id
	`

	rows, err := r.db.QueryContext(ctx, query, automationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps for automation %d: %w", automationID, err)
	}
	defer closeRows(ctx, r.logger, rows)

	steps := make([]*models.StepNode, 0)

	for rows.Next() {
		var (
			step         models.StepNode
			settingsJSON []byte
		)

		err := rows.Scan(
			&step.ID,
			&step.AutomationID,
			&step.ParentID,
			&step.Branch,
			&step.Type,
			&settingsJSON,
			&step.Order,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		if len(settingsJSON) > 0 {
			err = json.Unmarshal(settingsJSON, &step.Settings)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal settings of step %d: %w", step.ID, err)
			}
		}

		steps = append(steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	return steps, nil
}

// ReplaceSteps deletes the automation's steps and inserts the new set in one transaction.
func (r *StepRepository) ReplaceSteps(ctx context.Context, automationID int64, steps []*models.StepNode) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, "DELETE FROM automation_steps WHERE automation_id = $1", automationID)
	if err != nil {
		return persistence.NewAutomationError("ReplaceSteps", automationID, err)
	}

	insert := `
		INSERT INTO automation_steps (step_id, automation_id, parent_id, branch, step_type, step_settings, step_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, step := range steps {
		step.AutomationID = automationID

		var settings []byte

		settings, err = json.Marshal(step.Settings)
		if err != nil {
			return fmt.Errorf("failed to marshal settings of step %d: %w", step.ID, err)
		}

		_, err = tx.ExecContext(ctx, insert,
			step.ID,
			automationID,
			step.ParentID,
			models.NormalizeBranch(step.Branch),
			step.Type,
			settings,
			step.Order,
		)
		if err != nil {
			return persistence.NewAutomationError("ReplaceSteps", automationID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit steps: %w", err)
	}

	return nil
}
