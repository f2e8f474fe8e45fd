package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
)

const journeyColumns = `
			queue_id
		  , automation_id
		  , contact_id
		  , current_step_id
		  , status
		  , process_at
		  , attempts
		  , created_at
		  , updated_at`

const defaultDueLimit = 100

// JourneyRepository handles the automation_queue table.
type JourneyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewJourneyRepository creates a new journey repository.
func NewJourneyRepository(db *sql.DB, logger *slog.Logger) *JourneyRepository {
	return &JourneyRepository{db: db, logger: logger}
}

func (r *JourneyRepository) Create(ctx context.Context, journey *models.Journey) error {
	now := time.Now().UTC()
	if journey.CreatedAt.IsZero() {
		journey.CreatedAt = now
	}

	if journey.Status == "" {
		journey.Status = models.JourneyStatusWaiting
	}

	journey.UpdatedAt = now

	query := `
		INSERT INTO automation_queue (automation_id, contact_id, current_step_id, status, process_at, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING queue_id
	`

	err := r.db.QueryRowContext(ctx, query,
		journey.AutomationID,
		journey.ContactID,
		journey.CurrentStepID,
		journey.Status,
		journey.ProcessAt,
		journey.Attempts,
		journey.CreatedAt,
		journey.UpdatedAt,
	).Scan(&journey.QueueID)
	if err != nil {
		return fmt.Errorf("failed to create journey for contact %d in automation %d: %w", journey.ContactID, journey.AutomationID, err)
	}

	return nil
}

func (r *JourneyRepository) Due(ctx context.Context, query persistence.DueQuery) ([]*models.Journey, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultDueLimit
	}

	args := []any{models.JourneyStatusWaiting, query.Now, limit}

	stmt := `SELECT` + journeyColumns + `
		FROM automation_queue
		WHERE ((status = $1 AND process_at <= $2)`

	if !query.StaleBefore.IsZero() {
		args = append(args, models.JourneyStatusProcessing, query.StaleBefore)
		stmt += ` OR (status = $4 AND updated_at < $5)`
	}

	stmt += `)`

	if query.ActiveOnly {
		stmt += `
		  AND automation_id IN (SELECT automation_id FROM automations WHERE status = 'active')`
	}

	stmt += `
		ORDER BY process_at, queue_id
		LIMIT $3`

	return r.query(ctx, stmt, args...)
}

// Claim flips a waiting or stale journey to processing in a single conditional
// UPDATE, so only one concurrent caller sees a returned row.
func (r *JourneyRepository) Claim(ctx context.Context, queueID int64, claim persistence.ClaimQuery) (*models.Journey, bool, error) {
	now := claim.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	query := `
		UPDATE automation_queue
		SET status = $1, attempts = attempts + 1, updated_at = $2
		WHERE queue_id = $3
		  AND (status = $4 OR (status = $1 AND $5::timestamptz IS NOT NULL AND updated_at < $5))
		RETURNING` + journeyColumns

	var staleBefore sql.NullTime
	if !claim.StaleBefore.IsZero() {
		staleBefore = sql.NullTime{Time: claim.StaleBefore, Valid: true}
	}

	journey, err := scanJourney(r.db.QueryRowContext(ctx, query,
		models.JourneyStatusProcessing,
		now,
		queueID,
		models.JourneyStatusWaiting,
		staleBefore,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, persistence.NewJourneyError("Claim", queueID, err)
	}

	return journey, true, nil
}

func (r *JourneyRepository) Advance(ctx context.Context, queueID, nextStepID int64, status models.JourneyStatus, processAt time.Time) error {
	query := `
		UPDATE automation_queue
		SET current_step_id = $1, status = $2, process_at = $3, attempts = 0, updated_at = $4
		WHERE queue_id = $5 AND status = $6
	`

	return r.exec(ctx, "Advance", queueID, query,
		nextStepID, status, processAt, time.Now().UTC(), queueID, models.JourneyStatusProcessing)
}

func (r *JourneyRepository) Complete(ctx context.Context, queueID int64) error {
	query := `
		UPDATE automation_queue
		SET status = $1, updated_at = $2
		WHERE queue_id = $3 AND status = $4
	`

	return r.exec(ctx, "Complete", queueID, query,
		models.JourneyStatusCompleted, time.Now().UTC(), queueID, models.JourneyStatusProcessing)
}

func (r *JourneyRepository) Release(ctx context.Context, queueID int64) error {
	query := `
		UPDATE automation_queue
		SET status = $1, updated_at = $2
		WHERE queue_id = $3 AND status = $4
	`

	return r.exec(ctx, "Release", queueID, query,
		models.JourneyStatusWaiting, time.Now().UTC(), queueID, models.JourneyStatusProcessing)
}

func (r *JourneyRepository) ByID(ctx context.Context, queueID int64) (*models.Journey, error) {
	query := `SELECT` + journeyColumns + `
		FROM automation_queue
		WHERE queue_id = $1
	`

	journey, err := scanJourney(r.db.QueryRowContext(ctx, query, queueID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewJourneyError("ByID", queueID, persistence.ErrJourneyNotFound)
		}

		return nil, persistence.NewJourneyError("ByID", queueID, err)
	}

	return journey, nil
}

func (r *JourneyRepository) List(ctx context.Context, filter persistence.JourneyFilter) ([]*models.Journey, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.AutomationID != 0 {
		args = append(args, filter.AutomationID)
		conditions = append(conditions, "automation_id = $"+strconv.Itoa(len(args)))
	}

	if filter.ContactID != 0 {
		args = append(args, filter.ContactID)
		conditions = append(conditions, "contact_id = $"+strconv.Itoa(len(args)))
	}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT` + journeyColumns + `
		FROM automation_queue`

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY queue_id"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	return r.query(ctx, query, args...)
}

// exec runs an update guarded by status = processing and reports which
// precondition failed when no row changed.
func (r *JourneyRepository) exec(ctx context.Context, op string, queueID int64, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistence.NewJourneyError(op, queueID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewJourneyError(op, queueID, err)
	}

	if affected > 0 {
		return nil
	}

	_, err = r.ByID(ctx, queueID)
	if err != nil {
		return persistence.NewJourneyError(op, queueID, persistence.ErrJourneyNotFound)
	}

	return persistence.NewJourneyError(op, queueID, persistence.ErrJourneyNotClaimed)
}

func (r *JourneyRepository) query(ctx context.Context, query string, args ...any) ([]*models.Journey, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journeys: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	journeys := make([]*models.Journey, 0)

	for rows.Next() {
		journey, err := scanJourney(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journey: %w", err)
		}

		journeys = append(journeys, journey)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating journeys: %w", err)
	}

	return journeys, nil
}

func scanJourney(row scanner) (*models.Journey, error) {
	var journey models.Journey

	err := row.Scan(
		&journey.QueueID,
		&journey.AutomationID,
		&journey.ContactID,
		&journey.CurrentStepID,
		&journey.Status,
		&journey.ProcessAt,
		&journey.Attempts,
		&journey.CreatedAt,
		&journey.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &journey, nil
}
