package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukex/journeys/pkg/models"
)

// LogRepository appends to automation_logs.
type LogRepository struct {
	db *sql.DB
}

// NewLogRepository creates a new log repository.
func NewLogRepository(db *sql.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) SaveLog(ctx context.Context, entry *models.LogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO automation_logs (severity, category, message, created_at) VALUES ($1, $2, $3, $4)",
		entry.Severity, entry.Category, entry.Message, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save log entry: %w", err)
	}

	return nil
}
