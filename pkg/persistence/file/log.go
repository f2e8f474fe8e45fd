package file

import (
	"context"

	"github.com/dukex/journeys/pkg/models"
)

// LogRepository appends audit log entries to automation_logs.json.
type LogRepository struct {
	store *Persistence
}

func (r *LogRepository) SaveLog(_ context.Context, entry *models.LogEntry) error {
	return update(r.store, logsFile, func(all *[]*models.LogEntry) error {
		*all = append(*all, entry)

		return nil
	})
}

// Entries returns every stored log entry, oldest first.
func (r *LogRepository) Entries(_ context.Context) ([]*models.LogEntry, error) {
	return read[[]*models.LogEntry](r.store, logsFile)
}
