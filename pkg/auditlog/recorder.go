// Package auditlog records the engine's outbound audit trail. Every entry is
// written to slog and, when configured, to a persistent log repository.
package auditlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
)

// Recorder fans audit entries out to a logger and an optional repository.
type Recorder struct {
	logger *slog.Logger
	sink   persistence.LogRepository
	now    func() time.Time
}

// New creates a recorder. sink may be nil, in which case entries only reach the logger.
func New(logger *slog.Logger, sink persistence.LogRepository) *Recorder {
	return &Recorder{
		logger: logger,
		sink:   sink,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *Recorder) Info(ctx context.Context, category, message string, attrs ...any) {
	r.Record(ctx, models.SeverityInfo, category, message, attrs...)
}

func (r *Recorder) Warning(ctx context.Context, category, message string, attrs ...any) {
	r.Record(ctx, models.SeverityWarning, category, message, attrs...)
}

func (r *Recorder) Error(ctx context.Context, category, message string, attrs ...any) {
	r.Record(ctx, models.SeverityError, category, message, attrs...)
}

// Record writes one entry. A failing sink is reported on the logger and
// otherwise ignored; auditing never interrupts journey processing.
func (r *Recorder) Record(ctx context.Context, severity models.Severity, category, message string, attrs ...any) {
	r.logger.Log(ctx, level(severity), message, append([]any{"category", category}, attrs...)...)

	if r.sink == nil {
		return
	}

	entry := &models.LogEntry{
		Severity:  severity,
		Category:  category,
		Message:   message,
		CreatedAt: r.now(),
	}

	err := r.sink.SaveLog(ctx, entry)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to persist audit log entry", "category", category, "error", err)
	}
}

func level(severity models.Severity) slog.Level {
	switch severity {
	case models.SeverityError:
		return slog.LevelError
	case models.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
