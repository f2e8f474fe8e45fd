package auditlog_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/journeys/pkg/auditlog"
	"github.com/dukex/journeys/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	entries []*models.LogEntry
	err     error
}

func (m *memorySink) SaveLog(_ context.Context, entry *models.LogEntry) error {
	if m.err != nil {
		return m.err
	}

	m.entries = append(m.entries, entry)

	return nil
}

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRecorder_FansOut(t *testing.T) {
	var buf bytes.Buffer

	sink := &memorySink{}
	recorder := auditlog.New(newLogger(&buf), sink)

	recorder.Info(t.Context(), models.CategoryTrigger, "journey created", "contact_id", 100)
	recorder.Warning(t.Context(), models.CategoryEngine, "unknown predicate")
	recorder.Error(t.Context(), models.CategoryEngine, "step not found")

	require.Len(t, sink.entries, 3)
	assert.Equal(t, models.SeverityInfo, sink.entries[0].Severity)
	assert.Equal(t, models.CategoryTrigger, sink.entries[0].Category)
	assert.Equal(t, models.SeverityWarning, sink.entries[1].Severity)
	assert.Equal(t, models.SeverityError, sink.entries[2].Severity)
	assert.False(t, sink.entries[0].CreatedAt.IsZero())

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "contact_id=100")
	assert.Contains(t, out, "category=automation_trigger")
}

func TestRecorder_SinkFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer

	recorder := auditlog.New(newLogger(&buf), &memorySink{err: errors.New("disk full")})
	recorder.Info(t.Context(), models.CategoryEngine, "campaign queued")

	assert.Contains(t, buf.String(), "failed to persist audit log entry")
	assert.Contains(t, buf.String(), "disk full")
}

func TestRecorder_NilSink(t *testing.T) {
	var buf bytes.Buffer

	recorder := auditlog.New(newLogger(&buf), nil)
	recorder.Error(t.Context(), models.CategoryEngine, "boom")

	assert.Contains(t, buf.String(), "boom")
}
