package models

import "time"

// Severity of an audit log entry.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Audit log categories written by the engine.
const (
	CategoryTrigger = "automation_trigger"
	CategoryEngine  = "automation_engine"
)

// LogEntry is one record of the outbound audit log.
type LogEntry struct {
	Severity  Severity  `json:"severity"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
