// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrAutomationNotFound indicates an automation was not found by the given identifier.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrJourneyNotFound indicates a journey was not found by the given queue id.
	ErrJourneyNotFound = errors.New("journey not found")

	// ErrJourneyNotClaimed indicates an update was attempted on a journey that is not processing.
	ErrJourneyNotClaimed = errors.New("journey is not claimed")
)

// JourneyError wraps journey-related errors with additional context.
type JourneyError struct {
	Op      string // Operation being performed (e.g., "Claim", "Advance", "Complete")
	QueueID int64  // Queue id of the journey
	Err     error  // Underlying error
}

func (e *JourneyError) Error() string {
	return fmt.Sprintf("%s operation failed for journey %d: %v", e.Op, e.QueueID, e.Err)
}

func (e *JourneyError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for journey errors.
func (e *JourneyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewJourneyError creates a new journey error with context.
func NewJourneyError(op string, queueID int64, err error) *JourneyError {
	return &JourneyError{
		Op:      op,
		QueueID: queueID,
		Err:     err,
	}
}

// AutomationError wraps automation-related errors with additional context.
type AutomationError struct {
	Op           string // Operation being performed
	AutomationID int64  // Automation id
	Err          error  // Underlying error
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("%s operation failed for automation %d: %v", e.Op, e.AutomationID, e.Err)
}

func (e *AutomationError) Unwrap() error {
	return e.Err
}

func (e *AutomationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewAutomationError creates a new automation error with context.
func NewAutomationError(op string, automationID int64, err error) *AutomationError {
	return &AutomationError{
		Op:           op,
		AutomationID: automationID,
		Err:          err,
	}
}

// IsAutomationNotFound checks if an error indicates an automation was not found.
func IsAutomationNotFound(err error) bool {
	return errors.Is(err, ErrAutomationNotFound)
}

// IsJourneyNotFound checks if an error indicates a journey was not found.
func IsJourneyNotFound(err error) bool {
	return errors.Is(err, ErrJourneyNotFound)
}

// IsJourneyNotClaimed checks if an error indicates the journey was not in processing.
func IsJourneyNotClaimed(err error) bool {
	return errors.Is(err, ErrJourneyNotClaimed)
}
