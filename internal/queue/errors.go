package queue

import (
	"errors"
	"fmt"
)

// Business outcomes the API layer maps to specific responses. These are
// expected conditions, not system failures.
var (
	// ErrNotFound is returned when an operation targets a missing entry.
	ErrNotFound = errors.New("entry not found")
	// ErrQueueEmpty reports a call-next against an empty active set.
	ErrQueueEmpty = errors.New("queue is empty")
	// ErrQueueClosed rejects registrations while the queue is closed.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrQueueFull rejects registrations past the configured number ceiling.
	ErrQueueFull = errors.New("queue number limit reached")
)

// ValidationError carries a structured reason for a rejected request.
// Nothing is persisted when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
