package events

import (
	"errors"
	"fmt"
)

// ErrMissingMessageID is returned when an event carries no correlation id.
var ErrMissingMessageID = errors.New("events: missing message id")

// ProcessingError wraps a persistence failure. Callers answer with a 5xx so
// the provider retries.
type ProcessingError struct {
	Op  string
	Err error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("events: %s: %v", e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
