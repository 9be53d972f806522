package relay

import (
	"errors"
	"fmt"
)

// ErrEventNotFound is returned by React and Redact when the target event
// has not been seen on any indexed timeline.
var ErrEventNotFound = errors.New("event not found in timeline index")

// ValidationError reports a missing required field. It is returned
// synchronously, before any network interaction happens.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// IsValidationError checks whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// SyncViolationError reports an unexpected connection lifecycle status
// from the homeserver sync loop. It is fatal: the adapter hands it to its
// fatal handler and makes no recovery attempt.
type SyncViolationError struct {
	Status string
	Err    error
}

func (e *SyncViolationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected sync status %s: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("unexpected sync status %s", e.Status)
}

func (e *SyncViolationError) Unwrap() error {
	return e.Err
}
