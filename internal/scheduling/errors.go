package scheduling

import (
	"errors"
	"fmt"
)

// FailureKind classifies terminal scheduling failures. Kinds map onto the
// error taxonomy surfaced to callers; a conflict with a suggestion is not a
// failure and has no kind.
type FailureKind string

const (
	// FailureValidation marks a malformed intent or preference. Never retried.
	FailureValidation FailureKind = "validation"

	// FailureNoAvailability means the suggestion search exhausted its horizon.
	FailureNoAvailability FailureKind = "no_availability"

	// FailureProvider marks a calendar provider call that failed. The core
	// performs no automatic retry: blindly retrying a create risks duplicate
	// bookings.
	FailureProvider FailureKind = "provider"

	// FailureRescheduleLostOriginal marks the non-atomic reschedule hazard:
	// the original event was canceled but the replacement could not be
	// created. Surfaced distinctly so the caller can recover.
	FailureRescheduleLostOriginal FailureKind = "reschedule_lost_original"
)

// ErrEventNotFound is returned by Provider.DeleteEvent for unknown or
// already-deleted events. Cancel treats it as success to stay idempotent.
var ErrEventNotFound = errors.New("event not found")

// ErrNoAvailability is returned when no acceptable slot exists within the
// suggestion horizon.
var ErrNoAvailability = errors.New("no availability within horizon")

// ValidationError describes a malformed intent field.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ProviderError wraps a failed calendar provider call.
type ProviderError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("calendar provider %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying provider error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}
