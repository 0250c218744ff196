/*
errors.go - Centralized error types for the reservation engine

PURPOSE:
  All error categories in one place. Transport layers map categories to
  status codes with errors.Is; the human-readable reason travels in the
  error message.

ERROR CATEGORIES:
  1. Validation      - malformed input, rejected before store access
  2. Unauthenticated - no current user
  3. Forbidden       - caller does not own the member/reservation
  4. NotFound        - referenced entity absent
  5. Conflict        - a CAS observed zero affected rows (lost a race)
  6. Denied          - business rule (entitlement, past slot, deadline)
  7. InvalidState    - entity is in a state that forbids the operation
  8. Downstream      - a store write failed; compensations have run

USAGE:
  if errors.Is(err, studio.ErrConflict) {
      // re-fetch and let the user retry
  }

SEE ALSO:
  - lifecycle.go: Produces every category
  - api/errors.go: Category -> HTTP status mapping
*/
package studio

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrDenied          = errors.New("denied")
	ErrInvalidState    = errors.New("invalid state")
	ErrDownstream      = errors.New("downstream failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// Error is a categorized failure with a short reason suitable for display.
type Error struct {
	Kind   error  // one of the sentinels above
	Reason string // human-readable
	Cause  error  // optional underlying error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return e.Reason
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func newError(kind error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func downstream(reason string, cause error) *Error {
	return &Error{Kind: ErrDownstream, Reason: reason, Cause: cause}
}

// EntitlementError explains why a member may not book.
type EntitlementError struct {
	MemberID string
	Mode     EntitlementMode
	Reason   string
}

func (e *EntitlementError) Error() string {
	return "cannot reserve: " + e.Reason
}

func (e *EntitlementError) Unwrap() error { return ErrDenied }

// InsufficientBalanceError is returned by admin consume operations.
type InsufficientBalanceError struct {
	MemberID  string
	Available int
	Requested int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient ticket balance: available %d, requested %d", e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrValidation }

// CompensationError is returned when an undo action itself failed.
// Failure is the original error that triggered the rollback; Failed lists
// the undo steps that could not be applied. State may be inconsistent.
type CompensationError struct {
	Failure error
	Failed  []StepError
}

type StepError struct {
	Step string
	Err  error
}

func (e *CompensationError) Error() string {
	msg := fmt.Sprintf("rollback incomplete after %v:", e.Failure)
	for _, f := range e.Failed {
		msg += fmt.Sprintf(" [%s: %v]", f.Step, f.Err)
	}
	return msg
}

func (e *CompensationError) Unwrap() []error {
	return []error{ErrDownstream, e.Failure}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict returns true if the caller lost an optimistic race and may
// retry after re-reading.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClientError returns true if the error is a rejection rather than a fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrDenied) ||
		errors.Is(err, ErrInvalidState)
}

// Reason returns the display reason of err.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	var ee *EntitlementError
	if errors.As(err, &ee) {
		return ee.Error()
	}
	return err.Error()
}
