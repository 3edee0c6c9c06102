package lifecycle

import (
	"errors"
	"fmt"
)

// Kind classifies lifecycle failures so the HTTP layer can map each one
// to a status code without inspecting reason strings.
type Kind string

const (
	KindValidation       Kind = "validation"        // malformed or inconsistent input
	KindNotFound         Kind = "not_found"         // referenced entity does not exist
	KindForbidden        Kind = "forbidden"         // actor does not own the entity
	KindConflict         Kind = "conflict"          // state machine or occupancy conflict
	KindCapacityExceeded Kind = "capacity_exceeded" // attendee or hall capacity limit hit
	KindPaymentRequired  Kind = "payment_required"  // paid registration without a settled charge
	KindRefundFailed     Kind = "refund_failed"     // processor refused or failed the refund
)

// Error is the engine's failure type.  Every user-attributable failure
// leaving the engine is one of these; anything else is an infrastructure
// error and maps to a 500 upstream.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func errValidation(reason string) *Error { return &Error{Kind: KindValidation, Reason: reason} }
func errNotFound(reason string) *Error   { return &Error{Kind: KindNotFound, Reason: reason} }
func errForbidden(reason string) *Error  { return &Error{Kind: KindForbidden, Reason: reason} }
func errConflict(reason string) *Error   { return &Error{Kind: KindConflict, Reason: reason} }

func errCapacity(reason string) *Error {
	return &Error{Kind: KindCapacityExceeded, Reason: reason}
}

func errPaymentRequired(reason string) *Error {
	return &Error{Kind: KindPaymentRequired, Reason: reason}
}

func errRefundFailed(reason string, cause error) *Error {
	return &Error{Kind: KindRefundFailed, Reason: reason, Err: cause}
}

// KindOf extracts the lifecycle Kind from err.  The second return is
// false for infrastructure errors that carry no Kind.
func KindOf(err error) (Kind, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return "", false
}
