// Package domainerrors provides coded errors for the trust and verification
// domain. Services return these; the HTTP layer maps codes to status codes and
// callers branch on codes rather than message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. Codes are stable API; messages are not.
type Code string

const (
	// CodeValidation marks malformed input: bad document type or size,
	// out-of-range rejection reason, missing required fields. Never retried.
	CodeValidation Code = "validation"

	// CodeBadRequest marks requests that are well-formed but cannot be honored
	// as stated (for example a malformed request body at the transport edge).
	CodeBadRequest Code = "bad_request"

	// CodeInvalidInput marks inputs that fail parsing at a trust boundary,
	// such as identifiers that are not valid UUIDs.
	CodeInvalidInput Code = "invalid_input"

	// CodeUnauthorized marks missing or unusable credentials.
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden marks authorization failures: wrong role, not the owner.
	// Distinct from state errors so callers can render 403-style messages.
	CodeForbidden Code = "forbidden"

	// CodeNotFound marks lookups of entities that do not exist.
	CodeNotFound Code = "not_found"

	// CodeConflict marks state errors: wrong status for a transition, or a
	// duplicate-active invariant violation. The caller must change the
	// request, not retry it.
	CodeConflict Code = "conflict"

	// CodeInvariantViolation marks a broken aggregate invariant detected at
	// construction or transition time.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeRateLimited marks throttled operations.
	CodeRateLimited Code = "rate_limited"

	// CodeUnavailable marks collaborator failures (document upload, identity
	// store). Retry policy belongs to the caller, never to this subsystem.
	CodeUnavailable Code = "unavailable"

	// CodeInternal marks unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause stays
// reachable through errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var dErr *Error
	for errors.As(err, &dErr) {
		if dErr.Code == code {
			return true
		}
		err = dErr.cause
		if err == nil {
			return false
		}
	}
	return false
}

// Is is a readability alias for HasCode at call sites that branch on codes.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// carries none.
func CodeOf(err error) Code {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost domain message, or a generic fallback so
// infrastructure details never leak to API clients.
func MessageOf(err error) string {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Message
	}
	return "internal error"
}
