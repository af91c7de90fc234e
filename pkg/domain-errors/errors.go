package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and caller branching.
type Code string

const (
	// CodeValidation marks malformed or missing input, rejected before any store access.
	CodeValidation Code = "validation"
	// CodeInvariantViolation marks a domain invariant breach inside a constructor or transition.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeNotFound marks a referenced entity that does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a state-machine precondition violation. Never retried.
	CodeConflict Code = "conflict"
	// CodeUnauthorized marks an actor whose identity does not match the expected owner.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks an actor whose role may never perform the operation.
	CodeForbidden Code = "forbidden"
	// CodeUnavailable marks a store or transport failure, distinct from a
	// precondition failure so callers never retry into a duplicate transition.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks everything else.
	CodeInternal Code = "internal"
)

// Error is the domain error surfaced at the service boundary.
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

func (e *Error) Unwrap() error { return e.cause }

// New constructs a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the chain.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
