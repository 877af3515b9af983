// Package apperror defines the error taxonomy surfaced by service operations.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated indicates the caller supplied no identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized indicates the caller is authenticated but lacks the required role or ownership.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates a referenced record is absent.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a field constraint was violated.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the operation is incompatible with the record's current state.
	ErrConflict = errors.New("conflict")
)

// Error carries a taxonomy kind, a human-readable message, and the violated
// field for validation failures.
type Error struct {
	Kind    error
	Message string
	Field   string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Unauthenticated reports a request carrying no authenticated identity.
func Unauthenticated() *Error {
	return &Error{
		Kind:    ErrUnauthenticated,
		Message: "not authenticated",
	}
}

// Unauthorized reports insufficient role or ownership for the operation.
func Unauthorized(message string) *Error {
	return &Error{
		Kind:    ErrUnauthorized,
		Message: message,
	}
}

// NotFound reports a missing record of the named resource type.
func NotFound(resource, id string) *Error {
	return &Error{
		Kind:    ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// Validation reports a field constraint violation. The field is always named
// so callers can correct the specific input.
func Validation(field, message string) *Error {
	return &Error{
		Kind:    ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports an operation incompatible with current record state.
func Conflict(message string) *Error {
	return &Error{
		Kind:    ErrConflict,
		Message: message,
	}
}
