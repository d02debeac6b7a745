// Package apperror defines the domain error kinds shared by every layer.
//
// Storage and service code return *AppError values that wrap one of the
// sentinels below. Callers never inspect messages; they branch with
// errors.Is:
//
//	if errors.Is(err, apperror.ErrIntegrity) {
//	    // duplicate username, missing email, unknown user id, ...
//	}
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrIntegrity marks a write the database refused because it broke a
	// uniqueness, not-null, foreign-key or check constraint.
	ErrIntegrity = errors.New("integrity violation")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // human-readable error message
	Field   string // optional: field or constraint causing the error
	Cause   error  // optional: underlying driver error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the driver cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Integrity wraps a constraint failure reported by the database.
// constraint names what was violated ("unique", "not null", ...), cause is
// the raw driver error.
func Integrity(constraint string, cause error) *AppError {
	msg := fmt.Sprintf("%s constraint violated", constraint)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &AppError{
		Err:     ErrIntegrity,
		Message: msg,
		Field:   constraint,
		Cause:   cause,
	}
}
