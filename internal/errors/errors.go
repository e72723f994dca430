// Package errors provides typed errors for the equity monitor.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error cases.
var (
	// ErrAuthBlocked indicates a login is suppressed by an active backoff deadline.
	ErrAuthBlocked = errors.New("authentication blocked by backoff")

	// ErrRateLimited indicates the in-process minimum interval between
	// login attempts has not elapsed yet.
	ErrRateLimited = errors.New("login attempt rate limited")

	// ErrInvalidSession indicates the upstream rejected the session token.
	ErrInvalidSession = errors.New("invalid session")

	// ErrUpstreamForbidden indicates the upstream answered 403; the caller
	// should back off for the long tier.
	ErrUpstreamForbidden = errors.New("upstream forbidden")

	// ErrUpstream indicates a generic upstream failure: network error,
	// malformed body, declared API error, or a missing expected field.
	ErrUpstream = errors.New("upstream error")

	// ErrIndexOutOfRange indicates a tracked account index exceeds the
	// current snapshot length.
	ErrIndexOutOfRange = errors.New("account index out of range")

	// ErrValidation indicates a validation error.
	ErrValidation = errors.New("validation error")
)

// AppError is a structured application error.
type AppError struct {
	// Type is the error type (sentinel error).
	Type error
	// Message is the user-facing error message.
	Message string
	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error type.
func (e *AppError) Unwrap() error {
	return e.Type
}

// Is checks if this error matches the target.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Type, target)
}

// New creates a new AppError.
func New(errType error, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new AppError with formatting.
func Newf(errType error, format string, args ...any) *AppError {
	return &AppError{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with additional context.
func Wrap(errType error, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Validation creates a validation error.
func Validation(message string) *AppError {
	return &AppError{
		Type:    ErrValidation,
		Message: message,
	}
}

// Is reports whether err matches target. Re-exported so callers do not
// need both this package and the standard errors package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsAuthBlocked checks if an error is an auth-blocked error.
func IsAuthBlocked(err error) bool {
	return errors.Is(err, ErrAuthBlocked)
}

// IsRateLimited checks if an error is a rate-limited error.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsInvalidSession checks if an error is an invalid-session error.
func IsInvalidSession(err error) bool {
	return errors.Is(err, ErrInvalidSession)
}

// IsForbidden checks if an error is an upstream-forbidden error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrUpstreamForbidden)
}
