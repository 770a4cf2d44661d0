// Package errors provides the domain error taxonomy for room operations.
package errors

import (
	"errors"
	"fmt"
)

// Error is the domain error type returned by room operations.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human readable message, safe to return to callers
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NotFound is shorthand for a CodeNotFound error.
func NotFound(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// PermissionDenied is shorthand for a CodePermissionDenied error.
func PermissionDenied(format string, args ...any) *Error {
	return Newf(CodePermissionDenied, format, args...)
}

// InvalidState is shorthand for a CodeInvalidState error.
func InvalidState(format string, args ...any) *Error {
	return Newf(CodeInvalidState, format, args...)
}

// Validation is shorthand for a CodeValidation error.
func Validation(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// GetCode extracts the error code from any error.
// Returns CodeInternal if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}
