// internal/apperrors/errors.go

// Package apperrors provides the error taxonomy shared by services, handlers,
// and the cleanup pipeline, with HTTP status mapping.
package apperrors

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"

	"gorm.io/gorm"
)

// Code classifies an error for transport mapping and metrics.
type Code string

const (
	// CodeNotFound indicates a missing resource (HTTP 404)
	CodeNotFound Code = "not_found"
	// CodeForbidden indicates an authenticated caller without rights (HTTP 403)
	CodeForbidden Code = "forbidden"
	// CodeInvalidInput indicates a request that fails validation (HTTP 400)
	CodeInvalidInput Code = "invalid_input"
	// CodeConflict indicates a state collision such as a duplicate or a lost
	// race (HTTP 409)
	CodeConflict Code = "conflict"
	// CodeTransient indicates a retryable infrastructure failure (HTTP 503)
	CodeTransient Code = "transient"
	// CodeInternal indicates an unexpected server-side failure (HTTP 500)
	CodeInternal Code = "internal"
)

// Error carries a code, a caller-facing message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code clients receive for this error.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WithContext adds a context field to the error (chainable).
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NotFound creates a missing-resource error (HTTP 404).
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

// Forbidden creates an authorization error (HTTP 403).
func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

// InvalidInput creates a validation error (HTTP 400).
func InvalidInput(message string) *Error {
	return &Error{Code: CodeInvalidInput, Message: message}
}

// Conflict creates a state-collision error (HTTP 409).
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// Transient creates a retryable infrastructure error (HTTP 503).
func Transient(message string, cause error) *Error {
	return &Error{Code: CodeTransient, Message: message, Cause: cause}
}

// Internal creates an unexpected server-side error (HTTP 500).
func Internal(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: message, Cause: cause}
}

// Convert coerces any error into an *Error. A nil error stays nil, an *Error
// passes through unchanged, everything else becomes CodeInternal.
func Convert(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	return Internal("internal server error", err)
}

// CodeOf returns the code carried by err, or CodeInternal for plain errors.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// FromDatabase classifies a storage error: missing rows become CodeNotFound,
// duplicate keys CodeConflict, connection and timeout failures CodeTransient,
// anything else CodeInternal.
func FromDatabase(message string, err error) *Error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound(message)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Conflict(message)
	case isTransient(err):
		return Transient(message, err)
	default:
		return Internal(message, err)
	}
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, gorm.ErrInvalidTransaction) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
