// Package pulseerr provides unified error handling for the analytics backend.
package pulseerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an Error for HTTP boundary mapping and logging.
type Kind string

const (
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindValidation        Kind = "validation_error"
	KindRateLimited       Kind = "rate_limited"
	KindServiceUnavailable Kind = "service_unavailable"
	KindInternal          Kind = "internal_error"
)

// Error is a structured error with a kind, message, and HTTP status.
type Error struct {
	Kind       Kind
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails attaches a detail key/value pair and returns the receiver.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(kind Kind, message string, httpStatus int) *Error {
	return &Error{Kind: kind, Message: message, HTTPStatus: httpStatus}
}

func Wrap(kind Kind, message string, httpStatus int, err error) *Error {
	return &Error{Kind: kind, Message: message, HTTPStatus: httpStatus, Err: err}
}

// Unauthorized never discloses which authentication factor failed (spec §7).
func Unauthorized(message string) *Error {
	if message == "" {
		message = "authentication required"
	}
	return New(KindUnauthorized, message, http.StatusUnauthorized)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message, http.StatusForbidden)
}

func NotFound(resource, id string) *Error {
	return New(KindNotFound, "resource not found", http.StatusNotFound).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func Conflict(message string) *Error {
	return New(KindConflict, message, http.StatusConflict)
}

func ValidationError(field, reason string) *Error {
	return New(KindValidation, "validation failed", http.StatusUnprocessableEntity).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

func RateLimited(limit int, window string) *Error {
	return New(KindRateLimited, "rate limit exceeded", http.StatusTooManyRequests).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "service temporarily unavailable"
	}
	return New(KindServiceUnavailable, message, http.StatusServiceUnavailable)
}

func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, http.StatusInternalServerError, err)
}

// As extracts an *Error from an error chain, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus returns the HTTP status for an error, defaulting to 500 for
// errors that are not an *Error.
func HTTPStatus(err error) int {
	if e, ok := As(err); ok {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}

// KindOf extracts the Kind from an error, defaulting to KindInternal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
