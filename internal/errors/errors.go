// Package errors provides structured error handling with canonical upstream
// error codes and HTTP status code mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the canonical machine-readable error code carried on the wire.
type Code string

const (
	CodeUpstreamFail         Code = "UPSTREAM_FAIL"
	CodeUpstreamTimeout      Code = "UPSTREAM_TIMEOUT"
	CodeUpstreamUnauthorized Code = "UPSTREAM_UNAUTHORIZED"
	CodeUpstreamRateLimit    Code = "UPSTREAM_RATE_LIMIT"
	CodeUpstreamUnavailable  Code = "UPSTREAM_UNAVAILABLE"
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeNotFound             Code = "NOT_FOUND"
	CodePositionNotOpen      Code = "POSITION_NOT_OPEN"
	CodeOrderRejected        Code = "ORDER_REJECTED"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// Error is a structured error with a canonical code, human message and cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

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

// HTTPStatus returns the appropriate HTTP status code for this error code.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound, CodePositionNotOpen:
		return http.StatusNotFound
	case CodeUpstreamUnauthorized:
		return http.StatusUnauthorized
	case CodeUpstreamRateLimit:
		return http.StatusTooManyRequests
	case CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case CodeUpstreamFail, CodeUpstreamTimeout:
		return http.StatusBadGateway
	case CodeOrderRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// New creates a structured error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a structured error with an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// ValidationError creates a validation error (HTTP 400).
func ValidationError(message string) *Error {
	return New(CodeValidation, message)
}

// UpstreamError wraps a provider failure (HTTP 502).
func UpstreamError(message string, cause error) *Error {
	return Wrap(CodeUpstreamFail, message, cause)
}

// UnavailableError reports an open circuit breaker (HTTP 503).
func UnavailableError(cause error) *Error {
	return Wrap(CodeUpstreamUnavailable, "upstream provider unavailable", cause)
}

// AsStructuredError converts any error into a structured *Error.
// If err is already an *Error, returns it unchanged. Otherwise wraps it as an
// internal error.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return Wrap(CodeInternal, "internal server error", err)
}
