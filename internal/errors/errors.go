// Package errors provides the coded, user-facing errors returned by the
// calendar entry points.
//
// Services return typed errors; handlers match them by code:
//
//	if errors.Is(err, errors.ErrNotOwner) {
//	    ...
//	}
//
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    status := domainErr.HTTPStatus()
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotSignedIn      Code = "NOT_SIGNED_IN"
	CodeAlreadyLoggedIn  Code = "ALREADY_LOGGED_IN"
	CodeAlreadyLoggedOut Code = "ALREADY_LOGGED_OUT"
	CodeUserNotFound     Code = "USER_NOT_FOUND"
	CodeRowNotFound      Code = "ROW_NOT_FOUND"
	CodeNotOwner         Code = "NOT_OWNER"
	CodeInvalidTimestamp Code = "INVALID_TIMESTAMP"

	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeValidation   Code = "VALIDATION"
	CodeRateLimited  Code = "RATE_LIMITED"
	CodeInternal     Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUserNotFound, CodeRowNotFound:
		return http.StatusNotFound
	case CodeAlreadyLoggedIn, CodeAlreadyLoggedOut:
		return http.StatusConflict
	case CodeNotSignedIn, CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotOwner:
		return http.StatusForbidden
	case CodeInvalidTimestamp, CodeValidation:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is(). The messages are the ones
// shown to calendar clients.
var (
	ErrNotSignedIn      = &Error{Code: CodeNotSignedIn, Message: "Not signed in"}
	ErrAlreadyLoggedIn  = &Error{Code: CodeAlreadyLoggedIn, Message: "Not logged out, log out first"}
	ErrAlreadyLoggedOut = &Error{Code: CodeAlreadyLoggedOut, Message: "Already logged out"}
	ErrUserNotFound     = &Error{Code: CodeUserNotFound, Message: "No such user"}
	ErrRowNotFound      = &Error{Code: CodeRowNotFound, Message: "No such row"}
	ErrNotOwner         = &Error{Code: CodeNotOwner, Message: "Not your creator id"}
	ErrInvalidTimestamp = &Error{Code: CodeInvalidTimestamp, Message: "Invalid timestamp"}
	ErrUnauthorized     = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrValidation       = &Error{Code: CodeValidation, Message: "validation error"}
	ErrRateLimited      = &Error{Code: CodeRateLimited, Message: "too many requests"}
	ErrInternal         = &Error{Code: CodeInternal, Message: "internal error"}
)

// RowNotFound creates a row-not-found error naming the table.
func RowNotFound(msg string) *Error {
	return &Error{Code: CodeRowNotFound, Message: msg}
}

// InvalidTimestamp creates an invalid timestamp error.
func InvalidTimestamp(msg string) *Error {
	return &Error{Code: CodeInvalidTimestamp, Message: msg}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
