// Package apperror defines the typed errors that cross layer boundaries.
// Repositories and services return them unchanged; the HTTP error handler
// renders them into the uniform response envelope. Anything that is not an
// *Error is treated as an internal failure and never shown to the caller.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine readable codes carried in the envelope's "code" field.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeForbidden          = "FORBIDDEN"
	CodeRecordNotFound     = "RECORD_NOT_FOUND"
	CodeUniqueConstraint   = "UNIQUE_CONSTRAINT"
	CodeValidation         = "VALIDATION_ERROR"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeInternal           = "INTERNAL_SERVER_ERROR"
)

// Error is a domain error with the HTTP status it maps to.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches on Code so callers can compare against the sentinels below
// with errors.Is regardless of the message text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidCredentials = &Error{Status: http.StatusUnauthorized, Code: CodeInvalidCredentials}
	ErrTokenExpired       = &Error{Status: http.StatusUnauthorized, Code: CodeTokenExpired}
	ErrTokenInvalid       = &Error{Status: http.StatusUnauthorized, Code: CodeTokenInvalid}
	ErrForbidden          = &Error{Status: http.StatusForbidden, Code: CodeForbidden}
	ErrRecordNotFound     = &Error{Status: http.StatusNotFound, Code: CodeRecordNotFound}
	ErrUniqueConstraint   = &Error{Status: http.StatusConflict, Code: CodeUniqueConstraint}
	ErrValidation         = &Error{Status: http.StatusBadRequest, Code: CodeValidation}
	ErrTooManyRequests    = &Error{Status: http.StatusTooManyRequests, Code: CodeTooManyRequests}
)

func InvalidCredentials() *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeInvalidCredentials, Message: "Invalid email or password"}
}

func TokenExpired() *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeTokenExpired, Message: "Token has expired"}
}

func TokenInvalid() *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeTokenInvalid, Message: "Invalid token"}
}

func Forbidden(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: msg}
}

// RecordNotFound reports a missing entity. A record owned by another user is
// reported the same way.
func RecordNotFound(entity string, id any) *Error {
	return &Error{
		Status:  http.StatusNotFound,
		Code:    CodeRecordNotFound,
		Message: fmt.Sprintf("%s with identifier %v not found", entity, id),
	}
}

func UniqueConstraint(field string) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeUniqueConstraint, Message: field + " already exists"}
}

func Validation(msg string) *Error {
	if msg == "" {
		msg = "Validation error"
	}
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: msg}
}

func TooManyRequests() *Error {
	return &Error{Status: http.StatusTooManyRequests, Code: CodeTooManyRequests, Message: "Too many requests, please try again later"}
}

// Internal is the generic error rendered for unclassified failures.
func Internal() *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "Internal server error"}
}

// From extracts an *Error from err's chain.
func From(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
