// Package apperrors defines the application error taxonomy and its mapping
// to HTTP responses.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for HTTP mapping.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
	KindQuotaExceeded
	KindUpstream
)

// Error is the application error type carried from repositories and
// services up to the request boundary.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation reports malformed or missing input (HTTP 400).
func Validation(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

// NotFound reports an absent entity. Cross-tenant access reports the same
// error so tenant existence never leaks (HTTP 404).
func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

// Conflict reports duplicates and in-use violations (HTTP 409).
func Conflict(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

// Forbidden reports role or ownership violations (HTTP 403).
func Forbidden(format string, args ...interface{}) *Error {
	return newf(KindForbidden, format, args...)
}

// QuotaExceeded reports a subscription limit hit (HTTP 403).
func QuotaExceeded(format string, args ...interface{}) *Error {
	return newf(KindQuotaExceeded, format, args...)
}

// Upstream wraps a collaborator failure. Provider internals are kept out
// of the client-facing message (HTTP 500).
func Upstream(err error, format string, args ...interface{}) *Error {
	e := newf(KindUpstream, format, args...)
	e.Err = err
	return e
}

// KindOf returns the Kind of err, or KindUnknown for unexpected errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
