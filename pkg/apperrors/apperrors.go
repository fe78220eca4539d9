// Package apperrors defines the engine's error taxonomy. Every caller-visible
// failure carries a stable reason code plus a human-readable message so the
// HTTP layer can map it without string matching.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	// KindValidation marks malformed input rejected before touching state.
	KindValidation Kind = iota
	// KindNotFound marks an entity id or code that does not resolve.
	KindNotFound
	// KindConflict marks duplicates, exhausted coupons and inverse-rate clashes.
	KindConflict
	// KindState marks an illegal status transition.
	KindState
	// KindExternal marks a gateway or store failure the caller may retry.
	KindExternal
)

// Error is the application error type carried across service boundaries.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a KindValidation error.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_FAILED", Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a KindNotFound error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a KindConflict error with the given reason code.
func Conflict(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

// State creates a KindState error for an illegal transition.
func State(format string, args ...interface{}) *Error {
	return &Error{Kind: KindState, Code: "INVALID_TRANSITION", Message: fmt.Sprintf(format, args...)}
}

// External wraps a store or gateway failure.
func External(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindExternal, Code: "EXTERNAL_ERROR", Message: fmt.Sprintf(format, args...), Err: err}
}

// WithCode overrides the reason code, keeping the kind and message.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// CodeOf returns the reason code of err, or empty when err is not an *Error.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
