// Package errors defines the engine's error taxonomy. Every failure that
// crosses a package boundary is wrapped in an *Error carrying one of the
// Kind constants, so the auto-fix loop can decide whether another attempt
// is worth the tokens.
package errors

import (
	"errors"
	"fmt"
)

// Kind categorizes a pipeline failure.
type Kind string

const (
	KindCatalogUnavailable   Kind = "catalog_unavailable"
	KindInferenceUnavailable Kind = "inference_unavailable"
	KindInferenceTimeout     Kind = "inference_timeout"
	KindInferenceMalformed   Kind = "inference_malformed"
	KindNoSQLFound           Kind = "no_sql_found"
	KindUnsafeStatement      Kind = "unsafe_statement"
	KindUnknownIdentifier    Kind = "unknown_identifier"
	KindSyntaxError          Kind = "syntax_error"
	KindExecutionTimeout     Kind = "execution_timeout"
	KindExecutionError       Kind = "execution_error"
	KindResultTooLarge       Kind = "result_too_large"
	KindInternal             Kind = "internal"
)

// Error is a structured error with a kind and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new structured error.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Newf creates a new structured error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with a kind and additional context.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsKind checks whether an error carries a specific kind.
func IsKind(err error, kind Kind) bool {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Kind == kind
	}

	return false
}

// KindOf returns the kind of a structured error, or KindInternal for
// anything else.
func KindOf(err error) Kind {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Kind
	}

	return KindInternal
}

// Correctable reports whether a failure can be fed back into the model for
// another attempt. Infrastructure failures and oversized results are not
// correctable: regenerating the SQL won't change the outcome.
func Correctable(err error) bool {
	switch KindOf(err) {
	case KindUnknownIdentifier, KindSyntaxError, KindUnsafeStatement,
		KindExecutionError, KindNoSQLFound, KindInferenceMalformed:
		return true
	default:
		return false
	}
}

// Summary returns a human-readable message for callers. It never exposes a
// raw cause chain; the caller sees the kind and the curated message only.
func Summary(err error) string {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Message
	}

	return "an unexpected error occurred"
}
