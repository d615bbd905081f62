// Package apperr implements the error taxonomy of the orchestrator core.
//
// Grounded on internal/brain/orchestrator.go's EngagementError/
// NewRetryableError/NewFatalError pattern: a single wrapped-error type
// carrying a Retryable flag, rather than a hierarchy of error types.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one member of the error taxonomy (spec §7). It is carried for
// diagnostics; callers should branch on IsRetryable, not on Kind, to decide
// control flow.
type Kind string

const (
	KindBusinessValidation Kind = "business_validation"
	KindSemanticModel      Kind = "semantic_model"
	KindUnreachableTable   Kind = "unreachable_table"
	KindTranspileError     Kind = "transpile_error"
	KindExecutionError     Kind = "execution_error"
	KindToolProviderError  Kind = "tool_provider_error"
	KindLeaseConflict      Kind = "lease_conflict"
)

// Error wraps an underlying error with taxonomy metadata.
type Error struct {
	Kind      Kind
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a taxonomy error. BusinessValidation, SemanticModel and
// UnreachableTable are never retryable; every other kind is retryable.
func New(kind Kind, err error) *Error {
	retryable := true
	switch kind {
	case KindBusinessValidation, KindSemanticModel, KindUnreachableTable:
		retryable = false
	}
	return &Error{Kind: kind, Retryable: retryable, Err: err}
}

// Newf builds a taxonomy error from a format string.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Errorf(format, args...))
}

// IsRetryable reports whether err (or any error it wraps) is a retryable
// taxonomy error. Plain errors (not constructed via this package) are
// treated as retryable — they represent unclassified transient failures,
// matching the teacher's "default to retry" posture in its worker loop.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return true
}

// KindOf returns the taxonomy kind of err, or "" if err was not constructed
// via this package.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
