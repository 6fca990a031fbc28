// Package fault defines the error taxonomy shared across the tool surface.
//
// Every exposed operation returns an error classified by Kind so the
// calling agent can pick a retry policy: InvalidArgument means
// fix-and-resubmit, InvocationFailure and StoreUnavailable are retryable,
// NotFound and InvalidState are caller state errors.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry-policy decisions.
type Kind string

const (
	// InvalidArgument marks malformed or missing required input.
	InvalidArgument Kind = "invalid_argument"
	// NotFound marks an unknown session or memory id.
	NotFound Kind = "not_found"
	// InvalidState marks an operation that is not valid for the
	// current session status.
	InvalidState Kind = "invalid_state"
	// InvocationFailure marks an agent boundary error or timeout.
	InvocationFailure Kind = "invocation_failure"
	// StoreUnavailable marks a backend I/O error.
	StoreUnavailable Kind = "store_unavailable"
)

// Error is a classified error. It wraps an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality, so errors.Is(err, fault.New(fault.NotFound, ""))
// style sentinels work. In practice callers use KindOf instead.
func (e *Error) Is(target error) bool {
	var fe *Error
	if errors.As(target, &fe) {
		return e.Kind == fe.Kind
	}
	return false
}

// New creates a classified error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error, preserving it as the cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, or "" when err carries no classification.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
