package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure into one of the stable categories surfaced to
// callers. The HTTP layer maps kinds to status codes; the engine never retries
// on any of them.
type Kind string

const (
	NotFound         Kind = "not_found"
	Forbidden        Kind = "forbidden"
	InvalidState     Kind = "invalid_state"
	ValidationFailed Kind = "validation_failed"
	RateLimited      Kind = "rate_limited"
	UpstreamFailure  Kind = "upstream_failure"
)

// Error carries a kind alongside a human-readable message and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error, preserving it for errors.Is/As chains.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to UpstreamFailure
// for unclassified failures.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return UpstreamFailure
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
