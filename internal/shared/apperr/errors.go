package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the stable, client-visible classification of a failure.
type Kind string

const (
	ConfigInvalid       Kind = "ConfigInvalid"
	AuthMissing         Kind = "AuthMissing"
	AuthExpired         Kind = "AuthExpired"
	AuthInvalid         Kind = "AuthInvalid"
	Forbidden           Kind = "Forbidden"
	ValidationFailed    Kind = "ValidationFailed"
	NotFound            Kind = "NotFound"
	Conflict            Kind = "Conflict"
	UpstreamUnavailable Kind = "UpstreamUnavailable"
	UpstreamRejected    Kind = "UpstreamRejected"
	DeadlineExceeded    Kind = "DeadlineExceeded"
	Internal            Kind = "Internal"
)

// Upstream names used to tell LLM failures apart from datastore failures.
const (
	UpstreamLLM       = "llm"
	UpstreamDatastore = "datastore"
	UpstreamIdentity  = "identity"
)

// Error carries a Kind through the call chain. Message is safe to show to
// clients; Err is the underlying cause and is only logged.
type Error struct {
	Kind     Kind
	Message  string
	Upstream string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func Validation(format string, args ...any) *Error {
	return New(ValidationFailed, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

func ForbiddenErr(message string) *Error {
	return New(Forbidden, message)
}

// Unavailable marks a transient upstream failure that survived local retries.
func Unavailable(upstream string, cause error) *Error {
	return &Error{Kind: UpstreamUnavailable, Message: upstream + " is unavailable", Upstream: upstream, Err: cause}
}

// Rejected marks an upstream refusal that must not be retried.
func Rejected(upstream, message string, cause error) *Error {
	return &Error{Kind: UpstreamRejected, Message: message, Upstream: upstream, Err: cause}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf classifies any error. Context expiry wins over whatever kind the
// upstream wrapped it in, so a request that ran out of time reports as such.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return DeadlineExceeded
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
