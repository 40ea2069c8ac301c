// Package errors defines the closed error-kind taxonomy surfaced by every
// engine component (§7). Components never return bare errors across a
// component boundary; they wrap the underlying cause in an *Error carrying
// one of the kinds below, so the REST boundary can map it to an HTTP status
// and the Job Engine can record it verbatim on a job's terminal state.
package errors

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error classifications named in §7.
type Kind string

const (
	ValidationFailed    Kind = "ValidationFailed"
	NotFound            Kind = "NotFound"
	Conflict            Kind = "Conflict"
	PreconditionFailed  Kind = "PreconditionFailed"
	IOFailed            Kind = "IOFailed"
	ProcessFailed       Kind = "ProcessFailed"
	SteamCmdFailed      Kind = "SteamCmdFailed"
	RconConnectionRefused Kind = "RconConnectionRefused"
	RconAuthFailed      Kind = "RconAuthFailed"
	RconTimeout         Kind = "RconTimeout"
	RconProtocolError   Kind = "RconProtocolError"
	RconTransportError  Kind = "RconTransportError"
	Unauthorized        Kind = "Unauthorized"
	Forbidden           Kind = "Forbidden"
	Internal            Kind = "Internal"
)

// retryable reports the default retryability of a Kind absent an explicit
// override; only transport-ish kinds are retryable by classification, and
// per §7 the core never auto-retries them regardless.
var retryable = map[Kind]bool{
	RconTimeout:           true,
	RconConnectionRefused: true,
	IOFailed:              true,
}

// Error is the classified error type returned across component boundaries.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New creates an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the dashboard may reasonably resubmit after
// receiving this error; per §7 the core never retries it automatically.
func (e *Error) Retryable() bool { return retryable[e.Kind] }

// As is a convenience wrapper over errors.As for pulling a *Error out of an
// arbitrary error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, otherwise
// Internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}

// Sentinel causes used by components that need to compare against a
// specific, well-known failure without allocating a new *Error each time.
var (
	ErrServerNotFound  = errors.New("server does not exist")
	ErrClusterNotFound = errors.New("cluster does not exist")
	ErrLockContended   = errors.New("update lock is held by another operation")
)
