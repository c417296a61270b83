// Package syncerr classifies the failures of a sync run by kind.
package syncerr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failure so callers can decide whether it is recoverable.
type Kind string

const (
	MalformedInput         Kind = "MalformedInput"
	Transport              Kind = "TransportError"
	API                    Kind = "ApiError"
	VersionConflict        Kind = "VersionConflict"
	Consistency            Kind = "ConsistencyError"
	ConcurrentModification Kind = "ConcurrentModification"
	NotFound               Kind = "NotFound"
	Config                 Kind = "ConfigError"
	Render                 Kind = "RenderError"
	Unknown                Kind = "Unknown"
)

// Error is a classified failure. Status carries the HTTP status code when
// the failure came from a remote API.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Op != "" && e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.Status, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a formatted message.
func New(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithStatus creates a classified API-level error that remembers the HTTP status.
func WithStatus(kind Kind, op string, status int, err error) *Error {
	return &Error{Kind: kind, Op: op, Status: status, Err: err}
}

// KindOf reports the kind of the outermost classified error in err's chain.
// Unclassified context and network errors count as transport failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Transport
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transport
	}
	return Unknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// StatusOf returns the HTTP status recorded in err's chain, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
