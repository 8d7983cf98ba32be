// Package upstream holds the typed errors shared by all provider clients.
package upstream

import (
	"errors"
	"fmt"
)

// Kind classifies an upstream failure.
type Kind int

const (
	// KindTransport covers network, DNS and timeout failures.
	KindTransport Kind = iota + 1
	// KindStatus covers non-success HTTP statuses and API-level error codes.
	KindStatus
	// KindPayloadShape covers missing or malformed required JSON fields.
	KindPayloadShape
	// KindPartialFailure covers a failed call within a joined concurrent batch.
	KindPartialFailure
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindPayloadShape:
		return "payload_shape"
	case KindPartialFailure:
		return "partial_failure"
	default:
		return "unknown"
	}
}

// Error is the failure type returned by every upstream client. All kinds are
// non-retriable at this layer; callers abort the current fetch cycle.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transport wraps a transport-level failure (connection, DNS, timeout).
func Transport(provider string, cause error) *Error {
	return &Error{Kind: KindTransport, Provider: provider, Err: cause}
}

// Status reports a non-success HTTP status code.
func Status(provider string, code int) *Error {
	return &Error{Kind: KindStatus, Provider: provider, Err: fmt.Errorf("unexpected status %d", code)}
}

// Statusf reports an API-level error surfaced inside a 2xx payload.
func Statusf(provider, format string, args ...any) *Error {
	return &Error{Kind: KindStatus, Provider: provider, Err: fmt.Errorf(format, args...)}
}

// Shapef reports a missing or malformed required field in the payload.
func Shapef(provider, format string, args ...any) *Error {
	return &Error{Kind: KindPayloadShape, Provider: provider, Err: fmt.Errorf(format, args...)}
}

// Partial marks a failure that occurred inside a joined concurrent fetch.
// The wrapped cause keeps its own, more precise kind.
func Partial(provider string, cause error) *Error {
	return &Error{Kind: KindPartialFailure, Provider: provider, Err: cause}
}

// KindOf returns the kind of the outermost upstream error in err's chain,
// or 0 when err is not an upstream failure.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return 0
}
