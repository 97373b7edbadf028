// Package zerr defines the error kinds shared across the transport, routing
// and collection layers.
//
// Every fallible operation in this module returns one of a small, closed set
// of kinds (see Kind) wrapped in *Error, so callers can branch on behavior
// ("is this retryable?", "should the session close?") without string
// matching. Memory errors (OutOfMemory) are expected to propagate to the
// caller untouched; protocol errors on the receive path are expected to
// close the owning transport session.
package zerr

import (
	"errors"
	"fmt"
)

// Kind is a closed error classification. See spec section 7 (Error Handling
// Design) for the full table.
type Kind int

const (
	OutOfMemory Kind = iota
	InvalidInput
	MalformedPacket
	NotEnoughData
	UnknownResource
	EntityDeclarationFailed
	EntityUnknown
	QueryNotMatch
	Overflow
	SessionClosed
	Timeout
	LinkError
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "OutOfMemory"
	case InvalidInput:
		return "InvalidInput"
	case MalformedPacket:
		return "MalformedPacket"
	case NotEnoughData:
		return "NotEnoughData"
	case UnknownResource:
		return "UnknownResource"
	case EntityDeclarationFailed:
		return "EntityDeclarationFailed"
	case EntityUnknown:
		return "EntityUnknown"
	case QueryNotMatch:
		return "QueryNotMatch"
	case Overflow:
		return "Overflow"
	case SessionClosed:
		return "SessionClosed"
	case Timeout:
		return "Timeout"
	case LinkError:
		return "LinkError"
	case Unsupported:
		return "Unsupported"
	default:
		return "Unknown"
	}
}

// Error pairs a Kind with a human message and an optional wrapped cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// use errors.Is(err, zerr.New(zerr.Timeout, "")) or the Of helper below.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind
	}
	return false
}

// New constructs an *Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an *Error that wraps cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Of reports the Kind of err, if err is (or wraps) a *zerr.Error.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}
