// Package handler implements the callback/channel fabric that sits between
// a session's receive path and user code (spec section 4.8): either a
// synchronous callback+drop pair invoked directly on the receive goroutine,
// or a bounded channel the receive goroutine enqueues into under one of
// three overflow policies.
package handler

import "github.com/marmos91/zenopico/pkg/zerr"

// Kind distinguishes what a Sample represents: a new value or a tombstone.
// Liveliness subscriptions reuse the same two kinds: KindPut when a token
// appears, KindDelete when it disappears.
type Kind int

const (
	KindPut Kind = iota
	KindDelete
)

// Sample is whatever payload a handler delivers: a Push-derived pub/sub
// sample or a query Reply. pkg/session constructs these; this package only
// moves them.
type Sample struct {
	KE      string
	Payload []byte
	Kind    Kind
	IsErr   bool
}

// Callback is a user-supplied synchronous reaction to one Sample, invoked
// directly on the session's receive goroutine. It must not block: spec
// section 5 requires dispatch to never hold the session lock across it, but
// the caller is still the receive goroutine, so a slow callback stalls
// delivery to every other subscriber in the same dispatch.
type Callback func(Sample)

// DropFunc is invoked exactly once when a handler's owning entity is
// retired (undeclare, session close, or — for queries — final response or
// deadline) so the handler can release anything it's holding.
type DropFunc func(reason error)

// Policy selects what a bounded Channel does when a sample is delivered
// while its buffer is full.
type Policy int

const (
	// BlockOnFull makes delivery wait until the receiver drains a slot. The
	// wait has no deadline and cannot be cancelled.
	BlockOnFull Policy = iota
	// DropNew discards the sample being sent, keeping everything already
	// queued.
	DropNew
	// DropOldest discards the queue's oldest sample to make room for the
	// new one.
	DropOldest
)

// Handler is either a Callback+DropFunc pair or a Channel; pkg/session holds
// one per declared subscriber/queryable.
type Handler interface {
	deliver(Sample)
	drop(reason error)
}

type callbackHandler struct {
	cb     Callback
	dropFn DropFunc
}

// NewCallback wraps cb/dropFn as a Handler invoked synchronously.
func NewCallback(cb Callback, dropFn DropFunc) Handler {
	return &callbackHandler{cb: cb, dropFn: dropFn}
}

func (h *callbackHandler) deliver(s Sample) { h.cb(s) }
func (h *callbackHandler) drop(reason error) {
	if h.dropFn != nil {
		h.dropFn(reason)
	}
}

// Deliver hands s to handler. Called by pkg/session outside any lock.
func Deliver(h Handler, s Sample) { h.deliver(s) }

// Drop retires handler with reason. Called by pkg/session outside any lock.
func Drop(h Handler, reason error) { h.drop(reason) }

var errClosed = zerr.New(zerr.SessionClosed, "handler: channel closed")

// ErrClosed is the reason passed to a Channel receiver's final read once the
// channel has been closed, matching spec section 5's "Channel receivers are
// woken and see Closed."
var ErrClosed = errClosed
