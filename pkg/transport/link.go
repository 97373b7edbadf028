// Package transport implements the session state machine described in spec
// section 4.6: the client-role open handshake, per-channel framing and
// fragmentation, defragmentation, sequence-number tracking, and the
// keep-alive/lease pair of background tasks.
package transport

import "context"

// Link is the platform I/O collaborator a Session reads and writes
// through — spec section 6 enumerates link_open/link_read/link_write as
// external collaborators the core treats as given. internal/link
// implements Link against a real TCP socket; tests substitute an in-memory
// pipe so the state machine can be exercised without a network.
type Link interface {
	// Read blocks until at least one byte is available, ctx is done, or the
	// link is closed. A zero-length, nil-error return never happens; EOF is
	// reported as an error.
	Read(ctx context.Context, buf []byte) (int, error)
	// Write sends b in full or returns an error.
	Write(ctx context.Context, b []byte) error
	// Close releases the link. Idempotent.
	Close() error
}
