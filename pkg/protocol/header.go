// Package protocol implements the tagged-variant message model described in
// spec section 4.5: scouting, transport, network, and zenoh-level messages,
// their single-byte headers, and the length-prefixed stream wire form.
//
// Message ids are the concrete values assigned by zenoh-pico's
// include/zenoh-pico/protocol/msg.h, not invented here, so a frame captured
// from this codec is byte-compatible with a real zenoh router.
package protocol

import "github.com/marmos91/zenopico/pkg/zerr"

// ID is a message id: the low 5 bits of a header byte.
type ID byte

// Flags packs the high 3 bits of a header byte. Individual messages define
// what each bit means; bit 2 (0x80 in the unshifted header byte, the top
// flag) is reserved across every category as the "Z" extension-present bit:
// an unknown trailing extension with Z set is skipped rather than failing
// the decode (spec section 4.5 forward-compatibility note).
type Flags byte

const (
	FlagZ Flags = 1 << 2
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// Header is the single byte `flags<<5 | id` that begins every message.
type Header struct {
	ID    ID
	Flags Flags
}

// DecodeHeader splits a raw header byte into id and flags.
func DecodeHeader(b byte) Header {
	return Header{ID: ID(b & 0x1f), Flags: Flags(b >> 5)}
}

// Encode packs the header back into a single byte.
func (h Header) Encode() byte {
	return byte(h.Flags)<<5 | byte(h.ID)
}

func headerMismatch(want, got ID) error {
	return zerr.New(zerr.MalformedPacket, "protocol: unexpected message id")
}

func checkID(h Header, want ID) error {
	if h.ID != want {
		return headerMismatch(want, h.ID)
	}
	return nil
}
