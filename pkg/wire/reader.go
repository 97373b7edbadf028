// Package wire implements the little-endian binary codec shared by every
// message defined in pkg/protocol: variable-length integers (vle),
// length-prefixed byte slices and strings, and the compact ZenohID
// representation.
//
// Decoding is non-consuming in the sense described by the wire format: a
// Reader wraps a cursor plus a remaining-length count and fails with
// ErrNotEnoughData on short input rather than panicking. Encoding only ever
// fails when the underlying sink cannot grow (ErrOutOfMemory), which in
// practice does not happen against a bytes.Buffer but keeps the method
// signatures honest about the contract described in spec section 4.1.
package wire

import (
	"github.com/marmos91/zenopico/pkg/zerr"
)

// maxVleBytes bounds a vle sequence: 10 continuation bytes cover 70 bits,
// comfortably more than the 64-bit values this codec ever decodes.
const maxVleBytes = 10

// Reader is a cursor over an in-memory byte buffer. It never copies the
// buffer; byte slices and strings returned by Read* alias into it.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for decoding. buf must outlive the returned Reader.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Pos returns the current read offset, for resuming a partially-decoded
// message.
func (r *Reader) Pos() int { return r.pos }

func notEnoughData() error {
	return zerr.New(zerr.NotEnoughData, "short buffer")
}

func malformed(msg string) error {
	return zerr.New(zerr.MalformedPacket, msg)
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, notEnoughData()
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadN reads n raw bytes, returning a slice aliased into the reader's
// buffer.
func (r *Reader) ReadN(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, notEnoughData()
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadVLE decodes an unsigned variable-length integer: 7 payload bits per
// byte, MSB set means "more bytes follow". Fails with MalformedPacket if the
// sequence runs past maxVleBytes or would overflow 64 bits.
func (r *Reader) ReadVLE() (uint64, error) {
	var value uint64
	for i := 0; i < maxVleBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		payload := uint64(b & 0x7f)
		shift := uint(i * 7)
		if shift >= 64 {
			if payload != 0 {
				return 0, malformed("vle overflow")
			}
		} else {
			if shift > 57 && payload>>(64-shift) != 0 {
				return 0, malformed("vle overflow")
			}
			value |= payload << shift
		}
		if b&0x80 == 0 {
			return value, nil
		}
	}
	return 0, malformed("vle sequence too long")
}

// ReadBytes decodes a vle(len) ++ bytes field. A zero-length field decodes
// to nil, so a nil slice survives an encode/decode round trip.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadVLE()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return r.ReadN(int(n))
}

// ReadString decodes a vle(len) ++ bytes field as a string, copying out of
// the underlying buffer (strings are immutable, unlike ReadBytes' aliased
// slice).
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadID decodes an id field: low 4 bits of the length byte hold (len-1),
// followed by len bytes.
func (r *Reader) ReadID() ([]byte, error) {
	lb, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	n := int(lb&0x0f) + 1
	return r.ReadN(n)
}
