package wire

import (
	"bytes"

	"github.com/marmos91/zenopico/pkg/zerr"
)

// Writer is a growable byte sink. It wraps bytes.Buffer, whose Write never
// fails except on allocation exhaustion, which we surface as
// zerr.OutOfMemory for symmetry with the collections package rather than
// letting a bare runtime OOM panic escape the codec.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer, optionally pre-sized to size bytes.
func NewWriter(size int) *Writer {
	w := &Writer{}
	if size > 0 {
		w.buf.Grow(size)
	}
	return w
}

// Bytes returns the accumulated, encoded bytes.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

func (w *Writer) writeRaw(p []byte) error {
	if _, err := w.buf.Write(p); err != nil {
		return zerr.Wrap(zerr.OutOfMemory, "writer: grow buffer", err)
	}
	return nil
}

// WriteByte writes a single byte.
func (w *Writer) WriteByte(b byte) error {
	return w.writeRaw([]byte{b})
}

// WriteVLE encodes v using 7-bit groups, MSB-continuation.
func (w *Writer) WriteVLE(v uint64) error {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		if err := w.WriteByte(b); err != nil {
			return err
		}
		if v == 0 {
			return nil
		}
	}
}

// WriteBytes encodes a vle(len) ++ data field.
func (w *Writer) WriteBytes(data []byte) error {
	if err := w.WriteVLE(uint64(len(data))); err != nil {
		return err
	}
	return w.writeRaw(data)
}

// WriteString encodes a vle(len) ++ data field from a string.
func (w *Writer) WriteString(s string) error {
	return w.WriteBytes([]byte(s))
}

// WriteID encodes an id field: (len-1) packed into the low 4 bits of a
// length byte, followed by the raw bytes. data must be 1-16 bytes.
func (w *Writer) WriteID(data []byte) error {
	if len(data) == 0 || len(data) > 16 {
		return zerr.New(zerr.InvalidInput, "id must be 1-16 bytes")
	}
	if err := w.WriteByte(byte(len(data) - 1)); err != nil {
		return err
	}
	return w.writeRaw(data)
}
