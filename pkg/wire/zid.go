package wire

import (
	"bytes"

	"github.com/google/uuid"

	"github.com/marmos91/zenopico/pkg/zerr"
)

// ZenohID is a variable-length opaque peer identifier, 1-16 bytes, wire
// encoded as an id field (spec section 3). Equality is byte-wise.
type ZenohID struct {
	size int
	data [16]byte
}

// NewZenohID builds a ZenohID from raw bytes. len(b) must be 1-16.
func NewZenohID(b []byte) (ZenohID, error) {
	if len(b) == 0 || len(b) > 16 {
		return ZenohID{}, zerr.New(zerr.InvalidInput, "zid must be 1-16 bytes")
	}
	var z ZenohID
	z.size = len(b)
	copy(z.data[:], b)
	return z, nil
}

// RandomZenohID generates a 16-byte random ZenohID. A v4 UUID is exactly a
// 16-byte random value with a well-understood generator, so it is used here
// in place of a bespoke CSPRNG call.
func RandomZenohID() ZenohID {
	u := uuid.New()
	var z ZenohID
	z.size = 16
	copy(z.data[:], u[:])
	return z
}

// Bytes returns the identifier's bytes.
func (z ZenohID) Bytes() []byte { return append([]byte(nil), z.data[:z.size]...) }

// Size returns the number of significant bytes (1-16).
func (z ZenohID) Size() int { return z.size }

// Equal reports byte-wise equality.
func (z ZenohID) Equal(o ZenohID) bool {
	return z.size == o.size && bytes.Equal(z.data[:z.size], o.data[:o.size])
}

func (z ZenohID) String() string {
	const hex = "0123456789abcdef"
	out := make([]byte, z.size*2)
	for i := 0; i < z.size; i++ {
		out[i*2] = hex[z.data[i]>>4]
		out[i*2+1] = hex[z.data[i]&0x0f]
	}
	return string(out)
}

// WriteZenohID encodes z as an id field.
func (w *Writer) WriteZenohID(z ZenohID) error {
	return w.WriteID(z.data[:z.size])
}

// ReadZenohID decodes an id field into a ZenohID.
func (r *Reader) ReadZenohID() (ZenohID, error) {
	b, err := r.ReadID()
	if err != nil {
		return ZenohID{}, err
	}
	return NewZenohID(b)
}
