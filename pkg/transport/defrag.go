package transport

import "github.com/marmos91/zenopico/pkg/zerr"

// Defragmenter reassembles a single channel's Fragment stream into whole
// network-message payloads (spec section 4.6). It holds no sequence-number
// state of its own beyond the last fragment's SN; the caller's SNSpace
// supplies the contiguity test.
type Defragmenter struct {
	maxBytes int
	active   bool
	lastSN   uint64
	buf      []byte
}

// NewDefragmenter bounds the reassembled message at maxBytes (spec
// section 6's fragment_reassembly_max_bytes config entry).
func NewDefragmenter(maxBytes int) *Defragmenter {
	return &Defragmenter{maxBytes: maxBytes}
}

func (d *Defragmenter) reset() {
	d.active = false
	d.buf = d.buf[:0]
}

// Feed consumes one Fragment. It returns a non-nil payload once the final
// fragment (more == false) completes a message; otherwise it returns
// (nil, nil) to mean "buffered, not yet complete".
//
// A sequence gap, a fragment that arrives without being contiguous with the
// previous one (including a fresh fragment starting before the prior
// message finished), or exceeding maxBytes resets the buffer and returns
// MalformedPacket/Overflow — the caller closes the transport with reason
// Invalid, per spec.
func (d *Defragmenter) Feed(sns *SNSpace, sn uint64, more bool, payload []byte) ([]byte, error) {
	if d.active {
		if !sns.Contiguous(d.lastSN, sn) {
			d.reset()
			return nil, zerr.New(zerr.MalformedPacket, "defrag: non-contiguous fragment sequence number")
		}
	} else {
		d.buf = d.buf[:0]
		d.active = true
	}
	d.lastSN = sn

	if len(d.buf)+len(payload) > d.maxBytes {
		d.reset()
		return nil, zerr.New(zerr.Overflow, "defrag: reassembled message exceeds max size")
	}
	d.buf = append(d.buf, payload...)

	if more {
		return nil, nil
	}
	out := make([]byte, len(d.buf))
	copy(out, d.buf)
	d.reset()
	return out, nil
}
