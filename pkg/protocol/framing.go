package protocol

import (
	"encoding/binary"

	"github.com/marmos91/zenopico/pkg/wire"
	"github.com/marmos91/zenopico/pkg/zerr"
)

// MaxFrameLen is the largest payload a stream-transport length prefix can
// address (spec section 4.5: "prefixed by a little-endian 16-bit length").
const MaxFrameLen = 0xffff

// Message is any message that appears directly on a stream transport,
// framed by a u16 length prefix: the open handshake and the in-session
// transport messages (Frame/Fragment/KeepAlive/Close/Join). Scouting
// (Scout/Hello) is a separate exchange with its own id space — see
// ScoutingMessage — because zenoh-pico decodes the two as distinct union
// types depending on context, not a single dispatch table; Scout and Init
// both carry id 0x01, Hello and Open both carry id 0x02, and the two are
// never ambiguous only because the caller already knows which category it
// is reading.
type Message interface {
	Encode(w *wire.Writer) error
}

// ScoutingMessage is Scout or Hello, the pre-session discovery exchange.
type ScoutingMessage interface {
	Encode(w *wire.Writer) error
}

// EncodeMessage serializes m without a length prefix.
func EncodeMessage(m Message) ([]byte, error) {
	w := wire.NewWriter(0)
	if err := m.Encode(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// EncodeFramed serializes m prefixed with its little-endian u16 length, the
// wire form stream links exchange (spec section 4.5/6).
func EncodeFramed(m Message) ([]byte, error) {
	body, err := EncodeMessage(m)
	if err != nil {
		return nil, err
	}
	if len(body) > MaxFrameLen {
		return nil, zerr.New(zerr.Overflow, "protocol: message exceeds max frame length")
	}
	out := make([]byte, 2+len(body))
	binary.LittleEndian.PutUint16(out, uint16(len(body)))
	copy(out[2:], body)
	return out, nil
}

// DecodeScoutingMessage parses a single Scout or Hello message.
func DecodeScoutingMessage(buf []byte) (ScoutingMessage, error) {
	r := wire.NewReader(buf)
	hb, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	h := DecodeHeader(hb)
	switch h.ID {
	case idScout:
		return decodeScout(h, r)
	case idHello:
		return decodeHello(h, r)
	default:
		return nil, zerr.New(zerr.MalformedPacket, "protocol: unknown scouting message id")
	}
}

// DecodeMessage parses a single, unframed transport-category message (no
// length prefix).
func DecodeMessage(buf []byte) (Message, error) {
	r := wire.NewReader(buf)
	hb, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	h := DecodeHeader(hb)
	switch h.ID {
	case idInit:
		if h.Flags.has(FlagA) {
			return decodeInitAck(h, r)
		}
		return decodeInitSyn(h, r)
	case idOpen:
		if h.Flags.has(FlagA) {
			return decodeOpenAck(h, r)
		}
		return decodeOpenSyn(h, r)
	case idClose:
		return decodeClose(h, r)
	case idKeepAlive:
		return decodeKeepAlive(h, r)
	case idFrame:
		return decodeFrame(h, r)
	case idFragment:
		return decodeFragment(h, r)
	case idJoin:
		return decodeJoin(h, r)
	default:
		return nil, zerr.New(zerr.MalformedPacket, "protocol: unknown top-level message id")
	}
}

// StreamDecoder reassembles length-prefixed messages out of arbitrarily
// chunked stream reads (spec section 8 property 8: "given a byte stream of
// concatenated encoded messages with arbitrary split points, the receiver
// yields exactly the original message sequence").
type StreamDecoder struct {
	buf []byte
}

// Feed appends chunk to the internal buffer and returns every message that
// became complete as a result, in order. Bytes belonging to a not-yet-
// complete message remain buffered for the next Feed call.
func (d *StreamDecoder) Feed(chunk []byte) ([]Message, error) {
	d.buf = append(d.buf, chunk...)
	var out []Message
	for {
		if len(d.buf) < 2 {
			break
		}
		n := int(binary.LittleEndian.Uint16(d.buf))
		if len(d.buf) < 2+n {
			break
		}
		msg, err := DecodeMessage(d.buf[2 : 2+n])
		if err != nil {
			return out, err
		}
		out = append(out, msg)
		d.buf = d.buf[2+n:]
	}
	return out, nil
}

// Pending returns the number of buffered bytes not yet forming a complete
// message.
func (d *StreamDecoder) Pending() int { return len(d.buf) }
