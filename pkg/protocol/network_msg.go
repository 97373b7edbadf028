package protocol

import (
	"github.com/marmos91/zenopico/pkg/keyexpr"
	"github.com/marmos91/zenopico/pkg/wire"
	"github.com/marmos91/zenopico/pkg/zerr"
)

const (
	idResponseFinal ID = 0x1a
	idResponse      ID = 0x1b
	idRequest       ID = 0x1c
	idPush          ID = 0x1d
	idDeclare       ID = 0x1e
	// idPull keeps zenoh-pico's zenoh-level message id (msg.h _Z_MID_Z_PULL);
	// it lives outside the 0x1a-0x1f network range the other messages above
	// use, same as in the original protocol layering.
	idPull ID = 0x0e
)

// PushKind discriminates a Push's payload: a new value (Put) or a tombstone
// (Del). Values are zenoh-pico's _Z_M_PUT_ID/_Z_M_DEL_ID from msg.h.
type PushKind byte

const (
	PushPut PushKind = 0x06
	PushDel PushKind = 0x07
)

// Push carries a sample: a keyed Put with payload, or a Del tombstone.
type Push struct {
	KE       keyexpr.Expr
	Kind     PushKind
	Encoding string // application payload encoding hint, opaque to this module
	Payload  []byte // empty for Del
}

func (m Push) Encode(w *wire.Writer) error {
	if err := w.WriteByte(Header{ID: idPush}.Encode()); err != nil {
		return err
	}
	if err := w.WriteVLE(uint64(m.KE.ID)); err != nil {
		return err
	}
	if err := w.WriteString(m.KE.Suffix); err != nil {
		return err
	}
	if err := w.WriteByte(byte(m.Kind)); err != nil {
		return err
	}
	if m.Kind == PushPut {
		if err := w.WriteString(m.Encoding); err != nil {
			return err
		}
		if err := w.WriteBytes(m.Payload); err != nil {
			return err
		}
	}
	return nil
}

func decodePush(h Header, r *wire.Reader) (Push, error) {
	if err := checkID(h, idPush); err != nil {
		return Push{}, err
	}
	ridv, err := r.ReadVLE()
	if err != nil {
		return Push{}, err
	}
	suffix, err := r.ReadString()
	if err != nil {
		return Push{}, err
	}
	kindB, err := r.ReadByte()
	if err != nil {
		return Push{}, err
	}
	kind := PushKind(kindB)
	out := Push{KE: keyexpr.Expr{ID: uint16(ridv), Suffix: suffix}, Kind: kind}
	if kind == PushPut {
		encoding, err := r.ReadString()
		if err != nil {
			return Push{}, err
		}
		payload, err := r.ReadBytes()
		if err != nil {
			return Push{}, err
		}
		out.Encoding = encoding
		out.Payload = payload
	} else if kind != PushDel {
		return Push{}, zerr.New(zerr.MalformedPacket, "protocol: unknown push kind")
	}
	return out, nil
}

// Request carries a query (zenoh-level Query, inlined here rather than as a
// separate wrapper message since a Request's body is always exactly one
// Query in this client). Value carries caller-supplied query parameters or
// payload, opaque to this module.
type Request struct {
	RequestID uint32
	KE        keyexpr.Expr
	Value     []byte
}

func (m Request) Encode(w *wire.Writer) error {
	if err := w.WriteByte(Header{ID: idRequest}.Encode()); err != nil {
		return err
	}
	if err := w.WriteVLE(uint64(m.RequestID)); err != nil {
		return err
	}
	if err := w.WriteVLE(uint64(m.KE.ID)); err != nil {
		return err
	}
	if err := w.WriteString(m.KE.Suffix); err != nil {
		return err
	}
	return w.WriteBytes(m.Value)
}

func decodeRequest(h Header, r *wire.Reader) (Request, error) {
	if err := checkID(h, idRequest); err != nil {
		return Request{}, err
	}
	reqIDv, err := r.ReadVLE()
	if err != nil {
		return Request{}, err
	}
	ridv, err := r.ReadVLE()
	if err != nil {
		return Request{}, err
	}
	suffix, err := r.ReadString()
	if err != nil {
		return Request{}, err
	}
	value, err := r.ReadBytes()
	if err != nil {
		return Request{}, err
	}
	return Request{RequestID: uint32(reqIDv), KE: keyexpr.Expr{ID: uint16(ridv), Suffix: suffix}, Value: value}, nil
}

// FlagErr marks a Response as carrying an Err payload (a failed Reply)
// rather than a successful Reply payload.
const FlagErr Flags = 1 << 0

// Response answers one Request; a Request may receive several (one per
// matching queryable) before ResponseFinal closes it out.
type Response struct {
	RequestID uint32
	KE        keyexpr.Expr
	IsErr     bool
	Payload   []byte
}

func (m Response) Encode(w *wire.Writer) error {
	flags := Flags(0)
	if m.IsErr {
		flags |= FlagErr
	}
	if err := w.WriteByte(Header{ID: idResponse, Flags: flags}.Encode()); err != nil {
		return err
	}
	if err := w.WriteVLE(uint64(m.RequestID)); err != nil {
		return err
	}
	if err := w.WriteVLE(uint64(m.KE.ID)); err != nil {
		return err
	}
	if err := w.WriteString(m.KE.Suffix); err != nil {
		return err
	}
	return w.WriteBytes(m.Payload)
}

func decodeResponse(h Header, r *wire.Reader) (Response, error) {
	if err := checkID(h, idResponse); err != nil {
		return Response{}, err
	}
	reqIDv, err := r.ReadVLE()
	if err != nil {
		return Response{}, err
	}
	ridv, err := r.ReadVLE()
	if err != nil {
		return Response{}, err
	}
	suffix, err := r.ReadString()
	if err != nil {
		return Response{}, err
	}
	payload, err := r.ReadBytes()
	if err != nil {
		return Response{}, err
	}
	return Response{
		RequestID: uint32(reqIDv),
		KE:        keyexpr.Expr{ID: uint16(ridv), Suffix: suffix},
		IsErr:     h.Flags.has(FlagErr),
		Payload:   payload,
	}, nil
}

// ResponseFinal signals no further Response will arrive for RequestID; the
// pending-query table retires the entry on receipt (spec section 4.7).
type ResponseFinal struct {
	RequestID uint32
}

func (m ResponseFinal) Encode(w *wire.Writer) error {
	if err := w.WriteByte(Header{ID: idResponseFinal}.Encode()); err != nil {
		return err
	}
	return w.WriteVLE(uint64(m.RequestID))
}

func decodeResponseFinal(h Header, r *wire.Reader) (ResponseFinal, error) {
	if err := checkID(h, idResponseFinal); err != nil {
		return ResponseFinal{}, err
	}
	reqIDv, err := r.ReadVLE()
	if err != nil {
		return ResponseFinal{}, err
	}
	return ResponseFinal{RequestID: uint32(reqIDv)}, nil
}

// Pull requests buffered samples from a pull-mode subscription. This client
// only ever declares push-mode subscribers, so Pull is decoded for
// completeness against a router that might send one but is never emitted.
type Pull struct {
	SubscriberID uint32
}

func (m Pull) Encode(w *wire.Writer) error {
	if err := w.WriteByte(Header{ID: idPull}.Encode()); err != nil {
		return err
	}
	return w.WriteVLE(uint64(m.SubscriberID))
}

func decodePull(h Header, r *wire.Reader) (Pull, error) {
	if err := checkID(h, idPull); err != nil {
		return Pull{}, err
	}
	idv, err := r.ReadVLE()
	if err != nil {
		return Pull{}, err
	}
	return Pull{SubscriberID: uint32(idv)}, nil
}

// NetworkMessage is any message that can appear, one or more concatenated,
// inside a Frame's payload.
type NetworkMessage interface {
	Encode(w *wire.Writer) error
}

// EncodeNetworkMessages serializes msgs into a single byte slice suitable
// for Frame.Payload.
func EncodeNetworkMessages(msgs []NetworkMessage) ([]byte, error) {
	w := wire.NewWriter(0)
	for _, m := range msgs {
		if err := m.Encode(w); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// DecodeNetworkMessages parses a Frame's payload back into its constituent
// network messages.
func DecodeNetworkMessages(payload []byte) ([]NetworkMessage, error) {
	r := wire.NewReader(payload)
	var out []NetworkMessage
	for r.Remaining() > 0 {
		hb, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		h := DecodeHeader(hb)
		msg, err := decodeNetworkBody(h, r)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func decodeNetworkBody(h Header, r *wire.Reader) (NetworkMessage, error) {
	switch h.ID {
	case idDeclare:
		return decodeDeclare(h, r)
	case idPush:
		return decodePush(h, r)
	case idRequest:
		return decodeRequest(h, r)
	case idResponse:
		return decodeResponse(h, r)
	case idResponseFinal:
		return decodeResponseFinal(h, r)
	case idPull:
		return decodePull(h, r)
	default:
		if h.Flags.has(FlagZ) {
			// Unknown extension with the forward-compatibility bit set: the
			// sender guarantees a length-prefixed body we can skip.
			if _, err := r.ReadBytes(); err != nil {
				return nil, err
			}
			return unknownExtension{id: h.ID}, nil
		}
		return nil, zerr.New(zerr.MalformedPacket, "protocol: unknown network message id")
	}
}

// unknownExtension is a skipped forward-compatible extension, retained only
// so DecodeNetworkMessages' output slice reflects the message actually
// present on the wire rather than silently vanishing it.
type unknownExtension struct{ id ID }

func (u unknownExtension) Encode(w *wire.Writer) error {
	return w.WriteByte(Header{ID: u.id, Flags: FlagZ}.Encode())
}
