package protocol

import (
	"github.com/marmos91/zenopico/pkg/wire"
	"github.com/marmos91/zenopico/pkg/zerr"
)

const (
	idInit      ID = 0x01 // InitSyn and InitAck share an id, distinguished by FlagA
	idOpen      ID = 0x02 // OpenSyn and OpenAck share an id, distinguished by FlagA
	idClose     ID = 0x03
	idKeepAlive ID = 0x04
	idFrame     ID = 0x05
	idFragment  ID = 0x06
	idJoin      ID = 0x07
)

// FlagA marks the "Ack" half of the Init/Open id pairs: absent means Syn,
// present means Ack.
const FlagA Flags = 1 << 0

// Resolution is the bit width used for sequence numbers or request ids,
// restricted to the four values zenoh-pico itself supports.
type Resolution byte

const (
	Resolution8  Resolution = 8
	Resolution16 Resolution = 16
	Resolution32 Resolution = 32
	Resolution64 Resolution = 64
)

func (r Resolution) valid() bool {
	switch r {
	case Resolution8, Resolution16, Resolution32, Resolution64:
		return true
	default:
		return false
	}
}

// Min returns the narrower of the two resolutions, used when negotiating
// InitAck against the client's InitSyn proposal (spec section 4.6 step 2:
// "adopt negotiated resolutions, take the minimum of proposed and
// returned").
func (r Resolution) Min(other Resolution) Resolution {
	if r < other {
		return r
	}
	return other
}

// Channel selects one of the two per-session sequence-number spaces.
type Channel byte

const (
	ChannelReliable Channel = iota
	ChannelBestEffort
)

// FlagReliable marks Frame/Fragment messages as belonging to the reliable
// channel rather than best-effort.
const FlagReliable Flags = 1 << 0

// InitSyn is the first message of the open handshake (spec section 4.6).
type InitSyn struct {
	Version           byte
	WhatAmI           WhatAmI
	ZID               wire.ZenohID
	BatchSize         uint16
	SNResolution      Resolution
	RequestResolution Resolution
}

func (m InitSyn) Encode(w *wire.Writer) error {
	if err := w.WriteByte(Header{ID: idInit}.Encode()); err != nil {
		return err
	}
	return encodeInitBody(w, m.Version, m.WhatAmI, m.ZID, m.BatchSize, m.SNResolution, m.RequestResolution)
}

func encodeInitBody(w *wire.Writer, version byte, what WhatAmI, zid wire.ZenohID, batch uint16, sn, req Resolution) error {
	if err := w.WriteByte(version); err != nil {
		return err
	}
	if err := w.WriteByte(byte(what)); err != nil {
		return err
	}
	if err := w.WriteZenohID(zid); err != nil {
		return err
	}
	if err := w.WriteVLE(uint64(batch)); err != nil {
		return err
	}
	if err := w.WriteByte(byte(sn)); err != nil {
		return err
	}
	return w.WriteByte(byte(req))
}

func decodeInitBody(r *wire.Reader) (version byte, what WhatAmI, zid wire.ZenohID, batch uint16, sn, req Resolution, err error) {
	if version, err = r.ReadByte(); err != nil {
		return
	}
	var w8 byte
	if w8, err = r.ReadByte(); err != nil {
		return
	}
	what = WhatAmI(w8)
	if zid, err = r.ReadZenohID(); err != nil {
		return
	}
	var batchV uint64
	if batchV, err = r.ReadVLE(); err != nil {
		return
	}
	if batchV > 0xffff {
		err = zerr.New(zerr.MalformedPacket, "protocol: batch_size out of range")
		return
	}
	batch = uint16(batchV)
	var snB, reqB byte
	if snB, err = r.ReadByte(); err != nil {
		return
	}
	if reqB, err = r.ReadByte(); err != nil {
		return
	}
	sn, req = Resolution(snB), Resolution(reqB)
	if !sn.valid() || !req.valid() {
		err = zerr.New(zerr.MalformedPacket, "protocol: invalid resolution")
		return
	}
	return
}

func decodeInitSyn(h Header, r *wire.Reader) (InitSyn, error) {
	if err := checkID(h, idInit); err != nil {
		return InitSyn{}, err
	}
	if h.Flags.has(FlagA) {
		return InitSyn{}, zerr.New(zerr.MalformedPacket, "protocol: expected InitSyn, got InitAck")
	}
	version, what, zid, batch, sn, req, err := decodeInitBody(r)
	if err != nil {
		return InitSyn{}, err
	}
	return InitSyn{Version: version, WhatAmI: what, ZID: zid, BatchSize: batch, SNResolution: sn, RequestResolution: req}, nil
}

// InitAck is the router's/peer's response to InitSyn, carrying an opaque
// cookie the client must echo back in OpenSyn.
type InitAck struct {
	Version           byte
	WhatAmI           WhatAmI
	ZID               wire.ZenohID
	BatchSize         uint16
	SNResolution      Resolution
	RequestResolution Resolution
	Cookie            []byte
}

func (m InitAck) Encode(w *wire.Writer) error {
	if err := w.WriteByte(Header{ID: idInit, Flags: FlagA}.Encode()); err != nil {
		return err
	}
	if err := encodeInitBody(w, m.Version, m.WhatAmI, m.ZID, m.BatchSize, m.SNResolution, m.RequestResolution); err != nil {
		return err
	}
	return w.WriteBytes(m.Cookie)
}

func decodeInitAck(h Header, r *wire.Reader) (InitAck, error) {
	if err := checkID(h, idInit); err != nil {
		return InitAck{}, err
	}
	if !h.Flags.has(FlagA) {
		return InitAck{}, zerr.New(zerr.MalformedPacket, "protocol: expected InitAck, got InitSyn")
	}
	version, what, zid, batch, sn, req, err := decodeInitBody(r)
	if err != nil {
		return InitAck{}, err
	}
	cookie, err := r.ReadBytes()
	if err != nil {
		return InitAck{}, err
	}
	return InitAck{Version: version, WhatAmI: what, ZID: zid, BatchSize: batch, SNResolution: sn, RequestResolution: req, Cookie: cookie}, nil
}

// OpenSyn completes the open handshake's second round trip, echoing the
// cookie InitAck supplied.
type OpenSyn struct {
	LeaseMs   uint64
	InitialSN uint64
	Cookie    []byte
}

func (m OpenSyn) Encode(w *wire.Writer) error {
	if err := w.WriteByte(Header{ID: idOpen}.Encode()); err != nil {
		return err
	}
	if err := w.WriteVLE(m.LeaseMs); err != nil {
		return err
	}
	if err := w.WriteVLE(m.InitialSN); err != nil {
		return err
	}
	return w.WriteBytes(m.Cookie)
}

func decodeOpenSyn(h Header, r *wire.Reader) (OpenSyn, error) {
	if err := checkID(h, idOpen); err != nil {
		return OpenSyn{}, err
	}
	if h.Flags.has(FlagA) {
		return OpenSyn{}, zerr.New(zerr.MalformedPacket, "protocol: expected OpenSyn, got OpenAck")
	}
	lease, err := r.ReadVLE()
	if err != nil {
		return OpenSyn{}, err
	}
	sn, err := r.ReadVLE()
	if err != nil {
		return OpenSyn{}, err
	}
	cookie, err := r.ReadBytes()
	if err != nil {
		return OpenSyn{}, err
	}
	return OpenSyn{LeaseMs: lease, InitialSN: sn, Cookie: cookie}, nil
}

// OpenAck finalizes the handshake; receipt moves the session to Operational.
type OpenAck struct {
	LeaseMs   uint64
	InitialSN uint64
}

func (m OpenAck) Encode(w *wire.Writer) error {
	if err := w.WriteByte(Header{ID: idOpen, Flags: FlagA}.Encode()); err != nil {
		return err
	}
	if err := w.WriteVLE(m.LeaseMs); err != nil {
		return err
	}
	return w.WriteVLE(m.InitialSN)
}

func decodeOpenAck(h Header, r *wire.Reader) (OpenAck, error) {
	if err := checkID(h, idOpen); err != nil {
		return OpenAck{}, err
	}
	if !h.Flags.has(FlagA) {
		return OpenAck{}, zerr.New(zerr.MalformedPacket, "protocol: expected OpenAck, got OpenSyn")
	}
	lease, err := r.ReadVLE()
	if err != nil {
		return OpenAck{}, err
	}
	sn, err := r.ReadVLE()
	if err != nil {
		return OpenAck{}, err
	}
	return OpenAck{LeaseMs: lease, InitialSN: sn}, nil
}

// CloseReason is the concrete reason code carried by Close, taken from
// zenoh-pico's msg.h rather than left as an opaque string.
type CloseReason byte

const (
	CloseGeneric       CloseReason = 0x00
	CloseUnsupported   CloseReason = 0x01
	CloseInvalid       CloseReason = 0x02
	CloseMaxTransports CloseReason = 0x03
	CloseMaxLinks      CloseReason = 0x04
	CloseExpired       CloseReason = 0x05
)

// Close tears down a session, best-effort (spec section 4.6: "send
// Close(reason, session-or-link) best-effort").
type Close struct {
	Reason CloseReason
}

func (m Close) Encode(w *wire.Writer) error {
	if err := w.WriteByte(Header{ID: idClose}.Encode()); err != nil {
		return err
	}
	return w.WriteByte(byte(m.Reason))
}

func decodeClose(h Header, r *wire.Reader) (Close, error) {
	if err := checkID(h, idClose); err != nil {
		return Close{}, err
	}
	reason, err := r.ReadByte()
	if err != nil {
		return Close{}, err
	}
	return Close{Reason: CloseReason(reason)}, nil
}

// KeepAlive carries no payload; its arrival alone refreshes the peer's
// lease deadline.
type KeepAlive struct{}

func (m KeepAlive) Encode(w *wire.Writer) error {
	return w.WriteByte(Header{ID: idKeepAlive}.Encode())
}

func decodeKeepAlive(h Header, _ *wire.Reader) (KeepAlive, error) {
	if err := checkID(h, idKeepAlive); err != nil {
		return KeepAlive{}, err
	}
	return KeepAlive{}, nil
}

// Frame batches one or more already-encoded network messages under a single
// per-channel sequence number.
type Frame struct {
	ChannelKind Channel
	SN          uint64
	Payload     []byte // concatenated, encoded network messages
}

func (m Frame) Encode(w *wire.Writer) error {
	flags := Flags(0)
	if m.ChannelKind == ChannelReliable {
		flags |= FlagReliable
	}
	if err := w.WriteByte(Header{ID: idFrame, Flags: flags}.Encode()); err != nil {
		return err
	}
	if err := w.WriteVLE(m.SN); err != nil {
		return err
	}
	return w.WriteBytes(m.Payload)
}

func decodeFrame(h Header, r *wire.Reader) (Frame, error) {
	if err := checkID(h, idFrame); err != nil {
		return Frame{}, err
	}
	channel := ChannelBestEffort
	if h.Flags.has(FlagReliable) {
		channel = ChannelReliable
	}
	sn, err := r.ReadVLE()
	if err != nil {
		return Frame{}, err
	}
	payload, err := r.ReadBytes()
	if err != nil {
		return Frame{}, err
	}
	return Frame{ChannelKind: channel, SN: sn, Payload: payload}, nil
}

// Fragment carries a slice of a single oversized network message. More
// signals additional fragments follow with ascending SNs on the same
// channel (spec section 4.6).
type Fragment struct {
	ChannelKind Channel
	SN          uint64
	More        bool
	Payload     []byte
}

// FlagMore marks non-final fragments.
const FlagMore Flags = 1 << 1

func (m Fragment) Encode(w *wire.Writer) error {
	flags := Flags(0)
	if m.ChannelKind == ChannelReliable {
		flags |= FlagReliable
	}
	if m.More {
		flags |= FlagMore
	}
	if err := w.WriteByte(Header{ID: idFragment, Flags: flags}.Encode()); err != nil {
		return err
	}
	if err := w.WriteVLE(m.SN); err != nil {
		return err
	}
	return w.WriteBytes(m.Payload)
}

func decodeFragment(h Header, r *wire.Reader) (Fragment, error) {
	if err := checkID(h, idFragment); err != nil {
		return Fragment{}, err
	}
	channel := ChannelBestEffort
	if h.Flags.has(FlagReliable) {
		channel = ChannelReliable
	}
	sn, err := r.ReadVLE()
	if err != nil {
		return Fragment{}, err
	}
	payload, err := r.ReadBytes()
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{ChannelKind: channel, SN: sn, More: h.Flags.has(FlagMore), Payload: payload}, nil
}

// Join is the multicast-scouting-free announcement a peer can emit to
// establish a transport without a prior Scout/Hello round trip. Supported
// minimally: this client never listens for Join, only ever speaks the
// client-role Init/Open handshake, but decodes Join for completeness against
// a router that multicasts one.
type Join struct {
	Version byte
	WhatAmI WhatAmI
	ZID     wire.ZenohID
	LeaseMs uint64
}

func (m Join) Encode(w *wire.Writer) error {
	if err := w.WriteByte(Header{ID: idJoin}.Encode()); err != nil {
		return err
	}
	if err := w.WriteByte(m.Version); err != nil {
		return err
	}
	if err := w.WriteByte(byte(m.WhatAmI)); err != nil {
		return err
	}
	if err := w.WriteZenohID(m.ZID); err != nil {
		return err
	}
	return w.WriteVLE(m.LeaseMs)
}

func decodeJoin(h Header, r *wire.Reader) (Join, error) {
	if err := checkID(h, idJoin); err != nil {
		return Join{}, err
	}
	version, err := r.ReadByte()
	if err != nil {
		return Join{}, err
	}
	what, err := r.ReadByte()
	if err != nil {
		return Join{}, err
	}
	zid, err := r.ReadZenohID()
	if err != nil {
		return Join{}, err
	}
	lease, err := r.ReadVLE()
	if err != nil {
		return Join{}, err
	}
	return Join{Version: version, WhatAmI: WhatAmI(what), ZID: zid, LeaseMs: lease}, nil
}
