package protocol

import (
	"github.com/marmos91/zenopico/pkg/wire"
	"github.com/marmos91/zenopico/pkg/zerr"
)

const (
	idScout ID = 0x01
	idHello ID = 0x02
)

// WhatAmI identifies a peer's role in the discovery exchange. It is a
// bitmask so a Hello's What field can advertise more than one role, even
// though this client only ever scouts for Router|Peer and only ever
// announces Client for itself.
type WhatAmI byte

const (
	WhatAmIRouter WhatAmI = 1 << 0
	WhatAmIPeer   WhatAmI = 1 << 1
	WhatAmIClient WhatAmI = 1 << 2
)

// Scout is broadcast before a session exists to discover routers/peers
// willing to accept a connection (spec scenario S1).
type Scout struct {
	Version byte
	What    WhatAmI
	ZID     wire.ZenohID
}

func (m Scout) Encode(w *wire.Writer) error {
	if err := w.WriteByte(Header{ID: idScout}.Encode()); err != nil {
		return err
	}
	if err := w.WriteByte(m.Version); err != nil {
		return err
	}
	if err := w.WriteByte(byte(m.What)); err != nil {
		return err
	}
	return w.WriteZenohID(m.ZID)
}

func decodeScout(h Header, r *wire.Reader) (Scout, error) {
	if err := checkID(h, idScout); err != nil {
		return Scout{}, err
	}
	version, err := r.ReadByte()
	if err != nil {
		return Scout{}, err
	}
	what, err := r.ReadByte()
	if err != nil {
		return Scout{}, err
	}
	zid, err := r.ReadZenohID()
	if err != nil {
		return Scout{}, err
	}
	return Scout{Version: version, What: WhatAmI(what), ZID: zid}, nil
}

// Hello is the reply to a Scout, advertising the responder's identity and
// the locators it can be reached on.
type Hello struct {
	Version  byte
	What     WhatAmI
	ZID      wire.ZenohID
	Locators []string
}

func (m Hello) Encode(w *wire.Writer) error {
	if err := w.WriteByte(Header{ID: idHello}.Encode()); err != nil {
		return err
	}
	if err := w.WriteByte(m.Version); err != nil {
		return err
	}
	if err := w.WriteByte(byte(m.What)); err != nil {
		return err
	}
	if err := w.WriteZenohID(m.ZID); err != nil {
		return err
	}
	if err := w.WriteVLE(uint64(len(m.Locators))); err != nil {
		return err
	}
	for _, loc := range m.Locators {
		if err := w.WriteString(loc); err != nil {
			return err
		}
	}
	return nil
}

func decodeHello(h Header, r *wire.Reader) (Hello, error) {
	if err := checkID(h, idHello); err != nil {
		return Hello{}, err
	}
	version, err := r.ReadByte()
	if err != nil {
		return Hello{}, err
	}
	what, err := r.ReadByte()
	if err != nil {
		return Hello{}, err
	}
	zid, err := r.ReadZenohID()
	if err != nil {
		return Hello{}, err
	}
	n, err := r.ReadVLE()
	if err != nil {
		return Hello{}, err
	}
	if n > 1<<16 {
		return Hello{}, zerr.New(zerr.MalformedPacket, "protocol: hello locator count too large")
	}
	var locators []string // stays nil for n == 0, matching a Hello encoded from nil Locators
	if n > 0 {
		locators = make([]string, n)
	}
	for i := range locators {
		locators[i], err = r.ReadString()
		if err != nil {
			return Hello{}, err
		}
	}
	return Hello{Version: version, What: WhatAmI(what), ZID: zid, Locators: locators}, nil
}
