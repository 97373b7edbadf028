package protocol

import (
	"github.com/marmos91/zenopico/pkg/keyexpr"
	"github.com/marmos91/zenopico/pkg/wire"
	"github.com/marmos91/zenopico/pkg/zerr"
)

// DeclKind tags which declaration table a Declare message's body targets.
// Values 0x01-0x04 are zenoh-pico's _Z_DECL_* constants from msg.h; 0x05
// (liveliness token) is this module's own extension, numbered in the next
// free slot, to carry the liveliness-token declarations described in
// SPEC_FULL section 5.
type DeclKind byte

const (
	DeclResource   DeclKind = 0x01
	DeclPublisher  DeclKind = 0x02
	DeclSubscriber DeclKind = 0x03
	DeclQueryable  DeclKind = 0x04
	DeclToken      DeclKind = 0x05
)

// FlagUndeclare, set on a Declare message's header, marks the body as
// retracting a previously declared entity rather than creating one.
const FlagUndeclare Flags = 1 << 1

// Declaration is one declare/undeclare body. Every concrete type below
// implements it.
type Declaration interface {
	declKind() DeclKind
	undeclare() bool
	encodeBody(w *wire.Writer) error
}

// DeclareResource registers a numeric id for a KE prefix, letting later
// messages reference the prefix by id instead of repeating the string.
type DeclareResource struct {
	RID    uint16
	Prefix string // must already be keyexpr.Canonicalize'd
}

func (DeclareResource) declKind() DeclKind   { return DeclResource }
func (DeclareResource) undeclare() bool      { return false }
func (d DeclareResource) encodeBody(w *wire.Writer) error {
	if err := w.WriteVLE(uint64(d.RID)); err != nil {
		return err
	}
	return w.WriteString(d.Prefix)
}

// UndeclareResource retracts a previously declared resource id.
type UndeclareResource struct{ RID uint16 }

func (UndeclareResource) declKind() DeclKind { return DeclResource }
func (UndeclareResource) undeclare() bool    { return true }
func (d UndeclareResource) encodeBody(w *wire.Writer) error {
	return w.WriteVLE(uint64(d.RID))
}

// DeclareSubscriber registers interest in samples matching KE.
type DeclareSubscriber struct {
	ID uint32
	KE keyexpr.Expr
}

func (DeclareSubscriber) declKind() DeclKind { return DeclSubscriber }
func (DeclareSubscriber) undeclare() bool    { return false }
func (d DeclareSubscriber) encodeBody(w *wire.Writer) error {
	return encodeIDExpr(w, d.ID, d.KE)
}

// UndeclareSubscriber retracts a previously declared subscriber.
type UndeclareSubscriber struct{ ID uint32 }

func (UndeclareSubscriber) declKind() DeclKind { return DeclSubscriber }
func (UndeclareSubscriber) undeclare() bool    { return true }
func (d UndeclareSubscriber) encodeBody(w *wire.Writer) error {
	return w.WriteVLE(uint64(d.ID))
}

// DeclarePublisher registers intent to publish on KE; it carries no
// handler, only enabling downstream resource-id compression for Put/Delete.
type DeclarePublisher struct {
	ID uint32
	KE keyexpr.Expr
}

func (DeclarePublisher) declKind() DeclKind { return DeclPublisher }
func (DeclarePublisher) undeclare() bool    { return false }
func (d DeclarePublisher) encodeBody(w *wire.Writer) error {
	return encodeIDExpr(w, d.ID, d.KE)
}

// UndeclarePublisher retracts a previously declared publisher.
type UndeclarePublisher struct{ ID uint32 }

func (UndeclarePublisher) declKind() DeclKind { return DeclPublisher }
func (UndeclarePublisher) undeclare() bool    { return true }
func (d UndeclarePublisher) encodeBody(w *wire.Writer) error {
	return w.WriteVLE(uint64(d.ID))
}

// DeclareQueryable registers a query handler for KE. Complete signals the
// queryable can answer the whole KE on its own (no need to fan a query out
// to other queryables covering the same space); Distance is the routing
// cost hint a querier can use to prefer a closer queryable.
type DeclareQueryable struct {
	ID       uint32
	KE       keyexpr.Expr
	Complete bool
	Distance uint16
}

func (DeclareQueryable) declKind() DeclKind { return DeclQueryable }
func (DeclareQueryable) undeclare() bool    { return false }
func (d DeclareQueryable) encodeBody(w *wire.Writer) error {
	if err := encodeIDExpr(w, d.ID, d.KE); err != nil {
		return err
	}
	complete := byte(0)
	if d.Complete {
		complete = 1
	}
	if err := w.WriteByte(complete); err != nil {
		return err
	}
	return w.WriteVLE(uint64(d.Distance))
}

// UndeclareQueryable retracts a previously declared queryable.
type UndeclareQueryable struct{ ID uint32 }

func (UndeclareQueryable) declKind() DeclKind { return DeclQueryable }
func (UndeclareQueryable) undeclare() bool    { return true }
func (d UndeclareQueryable) encodeBody(w *wire.Writer) error {
	return w.WriteVLE(uint64(d.ID))
}

// DeclareToken registers a liveliness token on KE: its mere presence in the
// remote table signals the declaring peer is alive for that expression.
type DeclareToken struct {
	ID uint32
	KE keyexpr.Expr
}

func (DeclareToken) declKind() DeclKind { return DeclToken }
func (DeclareToken) undeclare() bool    { return false }
func (d DeclareToken) encodeBody(w *wire.Writer) error {
	return encodeIDExpr(w, d.ID, d.KE)
}

// UndeclareToken retracts a previously declared liveliness token.
type UndeclareToken struct{ ID uint32 }

func (UndeclareToken) declKind() DeclKind { return DeclToken }
func (UndeclareToken) undeclare() bool    { return true }
func (d UndeclareToken) encodeBody(w *wire.Writer) error {
	return w.WriteVLE(uint64(d.ID))
}

func encodeIDExpr(w *wire.Writer, id uint32, ke keyexpr.Expr) error {
	if err := w.WriteVLE(uint64(id)); err != nil {
		return err
	}
	if err := w.WriteVLE(uint64(ke.ID)); err != nil {
		return err
	}
	return w.WriteString(ke.Suffix)
}

func decodeIDExpr(r *wire.Reader) (id uint32, ke keyexpr.Expr, err error) {
	idv, err := r.ReadVLE()
	if err != nil {
		return 0, keyexpr.Expr{}, err
	}
	rid, err := r.ReadVLE()
	if err != nil {
		return 0, keyexpr.Expr{}, err
	}
	suffix, err := r.ReadString()
	if err != nil {
		return 0, keyexpr.Expr{}, err
	}
	return uint32(idv), keyexpr.Expr{ID: uint16(rid), Suffix: suffix}, nil
}

// Declare wraps a single declaration body, one per message as zenoh-pico
// does (no batching of multiple declarations into one Declare).
type Declare struct {
	Decl Declaration
}

func (m Declare) Encode(w *wire.Writer) error {
	flags := Flags(0)
	if m.Decl.undeclare() {
		flags |= FlagUndeclare
	}
	if err := w.WriteByte(Header{ID: idDeclare, Flags: flags}.Encode()); err != nil {
		return err
	}
	if err := w.WriteByte(byte(m.Decl.declKind())); err != nil {
		return err
	}
	return m.Decl.encodeBody(w)
}

func decodeDeclare(h Header, r *wire.Reader) (Declare, error) {
	if err := checkID(h, idDeclare); err != nil {
		return Declare{}, err
	}
	kindB, err := r.ReadByte()
	if err != nil {
		return Declare{}, err
	}
	kind := DeclKind(kindB)
	undeclare := h.Flags.has(FlagUndeclare)

	switch kind {
	case DeclResource:
		if undeclare {
			ridv, err := r.ReadVLE()
			if err != nil {
				return Declare{}, err
			}
			return Declare{Decl: UndeclareResource{RID: uint16(ridv)}}, nil
		}
		ridv, err := r.ReadVLE()
		if err != nil {
			return Declare{}, err
		}
		prefix, err := r.ReadString()
		if err != nil {
			return Declare{}, err
		}
		return Declare{Decl: DeclareResource{RID: uint16(ridv), Prefix: prefix}}, nil
	case DeclSubscriber:
		if undeclare {
			idv, err := r.ReadVLE()
			if err != nil {
				return Declare{}, err
			}
			return Declare{Decl: UndeclareSubscriber{ID: uint32(idv)}}, nil
		}
		id, ke, err := decodeIDExpr(r)
		if err != nil {
			return Declare{}, err
		}
		return Declare{Decl: DeclareSubscriber{ID: id, KE: ke}}, nil
	case DeclPublisher:
		if undeclare {
			idv, err := r.ReadVLE()
			if err != nil {
				return Declare{}, err
			}
			return Declare{Decl: UndeclarePublisher{ID: uint32(idv)}}, nil
		}
		id, ke, err := decodeIDExpr(r)
		if err != nil {
			return Declare{}, err
		}
		return Declare{Decl: DeclarePublisher{ID: id, KE: ke}}, nil
	case DeclQueryable:
		if undeclare {
			idv, err := r.ReadVLE()
			if err != nil {
				return Declare{}, err
			}
			return Declare{Decl: UndeclareQueryable{ID: uint32(idv)}}, nil
		}
		id, ke, err := decodeIDExpr(r)
		if err != nil {
			return Declare{}, err
		}
		completeB, err := r.ReadByte()
		if err != nil {
			return Declare{}, err
		}
		distv, err := r.ReadVLE()
		if err != nil {
			return Declare{}, err
		}
		return Declare{Decl: DeclareQueryable{ID: id, KE: ke, Complete: completeB != 0, Distance: uint16(distv)}}, nil
	case DeclToken:
		if undeclare {
			idv, err := r.ReadVLE()
			if err != nil {
				return Declare{}, err
			}
			return Declare{Decl: UndeclareToken{ID: uint32(idv)}}, nil
		}
		id, ke, err := decodeIDExpr(r)
		if err != nil {
			return Declare{}, err
		}
		return Declare{Decl: DeclareToken{ID: id, KE: ke}}, nil
	default:
		return Declare{}, zerr.New(zerr.MalformedPacket, "protocol: unknown declaration kind")
	}
}
