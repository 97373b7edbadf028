package session

import (
	"context"

	"github.com/marmos91/zenopico/pkg/keyexpr"
	"github.com/marmos91/zenopico/pkg/protocol"
)

// Query is one incoming request handed to a declared queryable's handler.
// The handler may call Reply zero or more times; the session sends
// ResponseFinal once every matching local queryable's handler has returned,
// regardless of how many times (if any) each one replied.
type Query struct {
	KE    string
	Value []byte

	s         *Session
	requestID uint32
}

// Reply sends one successful answer for this query.
func (q *Query) Reply(ctx context.Context, payload []byte) error {
	return q.respond(ctx, payload, false)
}

// ReplyErr sends one failed answer for this query.
func (q *Query) ReplyErr(ctx context.Context, payload []byte) error {
	return q.respond(ctx, payload, true)
}

func (q *Query) respond(ctx context.Context, payload []byte, isErr bool) error {
	resp := protocol.Response{RequestID: q.requestID, KE: keyexpr.Expr{Suffix: q.KE}, IsErr: isErr, Payload: payload}
	return q.s.t.Send(ctx, protocol.ChannelReliable, []protocol.NetworkMessage{resp})
}

// QueryHandler answers an incoming Query.
type QueryHandler func(*Query)

// DeclareQueryable registers fn to answer queries matching ke. complete
// signals this queryable can answer the whole expression on its own;
// distance is a routing-cost hint.
func (s *Session) DeclareQueryable(ctx context.Context, ke string, complete bool, distance uint16, fn QueryHandler) (uint32, error) {
	canon, err := keyexpr.Canonicalize(ke, false)
	if err != nil {
		return 0, err
	}
	id := s.allocateID()

	s.mu.Lock()
	insertErr := s.localQueryables.insertNew(id, queryableEntry{ke: canon, complete: complete, distance: distance, fn: fn})
	s.mu.Unlock()
	if insertErr != nil {
		return 0, insertErr
	}
	s.reportTableSizes()

	decl := protocol.DeclareQueryable{ID: id, KE: keyexpr.Expr{Suffix: canon}, Complete: complete, Distance: distance}
	if err := s.declare(ctx, decl); err != nil {
		s.mu.Lock()
		_, _ = s.localQueryables.remove(id)
		s.mu.Unlock()
		s.reportTableSizes()
		return 0, err
	}
	return id, nil
}

// UndeclareQueryable retracts a previously declared queryable.
func (s *Session) UndeclareQueryable(ctx context.Context, id uint32) error {
	s.mu.Lock()
	_, err := s.localQueryables.remove(id)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.reportTableSizes()
	return s.declare(ctx, protocol.UndeclareQueryable{ID: id})
}

func (s *Session) handleRequest(r protocol.Request) {
	full, err := s.expand(r.KE)
	if err != nil {
		return
	}

	s.mu.Lock()
	var fns []QueryHandler
	s.localQueryables.rangeOrdered(func(_ uint32, e queryableEntry) bool {
		if keyexpr.Intersects(e.ke, full) {
			fns = append(fns, e.fn)
		}
		return true
	})
	s.mu.Unlock()

	for _, fn := range fns {
		fn(&Query{KE: full, Value: r.Value, s: s, requestID: r.RequestID})
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultReplyTimeout)
	defer cancel()
	_ = s.t.Send(ctx, protocol.ChannelReliable, []protocol.NetworkMessage{protocol.ResponseFinal{RequestID: r.RequestID}})
}
