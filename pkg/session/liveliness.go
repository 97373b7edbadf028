package session

import (
	"context"

	"github.com/marmos91/zenopico/pkg/handler"
	"github.com/marmos91/zenopico/pkg/keyexpr"
	"github.com/marmos91/zenopico/pkg/protocol"
)

// DeclareToken registers a liveliness token on ke: its mere presence in a
// peer's remote token table signals this session is alive for that
// expression (spec.md section 5 supplemented feature #1, grounded on
// original_source's src/session/liveliness.c).
func (s *Session) DeclareToken(ctx context.Context, ke string) (uint32, error) {
	canon, err := keyexpr.Canonicalize(ke, false)
	if err != nil {
		return 0, err
	}
	id := s.allocateID()

	s.mu.Lock()
	insertErr := s.localTokens.insertNew(id, tokenEntry{ke: canon})
	s.mu.Unlock()
	if insertErr != nil {
		return 0, insertErr
	}
	s.reportTableSizes()

	if err := s.declare(ctx, protocol.DeclareToken{ID: id, KE: keyexpr.Expr{Suffix: canon}}); err != nil {
		s.mu.Lock()
		_, _ = s.localTokens.remove(id)
		s.mu.Unlock()
		s.reportTableSizes()
		return 0, err
	}
	return id, nil
}

// UndeclareToken retracts a previously declared liveliness token.
func (s *Session) UndeclareToken(ctx context.Context, id uint32) error {
	s.mu.Lock()
	_, err := s.localTokens.remove(id)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.reportTableSizes()
	return s.declare(ctx, protocol.UndeclareToken{ID: id})
}

type livelinessSubscription struct {
	ke      string
	handler handler.Handler
}

// DeclareLivelinessSubscriber subscribes to liveliness tokens matching ke
// declared by any peer (supplemented feature, spec.md section 5 #1): h
// receives a handler.KindPut sample immediately for every remote token
// already matching ke, then a KindPut/KindDelete sample whenever a matching
// remote token subsequently appears or disappears. Unlike DeclareSubscriber
// this has no wire-visible counterpart — it only consults the already
// locally-maintained remote token table, so no Declare is sent.
func (s *Session) DeclareLivelinessSubscriber(ke string, h handler.Handler) error {
	canon, err := keyexpr.Canonicalize(ke, false)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.livelinessSubs = append(s.livelinessSubs, livelinessSubscription{ke: canon, handler: h})
	var existing []string
	s.remoteTokens.rangeOrdered(func(_ uint32, e tokenEntry) bool {
		if keyexpr.Intersects(canon, e.ke) {
			existing = append(existing, e.ke)
		}
		return true
	})
	s.mu.Unlock()

	for _, tokenKE := range existing {
		handler.Deliver(h, handler.Sample{KE: tokenKE, Kind: handler.KindPut})
	}
	return nil
}

// matchLivelinessLocked returns the handlers of every liveliness
// subscription whose expression intersects tokenKE. Must be called with
// s.mu held; the caller delivers to the returned handlers after unlocking.
func (s *Session) matchLivelinessLocked(tokenKE string) []handler.Handler {
	var matched []handler.Handler
	for _, sub := range s.livelinessSubs {
		if keyexpr.Intersects(sub.ke, tokenKE) {
			matched = append(matched, sub.handler)
		}
	}
	return matched
}
