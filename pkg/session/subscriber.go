package session

import (
	"context"

	"github.com/marmos91/zenopico/pkg/handler"
	"github.com/marmos91/zenopico/pkg/keyexpr"
	"github.com/marmos91/zenopico/pkg/protocol"
)

// DeclareSubscriber registers h to receive every sample matching ke (spec
// section 4.7). h is typically handler.NewCallback or handler.NewChannel.
func (s *Session) DeclareSubscriber(ctx context.Context, ke string, h handler.Handler) (uint32, error) {
	canon, err := keyexpr.Canonicalize(ke, false)
	if err != nil {
		return 0, err
	}
	id := s.allocateID()

	s.mu.Lock()
	// declare_subscriber must complete (the table insertion) before the
	// next matching sample is dispatched to it (spec section 5); holding
	// s.mu across the insert is what guarantees that against a concurrent
	// dispatch on the receive goroutine.
	insertErr := s.localSubs.insertNew(id, subscriberEntry{ke: canon, handler: h})
	s.mu.Unlock()
	if insertErr != nil {
		return 0, insertErr
	}
	s.reportTableSizes()

	if err := s.declare(ctx, protocol.DeclareSubscriber{ID: id, KE: keyexpr.Expr{Suffix: canon}}); err != nil {
		s.mu.Lock()
		_, _ = s.localSubs.remove(id)
		s.mu.Unlock()
		s.reportTableSizes()
		return 0, err
	}
	return id, nil
}

// UndeclareSubscriber retracts a previously declared subscriber, invoking
// its handler's drop function with a nil reason (a clean, caller-initiated
// retirement, as opposed to handleClose's SessionClosed).
func (s *Session) UndeclareSubscriber(ctx context.Context, id uint32) error {
	s.mu.Lock()
	entry, err := s.localSubs.remove(id)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.reportTableSizes()
	handler.Drop(entry.handler, nil)
	return s.declare(ctx, protocol.UndeclareSubscriber{ID: id})
}
