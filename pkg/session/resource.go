package session

import (
	"context"

	"github.com/marmos91/zenopico/pkg/keyexpr"
	"github.com/marmos91/zenopico/pkg/protocol"
)

// DeclareResource registers prefix under a freshly allocated id and
// announces it to the peer; declaring an already-declared prefix again
// returns its existing id. Put, Get and the declare_* calls of this session
// always send the full key expression and do not reference the id.
func (s *Session) DeclareResource(ctx context.Context, prefix string) (uint16, error) {
	canon, err := keyexpr.Canonicalize(prefix, false)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	if existing, ok := s.localPrefixToID[canon]; ok {
		s.mu.Unlock()
		return uint16(existing), nil
	}
	rid := s.allocateResourceID()
	s.localResources.insert(uint32(rid), canon)
	s.localPrefixToID[canon] = uint32(rid)
	s.mu.Unlock()
	s.reportTableSizes()

	if err := s.declare(ctx, protocol.DeclareResource{RID: rid, Prefix: canon}); err != nil {
		s.mu.Lock()
		_, _ = s.localResources.remove(uint32(rid))
		delete(s.localPrefixToID, canon)
		s.mu.Unlock()
		s.reportTableSizes()
		return 0, err
	}
	return rid, nil
}

// UndeclareResource retracts a previously declared resource id.
func (s *Session) UndeclareResource(ctx context.Context, id uint16) error {
	s.mu.Lock()
	prefix, err := s.localResources.remove(uint32(id))
	if err == nil {
		delete(s.localPrefixToID, prefix)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.reportTableSizes()
	return s.declare(ctx, protocol.UndeclareResource{RID: id})
}
