package session

import (
	"time"

	"github.com/marmos91/zenopico/internal/logger"
	"github.com/marmos91/zenopico/pkg/handler"
	"github.com/marmos91/zenopico/pkg/keyexpr"
	"github.com/marmos91/zenopico/pkg/protocol"
	"github.com/marmos91/zenopico/pkg/zerr"
)

var errUnknownResource = zerr.New(zerr.UnknownResource, "session: resource id not declared by peer")

// dispatch is the transport.Dispatch callback: it runs on the transport's
// read goroutine for every Frame/Fragment the peer sends, in order.
func (s *Session) dispatch(msgs []protocol.NetworkMessage) {
	for _, m := range msgs {
		switch msg := m.(type) {
		case protocol.Declare:
			s.handleDeclare(msg)
		case protocol.Push:
			s.handlePush(msg)
		case protocol.Request:
			s.handleRequest(msg)
		case protocol.Response:
			s.handleResponse(msg)
		case protocol.ResponseFinal:
			s.handleResponseFinal(msg)
		case protocol.Pull:
			// This client only ever declares push-mode subscribers; a Pull
			// naming one of them is a protocol no-op here.
		default:
			// Forward-compatible unknown extensions already had their body
			// skipped by pkg/protocol; nothing left to do.
		}
	}
}

func (s *Session) remotePrefixLookup(id uint16) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteResources.get(uint32(id))
}

func (s *Session) expand(ke keyexpr.Expr) (string, error) {
	return s.resolver.Expand(ke, s.remotePrefixLookup)
}

func (s *Session) handleDeclare(d protocol.Declare) {
	s.mu.Lock()

	var livelinessKE string
	var livelinessKind handler.Kind
	var notify bool

	switch decl := d.Decl.(type) {
	case protocol.DeclareResource:
		s.remoteResources.insert(uint32(decl.RID), decl.Prefix)
	case protocol.UndeclareResource:
		_, _ = s.remoteResources.remove(uint32(decl.RID))

	case protocol.DeclareSubscriber:
		if full, err := s.expandLocked(decl.KE); err == nil {
			s.remoteSubs.insert(decl.ID, subscriberEntry{ke: full})
		} // UnknownResource: peer referenced a prefix it never declared; ignore
	case protocol.UndeclareSubscriber:
		_, _ = s.remoteSubs.remove(decl.ID)

	case protocol.DeclarePublisher:
		if full, err := s.expandLocked(decl.KE); err == nil {
			s.remotePubs.insert(decl.ID, publisherEntry{ke: full})
		}
	case protocol.UndeclarePublisher:
		_, _ = s.remotePubs.remove(decl.ID)

	case protocol.DeclareQueryable:
		if full, err := s.expandLocked(decl.KE); err == nil {
			s.remoteQueryables.insert(decl.ID, queryableEntry{ke: full, complete: decl.Complete, distance: decl.Distance})
		}
	case protocol.UndeclareQueryable:
		_, _ = s.remoteQueryables.remove(decl.ID)

	case protocol.DeclareToken:
		if full, err := s.expandLocked(decl.KE); err == nil {
			s.remoteTokens.insert(decl.ID, tokenEntry{ke: full})
			livelinessKE, livelinessKind, notify = full, handler.KindPut, true
		}
	case protocol.UndeclareToken:
		if entry, ok := s.remoteTokens.get(decl.ID); ok {
			_, _ = s.remoteTokens.remove(decl.ID)
			livelinessKE, livelinessKind, notify = entry.ke, handler.KindDelete, true
		}
	}

	var matched []handler.Handler
	if notify {
		matched = s.matchLivelinessLocked(livelinessKE)
	}
	s.mu.Unlock()
	s.reportTableSizes()

	for _, h := range matched {
		handler.Deliver(h, handler.Sample{KE: livelinessKE, Kind: livelinessKind})
	}
}

// expandLocked is expand for callers that already hold s.mu (handleDeclare
// runs under the lock so the remote resource table it reads is consistent
// with the Declare being processed).
func (s *Session) expandLocked(ke keyexpr.Expr) (string, error) {
	if ke.ID == 0 {
		return ke.Suffix, nil
	}
	prefix, ok := s.remoteResources.get(uint32(ke.ID))
	if !ok {
		return "", errUnknownResource
	}
	if ke.Suffix == "" {
		return prefix, nil
	}
	if prefix == "" {
		return ke.Suffix, nil
	}
	return prefix + "/" + ke.Suffix, nil
}

func (s *Session) handlePush(p protocol.Push) {
	start := time.Now()
	full, err := s.expand(p.KE)
	if hits, total := s.resolver.Stats(); total > 0 {
		s.metrics.SetResolverHitRate(float64(hits) / float64(total))
	}
	if err != nil {
		logger.Debug("dropping push with unresolvable key expression", logger.ResourceID(p.KE.ID), logger.Err(err))
		return // spec 4.7: resolver failure on a sample silently drops it; there is no requester to report UnknownResource to
	}

	kind := handler.KindPut
	if p.Kind == protocol.PushDel {
		kind = handler.KindDelete
	}
	sample := handler.Sample{KE: full, Payload: p.Payload, Kind: kind}

	s.mu.Lock()
	var matched []handler.Handler
	s.localSubs.rangeOrdered(func(_ uint32, e subscriberEntry) bool {
		if keyexpr.Intersects(e.ke, full) {
			matched = append(matched, e.handler)
		}
		return true
	})
	s.mu.Unlock()

	// Dispatch never holds the session lock across the user callback (spec
	// section 5).
	for _, h := range matched {
		handler.Deliver(h, sample)
	}
	s.metrics.ObserveDispatchLatency(time.Since(start))
}
