// Package session implements the declaration tables, sample dispatch, and
// pending-query bookkeeping layered over pkg/transport (spec section 4.7).
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/zenopico/pkg/handler"
	"github.com/marmos91/zenopico/pkg/keyexpr"
	"github.com/marmos91/zenopico/pkg/metrics"
	"github.com/marmos91/zenopico/pkg/protocol"
	"github.com/marmos91/zenopico/pkg/transport"
	"github.com/marmos91/zenopico/pkg/wire"
	"github.com/marmos91/zenopico/pkg/zerr"
)

type subscriberEntry struct {
	ke      string
	handler handler.Handler
}

type publisherEntry struct {
	ke string
}

type queryableEntry struct {
	ke       string
	complete bool
	distance uint16
	fn       QueryHandler
}

type tokenEntry struct {
	ke string
}

// defaultReplyTimeout bounds how long sending a best-effort ResponseFinal
// (queryable.go) is allowed to block on a wedged link before giving up.
// Get's Request is sent under the caller's ctx instead.
const defaultReplyTimeout = 3 * time.Second

// resolverCacheSize bounds the KE resolver's memoization LRU. Large enough
// for a constrained client to never actually evict under normal
// declaration-table sizes, small enough to bound memory on a pathological
// peer that churns resource ids.
const resolverCacheSize = 256

// Session is the client-facing routing layer wrapping one transport.Session:
// declaration tables (local/remote, both directions for every entity kind),
// the KE resolver, and the pending-query table (spec section 4.7).
type Session struct {
	t *transport.Session

	mu sync.Mutex // the one session-wide mutex (spec section 5) guarding every table below

	localResources  *table[string] // id -> prefix
	remoteResources *table[string]
	localPrefixToID map[string]uint32 // reverse index DeclareResource uses to reuse an id; declaration order doesn't matter here

	localSubs  *table[subscriberEntry]
	remoteSubs *table[subscriberEntry] // remote subscribers exist only for completeness; this client never routes to them

	localPubs  *table[publisherEntry]
	remotePubs *table[publisherEntry]

	localQueryables  *table[queryableEntry]
	remoteQueryables *table[queryableEntry]

	localTokens  *table[tokenEntry]
	remoteTokens *table[tokenEntry]

	livelinessSubs []livelinessSubscription

	resolver *keyexpr.Resolver

	nextID         atomic.Uint32
	nextResourceID atomic.Uint32 // separate counter: resource ids are u16 on the wire, unlike every other entity's u32 id

	pendingMu sync.Mutex
	pending   map[uint32]*pendingQuery

	metrics metrics.Recorder
}

// Open performs the transport handshake (pkg/transport.Open) and returns an
// operational Session ready for declare_*/put/get calls.
func Open(ctx context.Context, link transport.Link, cfg transport.Config) (*Session, error) {
	resolver, err := keyexpr.NewResolver(resolverCacheSize)
	if err != nil {
		return nil, err
	}
	s := &Session{
		localResources:   newTable[string](),
		remoteResources:  newTable[string](),
		localPrefixToID:  make(map[string]uint32),
		localSubs:        newTable[subscriberEntry](),
		remoteSubs:       newTable[subscriberEntry](),
		localPubs:        newTable[publisherEntry](),
		remotePubs:       newTable[publisherEntry](),
		localQueryables:  newTable[queryableEntry](),
		remoteQueryables: newTable[queryableEntry](),
		localTokens:      newTable[tokenEntry](),
		remoteTokens:     newTable[tokenEntry](),
		resolver:         resolver,
		pending:          make(map[uint32]*pendingQuery),
		metrics:          metrics.Noop,
	}

	t, err := transport.Open(ctx, link, cfg, s.dispatch, s.handleClose)
	if err != nil {
		return nil, err
	}
	s.t = t
	return s, nil
}

// ZID returns this session's own identifier.
func (s *Session) ZID() wire.ZenohID { return s.t.ZID() }

// PeerZID returns the remote peer's identifier.
func (s *Session) PeerZID() wire.ZenohID { return s.t.PeerZID() }

// State returns the underlying transport session's lifecycle phase.
func (s *Session) State() transport.State { return s.t.State() }

// Close tears down the transport session, which in turn invokes
// handleClose to wake every pending query and drop every handler.
func (s *Session) Close() error {
	return s.t.Close(protocol.CloseGeneric)
}

// UseMetrics swaps in a Prometheus-backed Recorder for both this session
// and its underlying transport.Session. Call once right after Open.
func (s *Session) UseMetrics(m metrics.Recorder) {
	if m == nil {
		m = metrics.Noop
	}
	s.metrics = m
	s.t.UseMetrics(m)
}

// reportTableSizes publishes the current size of every declaration table
// as a gauge. Called after every table mutation, outside s.mu.
func (s *Session) reportTableSizes() {
	s.mu.Lock()
	sizes := [5][2]int{
		{s.localResources.len(), s.remoteResources.len()},
		{s.localSubs.len(), s.remoteSubs.len()},
		{s.localPubs.len(), s.remotePubs.len()},
		{s.localQueryables.len(), s.remoteQueryables.len()},
		{s.localTokens.len(), s.remoteTokens.len()},
	}
	s.mu.Unlock()

	names := [5]string{"resources", "subscribers", "publishers", "queryables", "tokens"}
	for i, name := range names {
		s.metrics.SetDeclarationTableSize(name, "local", sizes[i][0])
		s.metrics.SetDeclarationTableSize(name, "remote", sizes[i][1])
	}
}

func (s *Session) allocateID() uint32 {
	return s.nextID.Add(1)
}

// allocateResourceID wraps modulo 2^16 - 1 (reserving 0, which means
// "no resource id" on the wire per keyexpr.Expr's invariant) rather than
// letting a u32 counter silently truncate into a colliding u16 RID.
func (s *Session) allocateResourceID() uint16 {
	n := s.nextResourceID.Add(1)
	return uint16(1 + (n-1)%0xFFFF)
}

func (s *Session) declare(ctx context.Context, decl protocol.Declaration) error {
	return s.t.Send(ctx, protocol.ChannelReliable, []protocol.NetworkMessage{protocol.Declare{Decl: decl}})
}

// handleClose wakes every pending query and drops every local handler, per
// spec section 5: "Closing a session wakes every pending query, invoking
// its drop function with a SessionClosed error."
func (s *Session) handleClose(reason protocol.CloseReason) {
	err := zerr.New(zerr.SessionClosed, "session: transport closed")

	s.pendingMu.Lock()
	pending := s.pending
	s.pending = make(map[uint32]*pendingQuery)
	s.pendingMu.Unlock()
	for _, pq := range pending {
		pq.stop()
		pq.finish(err)
	}

	s.mu.Lock()
	var handlers []handler.Handler
	s.localSubs.rangeOrdered(func(_ uint32, e subscriberEntry) bool {
		handlers = append(handlers, e.handler)
		return true
	})
	for _, sub := range s.livelinessSubs {
		handlers = append(handlers, sub.handler)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		handler.Drop(h, err)
	}
}

// afterFunc wraps time.AfterFunc so query.go can be unit-tested without
// real sleeps longer than needed; kept as a thin indirection rather than an
// interface since pkg/session has no test double for it today.
func afterFunc(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, fn)
}
