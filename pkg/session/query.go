package session

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/zenopico/pkg/keyexpr"
	"github.com/marmos91/zenopico/pkg/protocol"
	"github.com/marmos91/zenopico/pkg/zerr"
)

// ReplyCallback receives one Response for an outstanding query. payload and
// isErr mirror protocol.Response's fields directly.
type ReplyCallback func(payload []byte, isErr bool)

// FinalCallback fires exactly once per query: with a nil error on a clean
// ResponseFinal, or with a zerr.Timeout/zerr.SessionClosed error if the
// query was retired without one (spec section 4.7: "A query must call the
// user callback exactly once per reply and exactly once with a 'final'
// termination signal").
type FinalCallback func(err error)

type pendingQuery struct {
	onReply ReplyCallback
	onFinal FinalCallback
	timer   *time.Timer

	once sync.Once
}

func (pq *pendingQuery) stop() {
	if pq.timer != nil {
		pq.timer.Stop()
	}
}

func (pq *pendingQuery) finish(err error) {
	pq.once.Do(func() { pq.onFinal(err) })
}

// Get allocates a request id, sends a Request(ke, value), and arranges for
// onReply to be invoked once per incoming Response and onFinal exactly once
// when the query retires (ResponseFinal, timeout, or session close).
func (s *Session) Get(ctx context.Context, ke string, value []byte, timeout time.Duration, onReply ReplyCallback, onFinal FinalCallback) error {
	canon, err := keyexpr.Canonicalize(ke, false)
	if err != nil {
		return err
	}
	id := s.allocateID()
	pq := &pendingQuery{onReply: onReply, onFinal: onFinal}

	s.pendingMu.Lock()
	s.pending[id] = pq
	s.pendingMu.Unlock()

	pq.timer = afterFunc(timeout, func() {
		s.pendingMu.Lock()
		_, ok := s.pending[id]
		delete(s.pending, id)
		s.pendingMu.Unlock()
		if ok {
			pq.finish(zerr.New(zerr.Timeout, "session: query deadline expired"))
		}
	})

	req := protocol.Request{RequestID: id, KE: keyexpr.Expr{Suffix: canon}, Value: value}
	if err := s.t.Send(ctx, protocol.ChannelReliable, []protocol.NetworkMessage{req}); err != nil {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
		pq.stop()
		return err
	}
	return nil
}

func (s *Session) lookupPending(id uint32, retire bool) (*pendingQuery, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	pq, ok := s.pending[id]
	if ok && retire {
		delete(s.pending, id)
	}
	return pq, ok
}

func (s *Session) handleResponse(r protocol.Response) {
	pq, ok := s.lookupPending(r.RequestID, false)
	if !ok {
		return // late response for an already-retired query; drop it
	}
	pq.onReply(r.Payload, r.IsErr)
}

func (s *Session) handleResponseFinal(r protocol.ResponseFinal) {
	pq, ok := s.lookupPending(r.RequestID, true)
	if !ok {
		return
	}
	pq.stop()
	pq.finish(nil)
}
