package session

import (
	"context"

	"github.com/marmos91/zenopico/pkg/keyexpr"
	"github.com/marmos91/zenopico/pkg/protocol"
)

// Publisher is a declared intent to publish on one key expression. Put/
// Delete do not require the publisher declaration to have succeeded on the
// peer side first (zenoh-pico itself does not wait for acknowledgement).
// Put and Delete always send the full key expression; they do not use any
// resource id this session has declared for the same prefix.
type Publisher struct {
	s  *Session
	id uint32
	ke string
}

// DeclarePublisher registers intent to publish on ke.
func (s *Session) DeclarePublisher(ctx context.Context, ke string) (*Publisher, error) {
	canon, err := keyexpr.Canonicalize(ke, false)
	if err != nil {
		return nil, err
	}
	id := s.allocateID()

	s.mu.Lock()
	insertErr := s.localPubs.insertNew(id, publisherEntry{ke: canon})
	s.mu.Unlock()
	if insertErr != nil {
		return nil, insertErr
	}
	s.reportTableSizes()

	if err := s.declare(ctx, protocol.DeclarePublisher{ID: id, KE: keyexpr.Expr{Suffix: canon}}); err != nil {
		s.mu.Lock()
		_, _ = s.localPubs.remove(id)
		s.mu.Unlock()
		s.reportTableSizes()
		return nil, err
	}
	return &Publisher{s: s, id: id, ke: canon}, nil
}

// Undeclare retracts this publisher.
func (p *Publisher) Undeclare(ctx context.Context) error {
	p.s.mu.Lock()
	_, err := p.s.localPubs.remove(p.id)
	p.s.mu.Unlock()
	if err != nil {
		return err
	}
	p.s.reportTableSizes()
	return p.s.declare(ctx, protocol.UndeclarePublisher{ID: p.id})
}

// Put sends a new value for this publisher's key expression.
func (p *Publisher) Put(ctx context.Context, encoding string, payload []byte) error {
	push := protocol.Push{KE: keyexpr.Expr{Suffix: p.ke}, Kind: protocol.PushPut, Encoding: encoding, Payload: payload}
	return p.s.t.Send(ctx, protocol.ChannelReliable, []protocol.NetworkMessage{push})
}

// Delete sends a tombstone for this publisher's key expression.
func (p *Publisher) Delete(ctx context.Context) error {
	push := protocol.Push{KE: keyexpr.Expr{Suffix: p.ke}, Kind: protocol.PushDel}
	return p.s.t.Send(ctx, protocol.ChannelReliable, []protocol.NetworkMessage{push})
}

// Put publishes one value on ke directly, without declaring a Publisher
// first — convenient for a single one-off sample.
func (s *Session) Put(ctx context.Context, ke string, encoding string, payload []byte) error {
	canon, err := keyexpr.Canonicalize(ke, false)
	if err != nil {
		return err
	}
	push := protocol.Push{KE: keyexpr.Expr{Suffix: canon}, Kind: protocol.PushPut, Encoding: encoding, Payload: payload}
	return s.t.Send(ctx, protocol.ChannelReliable, []protocol.NetworkMessage{push})
}
