package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/zenopico/pkg/handler"
	"github.com/marmos91/zenopico/pkg/keyexpr"
	"github.com/marmos91/zenopico/pkg/protocol"
	"github.com/marmos91/zenopico/pkg/transport"
	"github.com/marmos91/zenopico/pkg/wire"
	"github.com/marmos91/zenopico/pkg/zerr"
)

// pipeLink adapts a net.Conn to transport.Link for testing, same shape as
// pkg/transport's own test double.
type pipeLink struct{ conn net.Conn }

func (p *pipeLink) Read(ctx context.Context, buf []byte) (int, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = p.conn.SetReadDeadline(dl)
	} else {
		_ = p.conn.SetReadDeadline(time.Time{})
	}
	return p.conn.Read(buf)
}

func (p *pipeLink) Write(ctx context.Context, b []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = p.conn.SetWriteDeadline(dl)
	} else {
		_ = p.conn.SetWriteDeadline(time.Time{})
	}
	_, err := p.conn.Write(b)
	return err
}

func (p *pipeLink) Close() error { return p.conn.Close() }

type testPeer struct {
	conn *pipeLink
	dec  protocol.StreamDecoder
}

func (p *testPeer) readOne(t *testing.T) protocol.Message {
	t.Helper()
	buf := make([]byte, 65536)
	for {
		n, err := p.conn.Read(context.Background(), buf)
		require.NoError(t, err)
		msgs, err := p.dec.Feed(buf[:n])
		require.NoError(t, err)
		if len(msgs) > 0 {
			require.Len(t, msgs, 1)
			return msgs[0]
		}
	}
}

func (p *testPeer) send(t *testing.T, m protocol.Message) {
	t.Helper()
	framed, err := protocol.EncodeFramed(m)
	require.NoError(t, err)
	require.NoError(t, p.conn.Write(context.Background(), framed))
}

func peerZID(t *testing.T) wire.ZenohID {
	t.Helper()
	zid, err := wire.NewZenohID([]byte{0x02})
	require.NoError(t, err)
	return zid
}

func handshakeOnPeer(t *testing.T, peer *testPeer) {
	t.Helper()
	synMsg := peer.readOne(t)
	syn, ok := synMsg.(protocol.InitSyn)
	require.True(t, ok)

	peer.send(t, protocol.InitAck{
		Version:           syn.Version,
		WhatAmI:           protocol.WhatAmIRouter,
		ZID:               peerZID(t),
		BatchSize:         syn.BatchSize,
		SNResolution:      syn.SNResolution,
		RequestResolution: syn.RequestResolution,
	})

	openMsg := peer.readOne(t)
	_, ok = openMsg.(protocol.OpenSyn)
	require.True(t, ok)

	peer.send(t, protocol.OpenAck{LeaseMs: 10000, InitialSN: 100})
}

func newSessionPair(t *testing.T) (*Session, *testPeer) {
	t.Helper()
	clientConn, peerConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); peerConn.Close() })

	peer := &testPeer{conn: &pipeLink{conn: peerConn}}
	done := make(chan struct{})
	go func() {
		defer close(done)
		handshakeOnPeer(t, peer)
	}()

	zid, err := wire.NewZenohID([]byte{0x01})
	require.NoError(t, err)
	cfg := transport.Config{
		Version:                    8,
		ZID:                       zid,
		BatchSize:                  4096,
		LeaseMs:                    200,
		SNResolution:               protocol.Resolution32,
		RequestResolution:          protocol.Resolution32,
		FragmentReassemblyMaxBytes: 1 << 20,
	}
	sess, err := Open(context.Background(), &pipeLink{conn: clientConn}, cfg)
	require.NoError(t, err)
	<-done
	return sess, peer
}

func TestDeclareSubscriberThenPushDispatchesSample(t *testing.T) {
	sess, peer := newSessionPair(t)
	defer sess.Close()

	received := make(chan handler.Sample, 1)
	_, err := sess.DeclareSubscriber(context.Background(), "demo/example/**", handler.NewCallback(func(s handler.Sample) {
		received <- s
	}, nil))
	require.NoError(t, err)

	declMsg := peer.readOne(t)
	decl, ok := declMsg.(protocol.Declare)
	require.True(t, ok)
	sub, ok := decl.Decl.(protocol.DeclareSubscriber)
	require.True(t, ok)
	assert.Equal(t, "demo/example/**", sub.KE.Suffix)

	peer.send(t, protocol.Frame{
		ChannelKind: protocol.ChannelReliable,
		SN:          100,
		Payload: mustEncode(t, protocol.Push{
			KE:      sub.KE, // peer replies with the same KE form it received - no resource compression in this test
			Kind:    protocol.PushPut,
			Payload: []byte("hi"),
		}),
	})

	select {
	case s := <-received:
		assert.Equal(t, "demo/example/**", s.KE, "suffix-only KE (id 0) expands to itself")
		assert.Equal(t, []byte("hi"), s.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched sample")
	}
}

func mustEncode(t *testing.T, msgs ...protocol.NetworkMessage) []byte {
	t.Helper()
	nm := make([]protocol.NetworkMessage, len(msgs))
	copy(nm, msgs)
	b, err := protocol.EncodeNetworkMessages(nm)
	require.NoError(t, err)
	return b
}

func TestDuplicateSubscriberDeclarationRejected(t *testing.T) {
	sess, _ := newSessionPair(t)
	defer sess.Close()

	// Force both declarations to reuse the same id by inserting directly.
	sess.mu.Lock()
	err := sess.localSubs.insertNew(1, subscriberEntry{ke: "a/b"})
	require.NoError(t, err)
	err = sess.localSubs.insertNew(1, subscriberEntry{ke: "a/c"})
	sess.mu.Unlock()

	require.Error(t, err)
	assert.True(t, zerr.Is(err, zerr.EntityDeclarationFailed))
}

func TestQueryReceivesReplyThenFinal(t *testing.T) {
	sess, peer := newSessionPair(t)
	defer sess.Close()

	var replies [][]byte
	finalCh := make(chan error, 1)
	err := sess.Get(context.Background(), "demo/query", nil, time.Second,
		func(payload []byte, isErr bool) { replies = append(replies, payload) },
		func(err error) { finalCh <- err },
	)
	require.NoError(t, err)

	reqMsg := peer.readOne(t)
	req, ok := reqMsg.(protocol.Request)
	require.True(t, ok)

	peer.send(t, protocol.Frame{
		ChannelKind: protocol.ChannelReliable,
		SN:          100,
		Payload: mustEncode(t,
			protocol.Response{RequestID: req.RequestID, Payload: []byte("answer")},
			protocol.ResponseFinal{RequestID: req.RequestID},
		),
	})

	select {
	case err := <-finalCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for query final")
	}
	require.Len(t, replies, 1)
	assert.Equal(t, []byte("answer"), replies[0])
}

func TestQueryTimesOutWithoutResponseFinal(t *testing.T) {
	sess, peer := newSessionPair(t)
	defer sess.Close()

	finalCh := make(chan error, 1)
	err := sess.Get(context.Background(), "demo/query", nil, 50*time.Millisecond,
		func([]byte, bool) {},
		func(err error) { finalCh <- err },
	)
	require.NoError(t, err)
	_ = peer.readOne(t) // drain the Request so the peer's decoder doesn't block anything

	select {
	case err := <-finalCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for query deadline")
	}
}

func TestLivelinessSubscriberSeesTokenAppearAndDisappear(t *testing.T) {
	sess, peer := newSessionPair(t)
	defer sess.Close()

	events := make(chan handler.Sample, 4)
	err := sess.DeclareLivelinessSubscriber("demo/**", handler.NewCallback(func(s handler.Sample) {
		events <- s
	}, nil))
	require.NoError(t, err)

	peer.send(t, protocol.Frame{
		ChannelKind: protocol.ChannelReliable,
		SN:          100,
		Payload: mustEncode(t, protocol.Declare{Decl: protocol.DeclareToken{
			ID: 7, KE: keyexpr.Expr{Suffix: "demo/alice"},
		}}),
	})

	select {
	case s := <-events:
		assert.Equal(t, "demo/alice", s.KE)
		assert.Equal(t, handler.KindPut, s.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for liveliness appear")
	}

	peer.send(t, protocol.Frame{
		ChannelKind: protocol.ChannelReliable,
		SN:          101,
		Payload:     mustEncode(t, protocol.Declare{Decl: protocol.UndeclareToken{ID: 7}}),
	})

	select {
	case s := <-events:
		assert.Equal(t, "demo/alice", s.KE)
		assert.Equal(t, handler.KindDelete, s.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for liveliness disappear")
	}
}

func TestSessionCloseWakesPendingQueryAndDropsSubscriberHandler(t *testing.T) {
	sess, peer := newSessionPair(t)
	// net.Pipe is synchronous: drain whatever the session writes so the
	// Declare and Request below do not block on an unread pipe.
	go func() {
		buf := make([]byte, 65536)
		for {
			if _, err := peer.conn.Read(context.Background(), buf); err != nil {
				return
			}
		}
	}()

	dropReason := make(chan error, 1)
	_, err := sess.DeclareSubscriber(context.Background(), "demo/**", handler.NewCallback(func(handler.Sample) {}, func(reason error) {
		dropReason <- reason
	}))
	require.NoError(t, err)

	finalCh := make(chan error, 1)
	err = sess.Get(context.Background(), "demo/query", nil, 5*time.Second, func([]byte, bool) {}, func(err error) {
		finalCh <- err
	})
	require.NoError(t, err)

	require.NoError(t, sess.Close())

	select {
	case err := <-finalCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pending query to be woken by close")
	}
	select {
	case err := <-dropReason:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscriber handler to be dropped")
	}
}
