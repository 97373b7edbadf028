package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/zenopico/pkg/keyexpr"
	"github.com/marmos91/zenopico/pkg/protocol"
	"github.com/marmos91/zenopico/pkg/wire"
)

// testPeer plays the router/peer side of the handshake over a net.Pipe
// conn: it answers InitSyn/OpenSyn and lets the test drive arbitrary
// messages afterward.
type testPeer struct {
	conn *pipeLink
	dec  protocol.StreamDecoder
}

func newTestPeer(conn net.Conn) *testPeer {
	return &testPeer{conn: newPipeLink(conn)}
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

func clientZID(t *testing.T) wire.ZenohID {
	t.Helper()
	zid, err := wire.NewZenohID([]byte{0x01})
	require.NoError(t, err)
	return zid
}

func peerZID(t *testing.T) wire.ZenohID {
	t.Helper()
	zid, err := wire.NewZenohID([]byte{0x02})
	require.NoError(t, err)
	return zid
}

func defaultConfig(t *testing.T) Config {
	return Config{
		Version:                    8,
		ZID:                        clientZID(t),
		BatchSize:                  4096,
		LeaseMs:                    200,
		SNResolution:               protocol.Resolution32,
		RequestResolution:          protocol.Resolution32,
		FragmentReassemblyMaxBytes: 1 << 20,
	}
}

// handshakeOnPeer drives the peer side of S2 (spec scenario S2) and returns
// once OpenAck has been sent.
func handshakeOnPeer(t *testing.T, peer *testPeer, cookie []byte) {
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
		Cookie:            cookie,
	})

	openMsg := peer.readOne(t)
	open, ok := openMsg.(protocol.OpenSyn)
	require.True(t, ok)
	assert.Equal(t, cookie, open.Cookie)

	peer.send(t, protocol.OpenAck{LeaseMs: 10000, InitialSN: 100})
}

func TestOpenHandshakeScenarioS2(t *testing.T) {
	clientConn, peerConn := net.Pipe()
	defer clientConn.Close()
	defer peerConn.Close()

	peer := newTestPeer(peerConn)
	done := make(chan struct{})
	go func() {
		defer close(done)
		handshakeOnPeer(t, peer, []byte{0xC0, 0x0C, 0x1E})
	}()

	var dispatched [][]protocol.NetworkMessage
	dispatch := func(msgs []protocol.NetworkMessage) { dispatched = append(dispatched, msgs) }

	cfg := defaultConfig(t)
	sess, err := Open(context.Background(), newPipeLink(clientConn), cfg, dispatch, nil)
	require.NoError(t, err)
	<-done

	assert.Equal(t, StateOperational, sess.State())
	assert.True(t, sess.PeerZID().Equal(peerZID(t)))
	defer sess.Close(protocol.CloseGeneric)
}

func TestSendDeliversSingleFrame(t *testing.T) {
	clientConn, peerConn := net.Pipe()
	defer clientConn.Close()
	defer peerConn.Close()

	peer := newTestPeer(peerConn)
	go handshakeOnPeer(t, peer, nil)

	cfg := defaultConfig(t)
	sess, err := Open(context.Background(), newPipeLink(clientConn), cfg, func([]protocol.NetworkMessage) {}, nil)
	require.NoError(t, err)
	defer sess.Close(protocol.CloseGeneric)

	push := protocol.Push{KE: keyexpr.Expr{Suffix: "demo/example/a"}, Kind: protocol.PushPut, Payload: []byte("hi")}
	err = sess.Send(context.Background(), protocol.ChannelReliable, []protocol.NetworkMessage{push})
	require.NoError(t, err)

	frameMsg := peer.readOne(t)
	frame, ok := frameMsg.(protocol.Frame)
	require.True(t, ok)
	assert.Equal(t, protocol.ChannelReliable, frame.ChannelKind)

	got, err := protocol.DecodeNetworkMessages(frame.Payload)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, push, got[0])
}

func TestSendFragmentsOversizedPayload(t *testing.T) {
	clientConn, peerConn := net.Pipe()
	defer clientConn.Close()
	defer peerConn.Close()

	peer := newTestPeer(peerConn)
	go handshakeOnPeer(t, peer, nil)

	cfg := defaultConfig(t)
	cfg.BatchSize = 64 // force fragmentation of a payload well under 1MB
	sess, err := Open(context.Background(), newPipeLink(clientConn), cfg, func([]protocol.NetworkMessage) {}, nil)
	require.NoError(t, err)
	defer sess.Close(protocol.CloseGeneric)

	payload := make([]byte, 500)
	for i := range payload {
		payload[i] = byte(i)
	}
	push := protocol.Push{KE: keyexpr.Expr{Suffix: "demo/big"}, Kind: protocol.PushPut, Payload: payload}

	err = sess.Send(context.Background(), protocol.ChannelReliable, []protocol.NetworkMessage{push})
	require.NoError(t, err)

	var fragments []protocol.Fragment
	for {
		m := peer.readOne(t)
		frag, ok := m.(protocol.Fragment)
		require.True(t, ok)
		fragments = append(fragments, frag)
		if !frag.More {
			break
		}
	}
	require.Greater(t, len(fragments), 1)

	reassembled := make([]byte, 0, 700)
	for _, f := range fragments {
		reassembled = append(reassembled, f.Payload...)
	}
	got, err := protocol.DecodeNetworkMessages(reassembled)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, push, got[0])
}

// TestReceiveReassemblesFragments is spec section 8 property 9 from the
// receiving side: fragments sent by the peer are reassembled identically.
func TestReceiveReassemblesFragments(t *testing.T) {
	clientConn, peerConn := net.Pipe()
	defer clientConn.Close()
	defer peerConn.Close()

	peer := newTestPeer(peerConn)
	go handshakeOnPeer(t, peer, nil)

	received := make(chan []protocol.NetworkMessage, 1)
	cfg := defaultConfig(t)
	sess, err := Open(context.Background(), newPipeLink(clientConn), cfg, func(msgs []protocol.NetworkMessage) {
		received <- msgs
	}, nil)
	require.NoError(t, err)
	defer sess.Close(protocol.CloseGeneric)

	ke := keyexpr.Expr{Suffix: "demo/fragmented"}
	push := protocol.Push{KE: ke, Kind: protocol.PushPut, Payload: []byte("reassembled payload content")}
	payload, err := protocol.EncodeNetworkMessages([]protocol.NetworkMessage{push})
	require.NoError(t, err)

	const chunk = 7
	sn := uint64(100) // matches the InitialSN OpenAck reported
	for off := 0; off < len(payload); off += chunk {
		end := off + chunk
		more := true
		if end >= len(payload) {
			end = len(payload)
			more = false
		}
		peer.send(t, protocol.Fragment{ChannelKind: protocol.ChannelReliable, SN: sn, More: more, Payload: payload[off:end]})
		sn++
	}

	select {
	case msgs := <-received:
		require.Len(t, msgs, 1)
		assert.Equal(t, push, msgs[0])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reassembled dispatch")
	}
}

func TestDuplicateReliableSNClosesSession(t *testing.T) {
	clientConn, peerConn := net.Pipe()
	defer clientConn.Close()
	defer peerConn.Close()

	peer := newTestPeer(peerConn)
	go handshakeOnPeer(t, peer, nil)

	cfg := defaultConfig(t)
	sess, err := Open(context.Background(), newPipeLink(clientConn), cfg, func([]protocol.NetworkMessage) {}, nil)
	require.NoError(t, err)

	ke := keyexpr.Expr{Suffix: "demo/a"}
	payload, err := protocol.EncodeNetworkMessages([]protocol.NetworkMessage{protocol.Push{KE: ke, Kind: protocol.PushDel}})
	require.NoError(t, err)

	peer.send(t, protocol.Frame{ChannelKind: protocol.ChannelReliable, SN: 100, Payload: payload})
	peer.send(t, protocol.Frame{ChannelKind: protocol.ChannelReliable, SN: 100, Payload: payload}) // duplicate

	require.Eventually(t, func() bool {
		return sess.State() == StateClosed
	}, 2*time.Second, 10*time.Millisecond)
}
