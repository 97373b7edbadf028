package link

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/zenopico/pkg/config"
)

func listenLoopback(t *testing.T) *net.TCPListener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln.(*net.TCPListener)
}

func TestDialTCPRoundTrips(t *testing.T) {
	ln := listenLoopback(t)
	addr := ln.Addr().(*net.TCPAddr)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		require.NoError(t, err)
		accepted <- conn
	}()

	loc := config.Locator{Protocol: "tcp", Address: "127.0.0.1", Port: uint16(addr.Port)}
	l, err := DialTCP(context.Background(), loc)
	require.NoError(t, err)
	defer l.Close()

	server := <-accepted
	defer server.Close()

	ctx := context.Background()
	require.NoError(t, l.Write(ctx, []byte("hello")))

	buf := make([]byte, 16)
	n, err := readFrom(server, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	_, err = server.Write([]byte("world"))
	require.NoError(t, err)

	readBuf := make([]byte, 16)
	n, err = l.Read(ctx, readBuf)
	require.NoError(t, err)
	assert.Equal(t, "world", string(readBuf[:n]))
}

func readFrom(conn net.Conn, buf []byte) (int, error) {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn.Read(buf)
}

func TestDialTCPRejectsNonTCPProtocol(t *testing.T) {
	_, err := DialTCP(context.Background(), config.Locator{Protocol: "ws", Address: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}

func TestDialTCPFailsOnUnreachableAddress(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// A non-routable TEST-NET-1 address with no listener: the dial should
	// fail once ctx's deadline passes.
	_, err := DialTCP(ctx, config.Locator{Protocol: "tcp", Address: "192.0.2.1", Port: 7447})
	assert.Error(t, err)
}

func TestTCPLinkWriteHonorsContextDeadline(t *testing.T) {
	ln := listenLoopback(t)
	addr := ln.Addr().(*net.TCPAddr)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		require.NoError(t, err)
		accepted <- conn
	}()

	loc := config.Locator{Protocol: "tcp", Address: "127.0.0.1", Port: uint16(addr.Port)}
	l, err := DialTCP(context.Background(), loc)
	require.NoError(t, err)
	defer l.Close()
	<-accepted

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(time.Hour))
	defer cancel()
	require.NoError(t, l.Write(ctx, []byte("ping")))
}

func TestNewTCPLinkWrapsAcceptedConnection(t *testing.T) {
	ln := listenLoopback(t)
	addr := ln.Addr().(*net.TCPAddr)

	clientDone := make(chan struct{})
	go func() {
		conn, err := net.Dial("tcp", addr.String())
		require.NoError(t, err)
		defer conn.Close()
		conn.Write([]byte("hi"))
		close(clientDone)
	}()

	conn, err := ln.Accept()
	require.NoError(t, err)
	l, err := NewTCPLink(conn.(*net.TCPConn))
	require.NoError(t, err)
	defer l.Close()

	buf := make([]byte, 8)
	n, err := l.Read(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf[:n]))
	<-clientDone
}
