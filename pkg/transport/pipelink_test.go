package transport

import (
	"context"
	"net"
	"time"
)

var noDeadline time.Time

// pipeLink adapts a net.Conn (as produced by net.Pipe) to the Link
// interface, so the state machine can be exercised against an in-memory
// peer instead of a real socket.
type pipeLink struct {
	conn net.Conn
}

func newPipeLink(conn net.Conn) *pipeLink {
	return &pipeLink{conn: conn}
}

func (p *pipeLink) Read(ctx context.Context, buf []byte) (int, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = p.conn.SetReadDeadline(dl)
	} else {
		_ = p.conn.SetReadDeadline(noDeadline)
	}
	return p.conn.Read(buf)
}

func (p *pipeLink) Write(ctx context.Context, b []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = p.conn.SetWriteDeadline(dl)
	} else {
		_ = p.conn.SetWriteDeadline(noDeadline)
	}
	_, err := p.conn.Write(b)
	return err
}

func (p *pipeLink) Close() error { return p.conn.Close() }
