// Package link implements the platform I/O collaborator transport.Link
// against a real TCP socket (spec section 6's link_open/link_read/
// link_write). Tests elsewhere in this module substitute an in-memory
// net.Pipe; this package is what a real client dials with.
package link

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/marmos91/zenopico/pkg/config"
	"github.com/marmos91/zenopico/pkg/zerr"
)

// defaultPort is the Zenoh TCP default port (spec section 6), used when a
// locator omits one.
const defaultPort = 7447

var noDeadline time.Time

// TCPLink adapts a *net.TCPConn to transport.Link. Read and Write honor
// ctx's deadline if one is set, falling back to no deadline otherwise;
// they do not otherwise observe ctx cancellation mid-call, matching
// net.Conn's own blocking-I/O contract.
type TCPLink struct {
	conn *net.TCPConn
}

// DialTCP opens a TCP connection to loc (protocol must be "tcp") and
// applies the link-layer socket tuning in sockopt_unix.go/sockopt_windows.go
// before returning.
func DialTCP(ctx context.Context, loc config.Locator) (*TCPLink, error) {
	if loc.Protocol != "tcp" {
		return nil, zerr.New(zerr.InvalidInput, "link: unsupported locator protocol for TCPLink: "+loc.Protocol)
	}

	addr := net.JoinHostPort(loc.Address, portString(loc.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, zerr.Wrap(zerr.LinkError, "link: dial failed: "+addr, err)
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, zerr.New(zerr.LinkError, "link: dialer did not return a TCP connection")
	}

	if err := tuneSocket(tcpConn); err != nil {
		tcpConn.Close()
		return nil, zerr.Wrap(zerr.LinkError, "link: socket tuning failed", err)
	}

	return &TCPLink{conn: tcpConn}, nil
}

// NewTCPLink wraps an already-accepted TCP connection, applying the same
// socket tuning a dialed link gets. Used by a listening peer.
func NewTCPLink(conn *net.TCPConn) (*TCPLink, error) {
	if err := tuneSocket(conn); err != nil {
		return nil, zerr.Wrap(zerr.LinkError, "link: socket tuning failed", err)
	}
	return &TCPLink{conn: conn}, nil
}

func (l *TCPLink) Read(ctx context.Context, buf []byte) (int, error) {
	if dl, ok := ctx.Deadline(); ok {
		if err := l.conn.SetReadDeadline(dl); err != nil {
			return 0, zerr.Wrap(zerr.LinkError, "link: set read deadline", err)
		}
	} else if err := l.conn.SetReadDeadline(noDeadline); err != nil {
		return 0, zerr.Wrap(zerr.LinkError, "link: clear read deadline", err)
	}

	n, err := l.conn.Read(buf)
	if err != nil {
		return n, zerr.Wrap(zerr.LinkError, "link: read failed", err)
	}
	return n, nil
}

func (l *TCPLink) Write(ctx context.Context, b []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		if err := l.conn.SetWriteDeadline(dl); err != nil {
			return zerr.Wrap(zerr.LinkError, "link: set write deadline", err)
		}
	} else if err := l.conn.SetWriteDeadline(noDeadline); err != nil {
		return zerr.Wrap(zerr.LinkError, "link: clear write deadline", err)
	}

	if _, err := l.conn.Write(b); err != nil {
		return zerr.Wrap(zerr.LinkError, "link: write failed", err)
	}
	return nil
}

func (l *TCPLink) Close() error {
	return l.conn.Close()
}

func portString(p uint16) string {
	if p == 0 {
		p = defaultPort
	}
	return strconv.FormatUint(uint64(p), 10)
}
