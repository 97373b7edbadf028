//go:build windows

package link

import "net"

// tuneSocket disables Nagle's algorithm. Windows has no portable
// syscall.RawConn sockopt path as simple as SO_RCVBUF via unix, so only the
// cross-platform net.TCPConn knob is applied here.
func tuneSocket(conn *net.TCPConn) error {
	return conn.SetNoDelay(true)
}
