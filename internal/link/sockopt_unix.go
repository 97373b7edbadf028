//go:build !windows

package link

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneSocket disables Nagle's algorithm and widens the receive buffer so a
// constrained-resource peer's small, frequent frames aren't held up waiting
// to coalesce (spec section 6 favors latency over throughput on the
// client-role link).
func tuneSocket(conn *net.TCPConn) error {
	if err := conn.SetNoDelay(true); err != nil {
		return err
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, rcvBufBytes)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// rcvBufBytes is sized for a few operational-state batches in flight, not
// for bulk throughput.
const rcvBufBytes = 64 * 1024
