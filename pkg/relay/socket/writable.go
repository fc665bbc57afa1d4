package socket

import "net"

// Writable reports whether conn can currently accept a write without
// blocking. The keepalive flush coordinator calls this in
// LAST_FLUSH_WHEN_NO_READ mode: a writable socket lets it coalesce a
// flush with a later one, while a socket without room (back-pressure)
// is flushed immediately.
//
// On platforms without a cheap non-blocking probe, and for connections
// that are not *net.TCPConn, this always returns true, so the
// coordinator never flushes early for back-pressure there.
func Writable(conn net.Conn) bool {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return true
	}

	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return true
	}

	result := true
	_ = rawConn.Control(func(fd uintptr) {
		result = writable(int(fd))
	})
	return result
}
