//go:build darwin

package socket

import (
	"syscall"
)

// Darwin-specific socket options.
const (
	tcpFastOpen  = 0x105
	tcpKeepAlive = 0x10
	soNoSigPipe  = 0x1022
)

// applyPlatformOptions applies Darwin-specific socket options.
func applyPlatformOptions(fd int, cfg *Config) {
	// Prevent SIGPIPE on write to a closed socket; Linux uses
	// MSG_NOSIGNAL on send() for the same purpose instead.
	_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, soNoSigPipe, 1)

	if cfg.KeepAlive {
		_ = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, tcpKeepAlive, 60)
	}
}

// applyListenerOptions applies Darwin-specific listener options.
func applyListenerOptions(fd int, cfg *Config) error {
	if cfg.FastOpen {
		if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, tcpFastOpen, 256); err != nil {
			return err
		}
	}
	return nil
}

// SetQuickAck is a no-op on Darwin: there is no TCP_QUICKACK equivalent.
func SetQuickAck(fd int) error {
	return nil
}

// writable always reports true on Darwin: no cheap non-blocking poll
// wrapper is wired here, so the socket is always treated as having
// room and the flush coordinator never flushes early for back-pressure.
func writable(fd int) bool {
	return true
}
