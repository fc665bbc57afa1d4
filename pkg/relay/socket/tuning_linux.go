//go:build linux

package socket

import (
	"golang.org/x/sys/unix"
)

// applyPlatformOptions applies Linux-specific socket options using
// golang.org/x/sys/unix rather than the raw syscall package, so the
// constants stay correct across architectures without hand-maintained
// numeric fallbacks.
func applyPlatformOptions(fd int, cfg *Config) {
	// TCP_QUICKACK is not sticky: it is cleared after the next ACK, so
	// this is a best-effort setting at accept time only. A connection
	// that wants persistent QuickACK behavior must call SetQuickAck
	// again after each Read.
	if cfg.QuickAck {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
	}

	// Detect dead peers faster than the OS default.
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, 10000)

	if cfg.KeepAlive {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, 60)
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, 10)
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, 3)
	}
}

// applyListenerOptions applies Linux-specific listener-time options.
func applyListenerOptions(fd int, cfg *Config) error {
	var lastErr error

	if cfg.DeferAccept {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, 5); err != nil {
			lastErr = err
		}
	}

	if cfg.FastOpen {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN, 256); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// SetQuickAck re-arms TCP_QUICKACK on a raw file descriptor. Call this
// after each Read when persistent QuickACK behavior is required.
func SetQuickAck(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
}

// writable reports whether a write to fd would currently succeed
// without blocking, by polling it for POLLOUT with a zero timeout. Used by the flush coordinator's
// back-pressure check in LAST_FLUSH_WHEN_NO_READ mode.
func writable(fd int) bool {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(fds, 0)
	if err != nil {
		// Treat poll failure as writable, the same answer platforms
		// without a probe give.
		return true
	}
	return n > 0 && fds[0].Revents&unix.POLLOUT != 0
}
