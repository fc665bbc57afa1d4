// Package socket provides cross-platform socket tuning and the
// non-blocking writability probe consumed by the flush coordinator's
// back-pressure check (LAST_FLUSH_WHEN_NO_READ mode).
//
// Platform-specific optimizations are in tuning_linux.go, tuning_darwin.go
// and tuning_other.go.
package socket

import (
	"net"
	"syscall"
)

// Config represents socket tuning configuration.
// Zero values mean "use system defaults".
type Config struct {
	// NoDelay disables Nagle's algorithm for low latency.
	// Default: true (recommended for HTTP/1.1).
	NoDelay bool

	// RecvBuffer is the SO_RCVBUF size in bytes. 0 = system default.
	RecvBuffer int

	// SendBuffer is the SO_SNDBUF size in bytes. 0 = system default.
	SendBuffer int

	// QuickAck sends immediate ACKs (Linux only).
	QuickAck bool

	// DeferAccept avoids waking the server until data arrives (Linux only).
	DeferAccept bool

	// FastOpen enables TCP Fast Open (Linux 3.7+, Darwin 10.11+).
	FastOpen bool

	// KeepAlive enables TCP keepalive.
	KeepAlive bool
}

// DefaultConfig returns the recommended configuration for HTTP workloads.
func DefaultConfig() *Config {
	return &Config{
		NoDelay:     true,
		RecvBuffer:  256 * 1024,
		SendBuffer:  256 * 1024,
		QuickAck:    true,
		DeferAccept: true,
		FastOpen:    true,
		KeepAlive:   true,
	}
}

// Apply applies socket tuning options to an accepted connection.
// Non-critical, platform-specific options are applied best-effort.
func Apply(conn net.Conn, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}

	var lastErr error
	err = rawConn.Control(func(fd uintptr) {
		if cfg.NoDelay {
			if err := syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
				lastErr = err
				return
			}
		}
		if cfg.RecvBuffer > 0 {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, cfg.RecvBuffer)
		}
		if cfg.SendBuffer > 0 {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_SNDBUF, cfg.SendBuffer)
		}
		if cfg.KeepAlive {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, 1)
		}
		applyPlatformOptions(int(fd), cfg)
	})
	if err != nil {
		return err
	}
	return lastErr
}

// ApplyListener applies options that must be set on the listening socket
// (TCP_DEFER_ACCEPT, TCP_FASTOPEN) before Accept is called.
func ApplyListener(listener net.Listener, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		return nil
	}

	file, err := tcpListener.File()
	if err != nil {
		return err
	}
	defer file.Close()

	return applyListenerOptions(int(file.Fd()), cfg)
}
