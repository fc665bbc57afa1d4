// Package server accepts TCP (and TLS) connections and hands each one
// to a keepalive.Connection, the same lifecycle-harness role
// shockwave/pkg/shockwave/server plays for http11.Connection.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/relay/pkg/relay/keepalive"
	"github.com/yourusername/relay/pkg/relay/socket"
)

// Config holds server-level configuration — connection tuning lives in
// keepalive.Config, passed through unchanged to every accepted
// connection; Config only adds what's above a single connection's
// concern (listen address, TLS, concurrency caps, socket tuning).
type Config struct {
	// Addr is the TCP address to listen on (e.g. ":8080").
	Addr string

	// Keepalive is passed to every keepalive.Connection this server
	// creates. Nil means keepalive.DefaultConfig().
	Keepalive *keepalive.Config

	// TLSConfig, if set, makes ListenAndServe terminate TLS on accept.
	TLSConfig *tls.Config

	// Socket is the per-connection/listener tuning applied via
	// pkg/relay/socket. Nil means socket.DefaultConfig().
	Socket *socket.Config

	// MaxConcurrentConnections caps connections in flight. 0 means
	// unlimited.
	MaxConcurrentConnections int

	// ShutdownGracePeriod defaults to 10s in New but is not consulted
	// by Shutdown, whose wait is bounded only by its ctx argument.
	ShutdownGracePeriod time.Duration

	Logger *logrus.Logger
}

// DefaultConfig returns sane defaults for Config.
func DefaultConfig() Config {
	return Config{
		Addr:                ":8080",
		ShutdownGracePeriod: 10 * time.Second,
		Logger:              logrus.StandardLogger(),
	}
}

// Stats mirrors the counters shockwave/server.Stats exposes, trimmed to
// what this server can report without reaching into per-connection
// state owned exclusively by each connection's executor goroutine.
type Stats struct {
	TotalConnections  atomic.Uint64
	ActiveConnections atomic.Int64
	ConnectionErrors  atomic.Uint64
	HandlerErrors     atomic.Uint64
	StartTime         time.Time
}

func (s *Stats) Duration() time.Duration { return time.Since(s.StartTime) }

// Server accepts connections and serves them with keepalive.Connection.
type Server struct {
	config  Config
	handler keepalive.Handler

	observer keepalive.PipelineObserver

	stats Stats

	mu       sync.Mutex
	listener net.Listener
	conns    map[*keepalive.Connection]net.Conn

	shutdown atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup

	connSem chan struct{}
}

// New constructs a Server. observer may be nil (keepalive.NopObserver{}
// is substituted) — pass a *metrics.Collector to instrument it.
func New(config Config, handler keepalive.Handler, observer keepalive.PipelineObserver) *Server {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.Keepalive == nil {
		config.Keepalive = keepalive.DefaultConfig()
	}
	if config.Socket == nil {
		config.Socket = socket.DefaultConfig()
	}
	if config.ShutdownGracePeriod == 0 {
		config.ShutdownGracePeriod = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	s := &Server{
		config:   config,
		handler:  handler,
		observer: observer,
		done:     make(chan struct{}),
		conns:    make(map[*keepalive.Connection]net.Conn),
	}
	s.stats.StartTime = time.Now()

	if config.MaxConcurrentConnections > 0 {
		s.connSem = make(chan struct{}, config.MaxConcurrentConnections)
	}
	return s
}

// Stats returns the server's running counters.
func (s *Server) Stats() *Stats { return &s.stats }

// ListenAndServe listens on Config.Addr and serves requests, terminating
// TLS first if Config.TLSConfig is set.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.config.Addr, err)
	}
	if s.config.TLSConfig != nil {
		ln = tls.NewListener(ln, s.config.TLSConfig)
	}
	return s.Serve(ln)
}

// Serve accepts connections on l until Shutdown/Close is called.
func (s *Server) Serve(l net.Listener) error {
	if err := socket.ApplyListener(l, s.config.Socket); err != nil {
		s.config.Logger.WithError(err).Warn("server: listener tuning failed, continuing with defaults")
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	defer l.Close()

	for {
		if s.shutdown.Load() {
			return nil
		}

		if s.connSem != nil {
			select {
			case s.connSem <- struct{}{}:
			case <-s.done:
				return nil
			}
		}

		conn, err := l.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			s.stats.ConnectionErrors.Add(1)
			if s.connSem != nil {
				<-s.connSem
			}
			continue
		}

		s.stats.TotalConnections.Add(1)
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(netConn net.Conn) {
	defer s.wg.Done()
	// keepalive.Connection.Serve closes netConn itself unless a Handler
	// detached it, in which case the socket belongs to the new owner.
	if s.connSem != nil {
		defer func() { <-s.connSem }()
	}

	if _, tlsConn := netConn.(*tls.Conn); !tlsConn {
		if err := socket.Apply(netConn, s.config.Socket); err != nil {
			s.config.Logger.WithError(err).Debug("server: connection tuning failed")
		}
	}

	c := keepalive.New(netConn, s.config.Keepalive, s.handler, s.observer)

	s.mu.Lock()
	s.conns[c] = netConn
	s.mu.Unlock()
	s.stats.ActiveConnections.Add(1)

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		s.stats.ActiveConnections.Add(-1)
	}()

	if err := c.Serve(); err != nil {
		s.stats.HandlerErrors.Add(1)
	}
}

// Shutdown stops accepting new connections and waits for in-flight
// connections to close on their own, bounded by ctx. If ctx expires
// first, it closes every tracked connection and returns ctx's error.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()
	close(s.done)

	g, gctx := errgroup.WithContext(ctx)
	waitDone := make(chan struct{})
	g.Go(func() error {
		s.wg.Wait()
		close(waitDone)
		return nil
	})

	select {
	case <-waitDone:
		return g.Wait()
	case <-gctx.Done():
		s.closeAllConnections()
		return gctx.Err()
	}
}

// Close immediately closes the listener and every tracked connection.
func (s *Server) Close() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()
	close(s.done)

	s.closeAllConnections()
	s.wg.Wait()
	return nil
}

func (s *Server) closeAllConnections() {
	s.mu.Lock()
	netConns := make([]net.Conn, 0, len(s.conns))
	for _, nc := range s.conns {
		netConns = append(netConns, nc)
	}
	s.mu.Unlock()

	for _, nc := range netConns {
		nc.Close()
	}
}
