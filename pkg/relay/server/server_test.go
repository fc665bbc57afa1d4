package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/relay/pkg/relay/keepalive"
)

func silentConfig() Config {
	cfg := DefaultConfig()
	logger := logrus.New()
	logger.Out = io.Discard
	cfg.Logger = logger
	cfg.Keepalive = keepalive.DefaultConfig()
	cfg.Keepalive.Logger = logger
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.ShutdownGracePeriod != 10*time.Second {
		t.Errorf("ShutdownGracePeriod = %v, want 10s", cfg.ShutdownGracePeriod)
	}
	if cfg.Logger == nil {
		t.Error("Logger should default to a non-nil logger")
	}
}

func TestServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	handler := func(op *keepalive.Operation, req *keepalive.Request, w *keepalive.ResponseWriter) error {
		return w.WriteFull(200, []byte("pong"))
	}

	srv := New(silentConfig(), handler, nil)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}

	br := bufio.NewReader(conn)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if line[:12] != "HTTP/1.1 200" {
		t.Fatalf("status line = %q, want HTTP/1.1 200 ...", line)
	}

	if got := srv.Stats().TotalConnections.Load(); got != 1 {
		t.Errorf("TotalConnections = %d, want 1", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("Serve returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestMaxConcurrentConnectionsGates(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	block := make(chan struct{})
	handler := func(op *keepalive.Operation, req *keepalive.Request, w *keepalive.ResponseWriter) error {
		<-block
		return w.WriteFull(200, []byte("ok"))
	}

	cfg := silentConfig()
	cfg.MaxConcurrentConnections = 1
	srv := New(cfg, handler, nil)

	go srv.Serve(ln)
	defer func() {
		close(block)
		srv.Close()
	}()

	first, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer first.Close()
	if _, err := first.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.Stats().ActiveConnections.Load() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := srv.Stats().ActiveConnections.Load(); got != 1 {
		t.Fatalf("ActiveConnections = %d, want 1 before a second connection is gated in", got)
	}

	second, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()
	time.Sleep(100 * time.Millisecond)
	if got := srv.Stats().TotalConnections.Load(); got != 1 {
		t.Fatalf("TotalConnections = %d, want 1 while the first connection holds the only slot", got)
	}
}
