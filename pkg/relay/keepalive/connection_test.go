package keepalive

import (
	"bufio"
	"io"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// testClient wraps the client half of a net.Pipe with a bufio.Reader so
// tests can read back status lines/headers the way a real peer would.
type testClient struct {
	conn net.Conn
	br   *bufio.Reader
}

func newTestPair(t *testing.T, handler Handler, configure func(*Config)) (*testClient, *Connection, chan error) {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	cfg := DefaultConfig()
	cfg.ReadTimeout = 0
	cfg.IdleTimeout = 0
	silentLogger := logrus.New()
	silentLogger.Out = io.Discard
	cfg.Logger = silentLogger
	if configure != nil {
		configure(cfg)
	}

	c := New(serverConn, cfg, handler, NopObserver{})
	done := make(chan error, 1)
	go func() { done <- c.Serve() }()

	return &testClient{conn: clientConn, br: bufio.NewReader(clientConn)}, c, done
}

func (tc *testClient) send(t *testing.T, raw string) {
	t.Helper()
	if _, err := tc.conn.Write([]byte(raw)); err != nil {
		t.Fatalf("client write: %v", err)
	}
}

// readResponse reads a single status line + header block, returning the
// status code and headers. It does not consume any body — callers that
// care about body bytes read them separately via tc.br.
func (tc *testClient) readResponse(t *testing.T) (int, textproto.MIMEHeader) {
	t.Helper()
	tc.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer tc.conn.SetReadDeadline(time.Time{})

	statusLine, err := tc.br.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	parts := strings.SplitN(strings.TrimSpace(statusLine), " ", 3)
	if len(parts) < 2 {
		t.Fatalf("malformed status line %q", statusLine)
	}
	var status int
	for _, c := range parts[1] {
		if c < '0' || c > '9' {
			t.Fatalf("malformed status code in %q", statusLine)
		}
		status = status*10 + int(c-'0')
	}

	tp := textproto.NewReader(tc.br)
	hdr, err := tp.ReadMIMEHeader()
	if err != nil && len(hdr) == 0 {
		t.Fatalf("read headers: %v", err)
	}
	return status, hdr
}

func echoHandler(op *Operation, req *Request, w *ResponseWriter) error {
	return w.WriteFull(200, []byte("ok"))
}

func TestTwoPipelinedRequestsStayPersistent(t *testing.T) {
	tc, _, done := newTestPair(t, echoHandler, nil)
	defer tc.conn.Close()

	tc.send(t, "GET /a HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n"+
		"GET /b HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n")

	status1, hdr1 := tc.readResponse(t)
	if status1 != 200 {
		t.Fatalf("first response status = %d, want 200", status1)
	}
	if got := hdr1.Get("Connection"); strings.EqualFold(got, "close") {
		t.Fatalf("first response Connection header = %q, want not close", got)
	}
	drainBody(t, tc, hdr1)

	status2, hdr2 := tc.readResponse(t)
	if status2 != 200 {
		t.Fatalf("second response status = %d, want 200", status2)
	}
	if got := hdr2.Get("Connection"); strings.EqualFold(got, "close") {
		t.Fatalf("second response Connection header = %q, want not close", got)
	}

	tc.conn.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after client closed")
	}
}

func TestHTTP10DefaultsToNonPersistent(t *testing.T) {
	tc, _, done := newTestPair(t, echoHandler, nil)
	defer tc.conn.Close()

	tc.send(t, "GET / HTTP/1.0\r\nHost: x\r\n\r\n")

	status, hdr := tc.readResponse(t)
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if got := hdr.Get("Connection"); !strings.EqualFold(got, "close") {
		t.Fatalf("Connection header = %q, want close (HTTP/1.0 defaults non-persistent)", got)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not close itself after an HTTP/1.0 response")
	}
}

func TestHTTP10KeepAliveHeaderStaysPersistent(t *testing.T) {
	tc, _, done := newTestPair(t, echoHandler, nil)
	defer tc.conn.Close()

	tc.send(t, "GET / HTTP/1.0\r\nHost: x\r\nConnection: keep-alive\r\n\r\n")

	status, hdr := tc.readResponse(t)
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if got := hdr.Get("Connection"); strings.EqualFold(got, "close") {
		t.Fatalf("Connection header = %q, want not close (explicit keep-alive)", got)
	}

	tc.conn.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after client closed")
	}
}

func TestMaxKeepAliveRequestsForcesClose(t *testing.T) {
	tc, _, done := newTestPair(t, echoHandler, func(cfg *Config) {
		cfg.MaxKeepAliveRequests = 1
	})
	defer tc.conn.Close()

	tc.send(t, "GET /a HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n")

	status, hdr := tc.readResponse(t)
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if got := hdr.Get("Connection"); !strings.EqualFold(got, "close") {
		t.Fatalf("Connection header = %q, want close at the request-count limit", got)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not close itself once the request limit was hit")
	}
}

// bufferObserver captures the Overflow()/PendingResponses() values at
// the moment a request is deferred into the pipeline queue, so the
// test can assert on §3's accounting without racing the executor
// goroutine that owns those fields.
type bufferObserver struct {
	NopObserver
	buffered chan struct{}
	overflow bool
	pending  int
}

func (o *bufferObserver) OnPipelineBuffered(c *Connection, depth int) {
	o.overflow = c.Overflow()
	o.pending = c.PendingResponses()
	close(o.buffered)
}

func TestSecondPipelinedRequestSetsOverflowImmediately(t *testing.T) {
	release := make(chan struct{})
	handler := func(op *Operation, req *Request, w *ResponseWriter) error {
		if op.RequestNumber == 1 {
			<-release
		}
		return w.WriteFull(200, []byte("ok"))
	}

	obs := &bufferObserver{buffered: make(chan struct{})}
	clientConn, serverConn := net.Pipe()
	cfg := DefaultConfig()
	cfg.ReadTimeout = 0
	cfg.IdleTimeout = 0
	silentLogger := logrus.New()
	silentLogger.Out = io.Discard
	cfg.Logger = silentLogger

	c := New(serverConn, cfg, handler, obs)
	done := make(chan error, 1)
	go func() { done <- c.Serve() }()
	tc := &testClient{conn: clientConn, br: bufio.NewReader(clientConn)}
	defer tc.conn.Close()

	// Two pipelined requests, the second arriving while the first is
	// still blocked in the Handler — this is §8 scenario 1 ("pipelined
	// two GETs"), the very first deferral.
	tc.send(t, "GET /a HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n"+
		"GET /b HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n")

	select {
	case <-obs.buffered:
	case <-time.After(5 * time.Second):
		t.Fatal("second request was never buffered")
	}
	if !obs.overflow {
		t.Error("overflow should already be true on the first deferral (q=1), not only from the second")
	}
	if obs.pending != 2 {
		t.Errorf("pendingResponses at first deferral = %d, want 2", obs.pending)
	}

	close(release)
	_, hdr1 := tc.readResponse(t)
	drainBody(t, tc, hdr1)
	tc.readResponse(t)

	tc.conn.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after client closed")
	}
}

func TestHandlerErrorStillFinishesResponse(t *testing.T) {
	handler := func(op *Operation, req *Request, w *ResponseWriter) error {
		return errTestHandler
	}
	tc, _, done := newTestPair(t, handler, nil)
	defer tc.conn.Close()

	tc.send(t, "GET / HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n")

	status, _ := tc.readResponse(t)
	if status != 200 {
		t.Fatalf("status = %d, want 200 (the connection's job is to finish the response, not translate the error)", status)
	}

	tc.conn.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after client closed")
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	handler := func(op *Operation, req *Request, w *ResponseWriter) error {
		panic("boom")
	}
	tc, _, done := newTestPair(t, handler, nil)
	defer tc.conn.Close()

	tc.send(t, "GET / HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n")

	status, _ := tc.readResponse(t)
	if status != 200 {
		t.Fatalf("status = %d, want 200 (Finish is called on the Handler's behalf after the panic is recovered)", status)
	}

	tc.conn.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after a recovered handler panic")
	}
}

// drainBody consumes a response body of the length declared in hdr's
// Content-Length, if any, so the next readResponse starts at the next
// status line.
func drainBody(t *testing.T, tc *testClient, hdr textproto.MIMEHeader) {
	t.Helper()
	cl := hdr.Get("Content-Length")
	if cl == "" {
		return
	}
	n := 0
	for _, c := range cl {
		if c < '0' || c > '9' {
			return
		}
		n = n*10 + int(c-'0')
	}
	if n == 0 {
		return
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(tc.br, buf); err != nil {
		t.Fatalf("drain body: %v", err)
	}
}

var errTestHandler = errHandlerSentinel("handler failed deliberately")

type errHandlerSentinel string

func (e errHandlerSentinel) Error() string { return string(e) }
