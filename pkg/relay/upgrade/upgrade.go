// Package upgrade completes a protocol switch past the point where
// pkg/relay/keepalive detaches a connection. The core's involvement
// ends the moment the switching response's head hits the wire —
// everything past that (frame read/write, ping/pong, close handshake)
// is out of scope per the core spec's Non-goals, and is handed to
// gorilla/websocket's real implementation instead of being hand-rolled
// again.
package upgrade

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/yourusername/relay/pkg/relay/http11"
	"github.com/yourusername/relay/pkg/relay/keepalive"
)

// ErrNotUpgrade is returned by Accept when the request doesn't carry
// the headers RFC 6455 §4.2.1 requires for a WebSocket handshake.
var ErrNotUpgrade = errors.New("upgrade: request is not a websocket handshake")

var (
	headerConnection = []byte("Connection")
	headerUpgrade    = []byte("Upgrade")
	headerWSKey      = []byte("Sec-WebSocket-Key")
	headerWSVersion  = []byte("Sec-WebSocket-Version")
)

// Upgrader adapts gorilla/websocket.Upgrader to the keepalive
// Request/ResponseWriter pair produced by the core, instead of
// net/http's.
type Upgrader struct {
	websocket.Upgrader
}

// NewUpgrader returns an Upgrader with the given I/O buffer sizes (0
// falls back to gorilla's own defaults) and origin check.
func NewUpgrader(readBufSize, writeBufSize int, checkOrigin func(r *http.Request) bool) *Upgrader {
	return &Upgrader{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufSize,
			WriteBufferSize: writeBufSize,
			CheckOrigin:     checkOrigin,
		},
	}
}

// IsUpgradeRequest reports whether req is a well-formed WebSocket
// handshake request per RFC 6455 §4.2.1.
func IsUpgradeRequest(req *keepalive.Request) bool {
	h := req.Header()
	return tokenPresent(h.Get(headerConnection), "upgrade") &&
		tokenPresent(h.Get(headerUpgrade), "websocket") &&
		len(h.Get(headerWSKey)) > 0 &&
		string(h.Get(headerWSVersion)) == "13"
}

// Accept detaches w's connection from the core and completes the
// WebSocket handshake on it, returning the live *websocket.Conn. The
// Handler must not touch req or w again once Accept returns — win or
// lose, the connection no longer belongs to the core.
func (u *Upgrader) Accept(req *keepalive.Request, w *keepalive.ResponseWriter, responseHeader http.Header) (*websocket.Conn, error) {
	if !IsUpgradeRequest(req) {
		return nil, ErrNotUpgrade
	}

	det, err := w.Detach()
	if err != nil {
		return nil, err
	}

	hr := buildHandshakeRequest(req)
	shim := &hijackShim{conn: det.Conn, reader: det.Reader}

	conn, err := u.Upgrade(shim, hr, responseHeader)
	if err != nil {
		det.Conn.Close()
		return nil, err
	}
	return conn, nil
}

func buildHandshakeRequest(req *keepalive.Request) *http.Request {
	hr := &http.Request{
		Method:     req.Method(),
		Proto:      req.Proto(),
		Header:     make(http.Header),
		URL:        &url.URL{Path: req.Path(), RawQuery: req.Query()},
		RequestURI: req.Path(),
	}
	req.Header().VisitAll(func(name, value []byte) bool {
		hr.Header.Add(string(name), string(value))
		return true
	})
	hr.Host = hr.Header.Get("Host")
	return hr
}

func tokenPresent(value []byte, token string) bool {
	if value == nil {
		return false
	}
	return http11.HeaderTokenContains(value, token)
}

// hijackShim lets gorilla/websocket.Upgrader.Upgrade (which demands an
// http.ResponseWriter implementing http.Hijacker) operate on the raw
// connection the core already detached — gorilla writes its own
// handshake response straight onto the hijacked net.Conn and only
// falls back to Write/WriteHeader on the shim for its own error
// responses, which is the only path those two methods need to support.
type hijackShim struct {
	conn   net.Conn
	reader *bufio.Reader
	status int
	header http.Header
}

func (s *hijackShim) Header() http.Header {
	if s.header == nil {
		s.header = make(http.Header)
	}
	return s.header
}

func (s *hijackShim) Write(p []byte) (int, error) {
	return s.conn.Write(p)
}

func (s *hijackShim) WriteHeader(statusCode int) {
	s.status = statusCode
}

func (s *hijackShim) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	bw := bufio.NewWriter(s.conn)
	return s.conn, bufio.NewReadWriter(s.reader, bw), nil
}
