package keepalive

import (
	"bytes"
	"net"

	"github.com/yourusername/relay/pkg/relay/http11"
)

// ConnectionState is the coarse, externally-observable state of a
// connection, exposed for metrics and introspection the way the
// teacher's http11.ConnectionState enum was — it plays no part in the
// dispatch/shaper decision logic itself, which works off connState's
// finer-grained fields below.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateServing
	StateBuffering
	StateClosing
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateServing:
		return "serving"
	case StateBuffering:
		return "buffering"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// connState is the per-connection state machine of §3/§4. Every field
// here is touched exclusively by the executor goroutine (§5) — the
// single-writer discipline that, in the Java original, came for free
// from the event loop and here comes from routing all reads and writes
// through one goroutine's channel select.
type connState struct {
	// pendingResponses counts accepted requests — dispatched to the
	// Handler or still buffered in the pipeline queue — whose
	// LastContent has not yet been written.
	pendingResponses int

	// persistentConnection reflects the negotiated keep-alive outcome
	// for the request currently being served (§4.C). It is re-evaluated
	// on every RequestHead and consulted by the shaper on every
	// response's LastContent.
	persistentConnection bool

	// overflow is set as soon as a request is buffered in the pipeline
	// queue awaiting dispatch (§3), and cleared when a drain empties it.
	overflow bool

	// nonInformationalResponse remembers whether the response under
	// construction is a non-1xx (a "real" final response) — a 1xx
	// interim response doesn't decrement pendingResponses or consume a
	// pipeline slot (§4.E).
	nonInformationalResponse bool

	// finalizingResponse is true between WriteHeader/first Write and
	// the LastContent of the response currently in flight.
	finalizingResponse bool

	// read is never set or consulted: the flush coordinator's
	// LAST_FLUSH_WHEN_NO_READ mode decides from the pipeline queue and
	// socket.Writable instead (§4.F).
	read bool

	// needsFlush records that a write has happened since the last flush.
	needsFlush bool

	// pipelined buffers requests decoded ahead of their turn (§4.D).
	pipelined *pipelineQueue

	servedRequests int
	remoteAddr     net.Addr
	secure         bool
}

func newConnState(remoteAddr net.Addr, secure bool) *connState {
	return &connState{
		persistentConnection: true,
		pipelined:            newPipelineQueue(),
		remoteAddr:           remoteAddr,
		secure:               secure,
	}
}

// externalState derives the coarse ConnectionState for metrics.
func (s *connState) externalState(closing bool) ConnectionState {
	switch {
	case closing:
		return StateClosing
	case s.pendingResponses > 0:
		return StateServing
	case !s.pipelined.empty():
		return StateBuffering
	default:
		return StateIdle
	}
}

var (
	headerConnection = []byte("Connection")
	headerKeepAlive  = []byte("keep-alive")
	headerClose      = []byte("close")
)

// negotiateKeepAlive applies §4.C's persistence rule for a freshly
// decoded request: HTTP/1.1 defaults to persistent unless the request
// carries "Connection: close"; HTTP/1.0 defaults to non-persistent
// unless it carries "Connection: keep-alive". A request-line decoder
// error that identifies the protocol as HTTP/2.0 is treated as an
// immediate non-persistent, connection-ending condition by the caller,
// not decided here.
func negotiateKeepAlive(req *http11.Request) bool {
	connHeader := req.Header.Get(headerConnection)
	if req.ProtoMajor == 1 && req.ProtoMinor == 0 {
		return bytesEqualFold(connHeader, headerKeepAlive)
	}
	return !bytesEqualFold(connHeader, headerClose)
}

func bytesEqualFold(a, b []byte) bool {
	return len(a) == len(b) && bytes.EqualFold(a, b)
}
