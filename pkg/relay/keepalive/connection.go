package keepalive

import (
	"bufio"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/relay/pkg/relay/http11"
)

// Connection serves one accepted net.Conn as a pipelined HTTP/1.x
// traffic handler (§5). Where the teacher's http11.Connection.Serve
// runs a single blocking request/response loop on the caller's
// goroutine, this type splits the work across two goroutines:
//
//   - a reader goroutine that does nothing but decode requests and
//     feed them to inboundCh, so it can keep decoding request N+1
//     while request N's Handler is still running;
//   - an executor goroutine (Serve itself) that is the *only* goroutine
//     that ever touches connState, the pipeline queue, or the
//     low-level http11.ResponseWriter — it owns them exclusively, so
//     none of it needs a mutex.
//
// A Handler runs on its own goroutine too (spawned by the dispatcher),
// and talks back to the executor exclusively through outboundCh via
// ResponseWriter — it never reaches into connState directly.
type Connection struct {
	conn   net.Conn
	bufr   *bufio.Reader
	bufw   *bufio.Writer
	parser *http11.Parser

	config  *Config
	handler Handler

	state     *connState
	curWriter *http11.ResponseWriter
	detached  bool

	inboundCh  chan inboundEvent
	outboundCh chan outboundMsg
	drainCh    chan struct{}
	closeCh    chan struct{}
	closeOnce  sync.Once

	observer  PipelineObserver
	logger    *logrus.Entry
	localAddr net.Addr
}

// New constructs a Connection ready to Serve. config and observer may
// be nil (DefaultConfig() and NopObserver{} are substituted).
func New(conn net.Conn, config *Config, handler Handler, observer PipelineObserver) *Connection {
	if config == nil {
		config = DefaultConfig()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	_, secure := conn.(*tls.Conn)

	c := &Connection{
		conn:       conn,
		bufr:       http11.GetBufioReader(conn),
		bufw:       http11.GetBufioWriter(conn),
		parser:     http11.GetParser(),
		config:     config,
		handler:    handler,
		state:      newConnState(conn.RemoteAddr(), secure),
		inboundCh:  make(chan inboundEvent, 64),
		outboundCh: make(chan outboundMsg, 8),
		drainCh:    make(chan struct{}, 1),
		closeCh:    make(chan struct{}),
		observer:   observer,
		logger:     logger.WithField("remote", conn.RemoteAddr().String()),
		localAddr:  conn.LocalAddr(),
	}
	return c
}

// Serve runs the connection's executor loop until the connection
// closes. It always returns nil: the reason the connection ended is
// not reported through the return value. It is
// intended to be called on its own goroutine per accepted connection,
// the same contract as the teacher's http11.Connection.Serve.
func (c *Connection) Serve() error {
	defer c.cleanup()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		c.readLoop()
	}()

loop:
	for {
		select {
		case ev := <-c.inboundCh:
			c.handleInbound(ev)
			if c.readBoundaryEvent(ev) {
				c.onReadBoundary()
			}
		case msg := <-c.outboundCh:
			c.handleOutbound(msg)
		case <-c.drainCh:
			c.drainPipeline()
		case <-c.closeCh:
			break loop
		}
	}

	c.closeOnce.Do(func() { close(c.closeCh) })

	if c.detached {
		// Don't close the socket — ownership passed to whoever called
		// Detach. The reader goroutine may still be blocked inside a
		// socket Read; an expired-in-the-past deadline unblocks it
		// without touching the connection the new owner is about to
		// use, and is cleared again before we hand control back.
		_ = c.conn.SetReadDeadline(time.Unix(1, 0))
		<-readerDone
		_ = c.conn.SetReadDeadline(time.Time{})
	} else {
		_ = c.conn.Close()
		<-readerDone
	}

	if c.observer != nil {
		c.observer.OnClose(c, c.state.servedRequests)
	}
	return nil
}

func (c *Connection) readBoundaryEvent(ev inboundEvent) bool {
	_, ok := ev.(requestHeadEvent)
	return ok
}

// readLoop decodes requests off the wire and posts them to inboundCh.
// It runs independently of the executor loop so decoding request N+1
// can proceed while request N's Handler is still in flight — gated,
// for requests that carry a body, on that body having been fully read
// (see the trackingReader comment below), since HTTP/1.x framing makes
// it impossible to find the start of request N+1 before that point.
func (c *Connection) readLoop() {
	for {
		if c.config.ReadTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}

		req, err := c.parser.Parse(c.bufr)
		if err != nil {
			c.postInbound(requestHeadEvent{decoderErr: err})
			return
		}

		bodyDone := make(chan struct{})
		if req.HasBody() {
			req.Body = &trackingReader{r: req.Body, done: bodyDone}
		} else {
			close(bodyDone)
		}

		if !c.postInbound(requestHeadEvent{req: req, arrival: time.Now()}) {
			return
		}

		select {
		case <-bodyDone:
		case <-c.closeCh:
			return
		}
	}
}

// postInbound sends ev to the executor, returning false if the
// connection closed first (io.EOF/clean-close is also routed through
// here so the executor can decide nothing more needs sending).
func (c *Connection) postInbound(ev inboundEvent) bool {
	if rh, ok := ev.(requestHeadEvent); ok && rh.decoderErr != nil {
		if errors.Is(rh.decoderErr, io.EOF) || errors.Is(rh.decoderErr, http11.ErrUnexpectedEOF) {
			c.scheduleClose()
			return false
		}
	}
	select {
	case c.inboundCh <- ev:
		return true
	case <-c.closeCh:
		return false
	}
}

// postOutbound is how a ResponseWriter (running on the Handler's
// goroutine) hands work to the executor and waits for it to be
// applied — the completion token of §5/§6.
func (c *Connection) postOutbound(msg outboundMsg) error {
	msg.done = make(chan error, 1)
	select {
	case c.outboundCh <- msg:
	case <-c.closeCh:
		return ErrConnectionClosed
	}
	select {
	case err := <-msg.done:
		return err
	case <-c.closeCh:
		return ErrConnectionClosed
	}
}

// scheduleDrain posts to drainCh rather than draining the pipeline
// queue inline, so draining interleaves fairly with freshly-arrived
// inbound/outbound events instead of recursing straight through
// (§4.D/§9). drainCh has a buffer of exactly 1: drainPipeline only
// ever advances the queue by one request per call, and that request's
// pendingResponses slot was already claimed when its head was accepted
// — so a single coalesced pending signal is always sufficient, nothing
// is lost by dropping a duplicate.
//
// This runs on the executor goroutine itself (called from
// finishResponse), so the send must never block: if it did, the only
// goroutine that could ever drain drainCh would be blocked sending to
// it.
func (c *Connection) scheduleDrain() {
	select {
	case c.drainCh <- struct{}{}:
	default:
	}
}

func (c *Connection) scheduleClose() {
	c.closeOnce.Do(func() { close(c.closeCh) })
}

func (c *Connection) cleanup() {
	c.state.pipelined.releaseAll()
	if c.curWriter != nil {
		http11.PutResponseWriter(c.curWriter)
		c.curWriter = nil
	}
	if c.parser != nil {
		http11.PutParser(c.parser)
		c.parser = nil
	}
	if c.bufr != nil && !c.detached {
		http11.PutBufioReader(c.bufr)
		c.bufr = nil
	}
	if c.bufw != nil {
		http11.PutBufioWriter(c.bufw)
		c.bufw = nil
	}
}

// RemoteAddr returns the peer address.
func (c *Connection) RemoteAddr() net.Addr { return c.state.remoteAddr }

// LocalAddr returns the local address.
func (c *Connection) LocalAddr() net.Addr { return c.localAddr }

// RequestCount returns the number of request heads accepted so far,
// including any still buffered in the pipeline queue.
func (c *Connection) RequestCount() int { return c.state.servedRequests }

// PendingResponses returns the number of requests accepted (dispatched
// to a Handler, or still buffered behind one) whose final response
// hasn't been written yet (§3's pendingResponses). Safe to call only
// from a PipelineObserver callback, which always runs on the executor
// goroutine that owns this field.
func (c *Connection) PendingResponses() int { return c.state.pendingResponses }

// PipelineDepth returns the number of requests currently buffered
// behind an in-flight response. Same goroutine-affinity caveat as
// PendingResponses.
func (c *Connection) PipelineDepth() int { return c.state.pipelined.len() }

// Overflow reports whether a request has been buffered in the pipeline
// queue since the queue was last drained empty. Same goroutine-affinity
// caveat as PendingResponses.
func (c *Connection) Overflow() bool { return c.state.overflow }

// State returns the coarse, externally-observable connection state.
func (c *Connection) State() ConnectionState {
	select {
	case <-c.closeCh:
		return c.state.externalState(true)
	default:
		return c.state.externalState(false)
	}
}

// trackingReader wraps a request body reader and closes done once the
// body has been fully consumed (EOF or a read error) or explicitly
// discarded — see readLoop's body-drain gate.
type trackingReader struct {
	r    io.Reader
	done chan struct{}
	shut bool
}

func (t *trackingReader) Read(p []byte) (int, error) {
	if t.shut {
		return 0, io.EOF
	}
	n, err := t.r.Read(p)
	if err != nil {
		t.close()
	}
	return n, err
}

func (t *trackingReader) close() {
	if !t.shut {
		t.shut = true
		close(t.done)
	}
}
