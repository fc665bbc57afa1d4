package keepalive

import (
	"github.com/yourusername/relay/pkg/relay/http11"
)

var headerConnectionClose = []byte("close")

// handleOutbound implements §4.E: classify an outbound object, apply
// its effect on connState, and hand finished bytes to the low-level
// http11.ResponseWriter serializer. This is the only place connState's
// response-side fields (pendingResponses, finalizingResponse,
// nonInformationalResponse) are mutated, and it only ever runs on the
// executor goroutine.
func (c *Connection) handleOutbound(msg outboundMsg) {
	if msg.kind == outboundDetach {
		c.shapeDetach(msg)
		return
	}

	var err error
	switch msg.kind {
	case outboundResponseHead:
		err = c.shapeInformational(msg)
	case outboundContent:
		err = c.shapeContent(msg)
	case outboundLastContent:
		err = c.shapeLastContent(msg)
	case outboundOther:
		err = c.decideFlush()
	case outboundFullResponse:
		err = c.shapeFullResponse(msg)
	}
	if msg.done != nil {
		msg.done <- err
		close(msg.done)
	}
}

// shapeDetach writes the response head (e.g. a 101 Switching Protocols)
// unbuffered, then hands the raw connection and its bufio.Reader back
// to the caller instead of returning them to their pools — the core
// has nothing left to do on this connection after this point.
func (c *Connection) shapeDetach(msg outboundMsg) {
	lw := c.lowWriter()
	if !lw.HeaderWritten() {
		copyHeader(lw.Header(), msg.header)
		lw.WriteHeader(msg.status)
	}
	_, writeErr := lw.Write(nil)
	flushErr := c.bufw.Flush()

	http11.PutResponseWriter(c.curWriter)
	c.curWriter = nil

	if writeErr != nil || flushErr != nil {
		msg.detach <- nil
		c.scheduleClose()
		return
	}

	c.state.pendingResponses = 0
	result := &DetachResult{Conn: c.conn, Reader: c.bufr}
	c.bufr = nil
	c.detached = true

	msg.detach <- result
	c.scheduleClose()
}

func (c *Connection) lowWriter() *http11.ResponseWriter {
	if c.curWriter == nil {
		c.curWriter = http11.GetResponseWriter(c.bufw)
	}
	return c.curWriter
}

// shapeInformational writes a 1xx interim response. §4.E: informational
// responses never touch pendingResponses or the persistence decision.
func (c *Connection) shapeInformational(msg outboundMsg) error {
	lw := c.lowWriter()
	copyHeader(lw.Header(), msg.header)
	lw.WriteHeader(msg.status)
	_, err := lw.Write(nil)
	// The interim head is complete; the final response starts on a
	// fresh low-level writer.
	http11.PutResponseWriter(c.curWriter)
	c.curWriter = nil
	if err != nil {
		return err
	}
	// A 1xx interim response (most commonly 100-continue) must reach
	// the peer promptly — it is often what unblocks the peer sending
	// the request body — so it bypasses flush coalescing entirely.
	return c.bufw.Flush()
}

func (c *Connection) shapeContent(msg outboundMsg) error {
	lw := c.lowWriter()
	if !lw.HeaderWritten() {
		c.beginResponseHead(lw, msg)
	}
	c.state.nonInformationalResponse = true
	c.state.finalizingResponse = true
	_, err := lw.Write(msg.data)
	c.state.needsFlush = true
	return err
}

// beginResponseHead applies §4.C/§4.E's max-keep-alive-requests check
// at the moment a response head is about to be written — the instant
// named by the spec, not the moment its body finishes — then stamps
// the Connection header with whatever persistence decision is now
// final before the head reaches the wire.
func (c *Connection) beginResponseHead(lw *http11.ResponseWriter, msg outboundMsg) {
	if c.config.MaxKeepAliveRequests > 0 && c.state.servedRequests >= c.config.MaxKeepAliveRequests {
		c.state.pendingResponses = 0
		c.state.persistentConnection = false
	}
	copyHeader(lw.Header(), msg.header)
	c.applyConnectionHeader(lw.Header())
	lw.WriteHeader(msg.status)
}

func (c *Connection) shapeFullResponse(msg outboundMsg) error {
	if err := c.shapeContent(msg); err != nil {
		return err
	}
	return c.finishResponse()
}

func (c *Connection) shapeLastContent(msg outboundMsg) error {
	lw := c.lowWriter()
	if !lw.HeaderWritten() {
		c.beginResponseHead(lw, msg)
	}
	if len(msg.data) > 0 {
		if _, err := lw.Write(msg.data); err != nil {
			return err
		}
	}
	return c.finishResponse()
}

// applyConnectionHeader stamps "Connection: close" onto a response
// that is about to finalize an already-decided non-persistent
// connection, so the peer learns about it from the framing, not just
// from the socket closing out from under it.
func (c *Connection) applyConnectionHeader(h *http11.Header) {
	if !c.state.persistentConnection {
		_ = h.Set(headerConnection, headerConnectionClose)
	}
}

// finishResponse is the common tail of every path that completes a
// response: decrement pendingResponses, release the low-level writer,
// decide whether this was the connection's last response, and
// schedule the next drain.
func (c *Connection) finishResponse() error {
	// A response with no self-defined length (no Content-Length, no
	// chunked Transfer-Encoding, not a 1xx/204/304) can only signal its
	// own end by the connection closing — keeping it alive would leave
	// the peer unable to tell where this response ends and the next
	// begins (RFC 7230 §3.3.3).
	if !http11.HasSelfDefinedLength(c.curWriter.Status(), c.curWriter.Header()) {
		c.state.persistentConnection = false
	}
	c.applyConnectionHeader(c.curWriter.Header())
	// Push any still-unwritten status/headers into the bufio.Writer
	// buffer without flushing it to the socket — the flush coordinator
	// (flush.go) decides when that happens.
	_, err := c.curWriter.Write(nil)

	http11.PutResponseWriter(c.curWriter)
	c.curWriter = nil
	c.state.needsFlush = true

	c.state.nonInformationalResponse = false
	c.state.finalizingResponse = false
	if c.state.pendingResponses > 0 {
		c.state.pendingResponses--
	}

	if c.observer != nil {
		// Requests still queued all arrived after the one just answered.
		c.observer.OnResponseComplete(c, c.state.servedRequests-c.state.pipelined.len())
	}

	if flushErr := c.decideFlush(); flushErr != nil && err == nil {
		err = flushErr
	}

	if !c.state.persistentConnection {
		c.scheduleClose()
		return err
	}

	c.scheduleDrain()
	return err
}

func copyHeader(dst, src *http11.Header) {
	if src == nil {
		return
	}
	src.VisitAll(func(name, value []byte) bool {
		_ = dst.Add(name, value)
		return true
	})
}
