package keepalive

import (
	"errors"
	"io"

	"github.com/yourusername/relay/pkg/relay/http11"
)

// handleInbound implements §4.D: decide, for a freshly decoded request
// (or a decoder failure), whether to dispatch it to the Handler now or
// buffer it in the pipeline queue, and update the bookkeeping fields
// that drive that decision for subsequent requests.
func (c *Connection) handleInbound(ev inboundEvent) {
	switch e := ev.(type) {
	case requestHeadEvent:
		c.onRequestHead(e)
	}
}

func (c *Connection) onRequestHead(e requestHeadEvent) {
	if e.decoderErr != nil {
		c.onDecoderError(e)
		return
	}

	c.state.servedRequests++
	holder := &requestHolder{req: &e, arrival: e.arrival}

	// pendingResponses is incremented the moment a request head is
	// accepted, before the serve-now-vs-enqueue decision — a request
	// sitting in the pipeline queue is still "awaiting its final
	// response" (§3 invariant I1) even though it hasn't reached a
	// Handler yet.
	c.state.pendingResponses++
	c.state.persistentConnection = c.state.persistentConnection && negotiateKeepAlive(e.req)

	if c.state.pendingResponses > 1 {
		c.state.overflow = true
		c.state.pipelined.push(holder)
		if c.observer != nil {
			c.observer.OnPipelineBuffered(c, c.state.pipelined.len())
		}
		return
	}

	c.dispatch(holder)
}

// onDecoderError handles a request that failed to decode — most
// notably ErrHTTP2Preface, which §4.C treats as an immediate,
// non-persistent, connection-ending condition distinct from a generic
// malformed request.
func (c *Connection) onDecoderError(e requestHeadEvent) {
	c.state.persistentConnection = false

	if c.state.pendingResponses > 0 || c.curWriter != nil {
		// A response is already in flight on this connection's single
		// low-level writer — finishResponse will see
		// persistentConnection=false and close once it completes.
		// Writing a synthetic error response here would interleave
		// with that in-flight response's bytes.
		return
	}

	status := 400
	if errors.Is(e.decoderErr, http11.ErrHTTP2Preface) {
		status = 505 // HTTP Version Not Supported
	}

	c.writeErrorResponse(status, e.decoderErr)
	c.scheduleClose()
}

// dispatch hands a buffered or freshly-arrived request to the Handler
// on its own goroutine. pendingResponses and persistentConnection were
// already updated when this request's head was accepted
// (onRequestHead) — dispatch only ever hands off the head-of-line
// request, so it has nothing left to decide about admission. The
// max-keep-alive-requests check lives in the shaper, at the moment the
// response head is written (§4.C/§4.E), not here.
func (c *Connection) dispatch(h *requestHolder) {
	req := &Request{inner: h.req.req}
	// Every request still in the queue was accepted after h.
	number := c.state.servedRequests - c.state.pipelined.len()
	op := &Operation{
		RemoteAddr:    c.state.remoteAddr,
		LocalAddr:     c.localAddr,
		Secure:        c.state.secure,
		Arrival:       h.arrival,
		RequestNumber: number,
		Logger:        c.logger.WithField("request", number),
	}
	rw := acquireResponseWriter(c)

	if c.observer != nil {
		c.observer.OnDispatch(c, op)
	}

	go c.runHandler(op, req, rw, h.req.req)
}

// runHandler invokes the Handler, recovering from panics so a broken
// Handler can't leak the reader goroutine or wedge outboundCh (unlike
// the teacher's http11.Connection.Serve, which simply documents this
// as a caller obligation).
func (c *Connection) runHandler(op *Operation, req *Request, rw *ResponseWriter, raw *http11.Request) {
	var handlerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				handlerErr = ErrHandlerPanic
				if c.logger != nil {
					c.logger.WithField("panic", r).Error("keepalive: handler panic recovered")
				}
			}
		}()
		handlerErr = c.handler(op, req, rw)
	}()

	if !rw.finished {
		_ = rw.Finish(nil)
	}
	releaseResponseWriter(rw)

	// Ensure the reader goroutine can advance to the next pipelined
	// request even if the Handler never read the body (mirrors the
	// drain-unread-body behavior most Go HTTP servers apply).
	if raw.Body != nil {
		_, _ = io.Copy(io.Discard, raw.Body)
	}
	http11.PutRequest(raw)

	if handlerErr != nil && c.observer != nil {
		c.observer.OnHandlerError(c, op, handlerErr)
	}
}

// drainPipeline pops the next buffered request once the head-of-line
// response has completed. It is only ever scheduled from the tail of
// finishResponse, so by the time it runs the previously-serving
// request is done; the popped holder's pendingResponses slot was
// already claimed when its head was accepted (onRequestHead), so
// dispatch has nothing left to increment. Scheduled via drainCh rather
// than called straight from the shaper so it interleaves fairly with
// newly arriving inbound events (§4.D/§9).
func (c *Connection) drainPipeline() {
	holder, ok := c.state.pipelined.popFront()
	if !ok {
		return
	}
	if c.state.pipelined.empty() {
		c.state.overflow = false
	}
	c.dispatch(holder)
}
