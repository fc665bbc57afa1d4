package keepalive

import (
	"strconv"

	"github.com/yourusername/relay/pkg/relay/http11"
)

// ResponseWriter is what a Handler writes a response through. Unlike
// the teacher's http11.ResponseWriter, which writes straight to its
// bufio.Writer, every call here posts an outboundMsg to the
// connection's executor (§4.E/§4.F) so the shaper can apply the
// pendingResponses/persistentConnection bookkeeping and the flush
// coordinator can decide when bytes actually hit the wire, before the
// underlying http11.ResponseWriter ever gets called.
type ResponseWriter struct {
	conn          *Connection
	header        http11.Header
	status        int
	statusWritten bool
	headSent      bool
	finished      bool
}

func (w *ResponseWriter) reset(c *Connection) {
	w.conn = c
	w.header.Reset()
	w.status = 200
	w.statusWritten = false
	w.headSent = false
	w.finished = false
}

// Header returns the response header collection. Must be mutated only
// before the first Write/WriteHeader/Flush call.
func (w *ResponseWriter) Header() *http11.Header {
	return &w.header
}

// WriteHeader sets the status code for the response. A 1xx status may
// be written any number of times before the final response — each is
// posted as its own head-only, non-finalizing outbound object (§4.E).
func (w *ResponseWriter) WriteHeader(status int) error {
	if status >= 100 && status < 200 {
		return w.conn.postOutbound(outboundMsg{
			kind:   outboundResponseHead,
			status: status,
			header: &w.header,
		})
	}
	if w.statusWritten {
		return nil
	}
	w.status = status
	w.statusWritten = true
	return nil
}

// Write sends a body chunk. The first call implicitly finalizes the
// status (default 200 if WriteHeader was never called for a final
// status) and marks the response as finalizing (§4.E).
func (w *ResponseWriter) Write(p []byte) (int, error) {
	if w.finished {
		return 0, ErrConnectionClosed
	}
	if !w.headSent {
		w.headSent = true
		w.statusWritten = true
	}
	err := w.conn.postOutbound(outboundMsg{
		kind:   outboundContent,
		status: w.status,
		header: &w.header,
		data:   p,
	})
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Finish completes the response, emitting any buffered status/headers
// if no body was ever written and signaling LastContent to the shaper.
// A Handler must call Finish exactly once; the connection calls it on
// the Handler's behalf if it returns without doing so.
func (w *ResponseWriter) Finish(trailers *http11.Header) error {
	if w.finished {
		return nil
	}
	w.finished = true
	if !w.headSent {
		w.headSent = true
		w.statusWritten = true
	}
	return w.conn.postOutbound(outboundMsg{
		kind:     outboundLastContent,
		status:   w.status,
		header:   &w.header,
		trailers: trailers,
	})
}

// Flush requests a flush of whatever has been written so far. Like
// every other flush request, it is subject to the flush coordinator's
// On/Off coalescing policy (§4.F) — in LastFlushWhenNoRead mode a
// Flush() call made mid-response can still be deferred to the next
// read boundary rather than hitting the socket immediately.
func (w *ResponseWriter) Flush() error {
	return w.conn.postOutbound(outboundMsg{kind: outboundOther})
}

// WriteFull writes a complete, single-shot response body and finishes
// it in one round-trip to the executor — the common case of a Handler
// that has its whole response ready up front, mirroring the
// convenience of the teacher's WriteJSON/WriteText/WriteError on
// http11.ResponseWriter. Like those, it stamps Content-Length itself:
// the whole point of the single-shot path is that the body's length is
// already known, so there's no reason to make the response ambiguous
// and force the connection closed over it (§4.C).
func (w *ResponseWriter) WriteFull(status int, body []byte) error {
	if w.finished {
		return ErrConnectionClosed
	}
	w.finished = true
	w.headSent = true
	w.statusWritten = true
	w.status = status
	if !w.header.Has(headerContentLength) {
		_ = w.header.Set(headerContentLength, []byte(strconv.Itoa(len(body))))
	}
	return w.conn.postOutbound(outboundMsg{
		kind:   outboundFullResponse,
		status: status,
		header: &w.header,
		data:   body,
	})
}
