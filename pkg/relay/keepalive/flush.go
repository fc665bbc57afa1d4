package keepalive

import "github.com/yourusername/relay/pkg/relay/socket"

// decideFlush implements §4.F's LAST_FLUSH_WHEN_NO_READ policy. It is
// the single place a flush request of any origin — a response that
// just completed, or an application calling ResponseWriter.Flush()
// mid-response — is subjected to the On/Off mode decision, so an
// explicit Flush() during the finalization phase coalesces exactly
// like an implicit one instead of bypassing the coordinator. A
// response that just completed is flushed to the socket immediately
// unless another response is already known to be on its way (the
// pipeline queue is non-empty, so a drain will dispatch it right
// after this call returns) — in that case the flush is coalesced onto
// whichever happens first: the next request-head read, or this
// connection going idle with nothing left buffered.
//
// When LastFlushWhenNoRead is disabled, every response is flushed as
// soon as it completes, matching the teacher's http11.Connection.Serve,
// which flushes unconditionally after every handler call.
func (c *Connection) decideFlush() error {
	if !c.state.needsFlush {
		return nil
	}

	if !c.config.LastFlushWhenNoRead {
		return c.flushNow()
	}

	if !c.state.pipelined.empty() && socket.Writable(c.conn) {
		// A buffered request is about to be dispatched and the socket
		// still has room: coalesce this flush with the one its
		// response will need shortly, rather than taking a syscall now.
		return nil
	}

	// Either nothing else is queued, or the socket can't currently
	// accept more data without blocking — in the latter case flushing
	// now at least starts draining the backlog instead of letting bytes
	// pile up in the bufio buffer.
	return c.flushNow()
}

// onReadBoundary is called by Serve's executor loop right after the
// dispatcher has handled a newly decoded request head — the coalescing point §4.F defers flushes to when
// LAST_FLUSH_WHEN_NO_READ is enabled and nothing else forced a flush
// sooner.
func (c *Connection) onReadBoundary() {
	if c.state.needsFlush {
		_ = c.flushNow()
	}
}

func (c *Connection) flushNow() error {
	if !c.state.needsFlush {
		return c.bufw.Flush()
	}
	c.state.needsFlush = false
	return c.bufw.Flush()
}
