package keepalive

import (
	"strconv"

	"github.com/yourusername/relay/pkg/relay/http11"
)

var headerContentType = []byte("Content-Type")
var headerContentLength = []byte("Content-Length")
var contentTypeText = []byte("text/plain; charset=utf-8")

// writeErrorResponse synthesizes a minimal final response for a
// decoder failure that the dispatcher caught before a Handler ever
// saw the connection (§4.D) — a malformed request line, an HTTP/2.0
// preface, a header section that exceeded its size budget. It writes
// directly through the low-level serializer rather than routing
// through a ResponseWriter/outboundCh round-trip, since there is no
// Handler goroutine on the other end to synchronize with.
func (c *Connection) writeErrorResponse(status int, cause error) {
	buf := http11.GetScratchBuffer()
	defer http11.PutScratchBuffer(buf)

	buf.WriteString(http11.StatusText(status))
	if cause != nil {
		buf.WriteString(": ")
		buf.WriteString(cause.Error())
	}
	buf.WriteString("\n")

	lw := c.lowWriter()
	lw.Header().Set(headerContentType, contentTypeText)
	lw.Header().Set(headerContentLength, []byte(strconv.Itoa(buf.Len())))
	c.applyConnectionHeader(lw.Header())
	lw.WriteHeader(status)
	_, _ = lw.Write(buf.Bytes())
	_ = lw.Flush()

	http11.PutResponseWriter(c.curWriter)
	c.curWriter = nil
	c.state.needsFlush = false
}
