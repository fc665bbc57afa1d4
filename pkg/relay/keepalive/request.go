package keepalive

import (
	"io"

	"github.com/yourusername/relay/pkg/relay/http11"
)

// Request is the read-only facade over a decoded http11.Request that a
// Handler is given. It exists so the Handler never touches the pooled
// *http11.Request directly — the connection owns that object's
// lifetime (GetRequest/PutRequest, §4.A), and a Handler that retained
// it past the call would read garbage once recycled.
type Request struct {
	inner *http11.Request
}

// NewRequest wraps an already-decoded http11.Request as a keepalive.Request.
// The dispatcher builds its Request values directly rather than through
// this function; it is exported for code that builds a Request outside
// the normal read loop, such as tests.
func NewRequest(inner *http11.Request) *Request {
	return &Request{inner: inner}
}

func (r *Request) Method() string        { return r.inner.Method() }
func (r *Request) Path() string          { return r.inner.Path() }
func (r *Request) Query() string         { return r.inner.Query() }
func (r *Request) Proto() string         { return r.inner.Proto }
func (r *Request) ProtoAtLeast11() bool  { return r.inner.ProtoMajor == 1 && r.inner.ProtoMinor >= 1 }
func (r *Request) Header() *http11.Header {
	return &r.inner.Header
}

// Body returns an io.Reader over the request body. Reading it to EOF
// (or not reading it at all for a bodyless request) is what lets the
// connection's reader goroutine move on to decoding the next pipelined
// request — see connection.go's drain-before-advance comment.
func (r *Request) Body() io.Reader {
	if r.inner.Body == nil {
		return http11EmptyReader{}
	}
	return r.inner.Body
}

type http11EmptyReader struct{}

func (http11EmptyReader) Read([]byte) (int, error) { return 0, io.EOF }
