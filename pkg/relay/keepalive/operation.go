package keepalive

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Operation is the per-request context object handed to a Handler
// alongside the decoded request and a ResponseWriter — it carries the
// connection-scoped facts a Handler commonly needs (peer address,
// arrival time, which request number this is on the connection) without
// exposing the connection's internal executor machinery.
type Operation struct {
	RemoteAddr    net.Addr
	LocalAddr     net.Addr
	Secure        bool
	Arrival       time.Time
	RequestNumber int
	Logger        *logrus.Entry
}

// Handler processes one request. It must not retain req or w beyond
// the call: both are recycled once the handler returns and the
// response's LastContent has been shaped onto the wire.
type Handler func(op *Operation, req *Request, w *ResponseWriter) error
