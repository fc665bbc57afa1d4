package keepalive

import "errors"

var (
	// ErrConnectionClosed mirrors http11.ErrConnectionClosed for callers
	// that only import this package.
	ErrConnectionClosed = errors.New("keepalive: connection closed")

	// ErrMaxRequestsExceeded indicates a request arrived after the
	// connection had already committed to closing (§4.C, max requests).
	ErrMaxRequestsExceeded = errors.New("keepalive: max requests per connection exceeded")

	// ErrPipelineOverflow names the §3 overflow condition (a request
	// buffered awaiting its turn to be served). Nothing in this package
	// returns or records it: the condition is tracked by the overflow
	// flag and reported through Connection.Overflow and
	// PipelineObserver.OnPipelineBuffered.
	ErrPipelineOverflow = errors.New("keepalive: pipeline overflow")

	// ErrHandlerPanic is the error reported to
	// PipelineObserver.OnHandlerError when a Handler panicked; the
	// response is then finished like any other, and the panic alone does
	// not close the connection. Unlike the teacher's http11.Connection.Serve, which
	// documents "handler must not panic" as a caller obligation, the
	// executor here recovers so one bad handler invocation can't leak
	// the reader goroutine or wedge the outbound channel.
	ErrHandlerPanic = errors.New("keepalive: handler panicked")
)
