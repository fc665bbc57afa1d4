package keepalive

// PipelineObserver receives lifecycle notifications from a Connection's
// executor. All methods run on the executor goroutine — an
// implementation must not block or call back into the Connection it
// was given. This is how pkg/relay/metrics hooks in without the
// keepalive package importing prometheus directly (§"DOMAIN STACK").
type PipelineObserver interface {
	// OnDispatch fires when a request is handed to the Handler.
	OnDispatch(c *Connection, op *Operation)

	// OnPipelineBuffered fires when a request is queued rather than
	// dispatched immediately, reporting the queue depth after it.
	OnPipelineBuffered(c *Connection, depth int)

	// OnResponseComplete fires once a response's LastContent has been
	// shaped, reporting the 1-based request number it answered.
	OnResponseComplete(c *Connection, requestNumber int)

	// OnHandlerError fires when a Handler returned a non-nil error or
	// panicked.
	OnHandlerError(c *Connection, op *Operation, err error)

	// OnClose fires once, when the connection's executor exits.
	OnClose(c *Connection, servedRequests int)
}

// NopObserver implements PipelineObserver with no-ops, for callers that
// don't need metrics wired in.
type NopObserver struct{}

func (NopObserver) OnDispatch(*Connection, *Operation)             {}
func (NopObserver) OnPipelineBuffered(*Connection, int)            {}
func (NopObserver) OnResponseComplete(*Connection, int)            {}
func (NopObserver) OnHandlerError(*Connection, *Operation, error)  {}
func (NopObserver) OnClose(*Connection, int)                       {}
