package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yourusername/relay/pkg/relay/keepalive"
)

func TestCollectorImplementsObserver(t *testing.T) {
	var _ keepalive.PipelineObserver = (*Collector)(nil)
}

func TestOnDispatchLabelsBySecure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.OnDispatch(nil, &keepalive.Operation{Secure: false})
	c.OnDispatch(nil, &keepalive.Operation{Secure: true})
	c.OnDispatch(nil, &keepalive.Operation{Secure: true})

	if got := testutil.ToFloat64(c.dispatched.WithLabelValues("plaintext")); got != 1 {
		t.Errorf("plaintext dispatched = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.dispatched.WithLabelValues("tls")); got != 2 {
		t.Errorf("tls dispatched = %v, want 2", got)
	}
}

func TestOnHandlerErrorDistinguishesPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.OnHandlerError(nil, &keepalive.Operation{}, keepalive.ErrHandlerPanic)
	c.OnHandlerError(nil, &keepalive.Operation{}, keepalive.ErrConnectionClosed)
	c.OnHandlerError(nil, &keepalive.Operation{}, keepalive.ErrConnectionClosed)

	if got := testutil.ToFloat64(c.handlerErrors.WithLabelValues("panic")); got != 1 {
		t.Errorf("panic errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.handlerErrors.WithLabelValues("error")); got != 2 {
		t.Errorf("generic errors = %v, want 2", got)
	}
}

func TestOnCloseCountsClosedConnections(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.OnClose(nil, 7)

	if got := testutil.ToFloat64(c.connectionsClosed); got != 1 {
		t.Errorf("connectionsClosed = %v, want 1", got)
	}
}
