// Package metrics instruments the keep-alive state machine with
// Prometheus, implementing keepalive.PipelineObserver so
// pkg/relay/keepalive never has to import prometheus itself.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yourusername/relay/pkg/relay/keepalive"
)

// Collector wires connection lifecycle events into Prometheus counters
// and histograms. A nil *Collector is not valid — use NewCollector (or
// keepalive.NopObserver{} when metrics aren't wanted).
type Collector struct {
	dispatched        *prometheus.CounterVec
	pipelineBuffered  prometheus.Counter
	pipelineDepth     prometheus.Histogram
	responsesComplete prometheus.Counter
	handlerErrors     *prometheus.CounterVec
	connectionsClosed prometheus.Counter
	requestsPerConn   prometheus.Histogram
	overflowTotal     prometheus.Counter
}

// NewCollector registers a fresh set of metrics on reg (pass
// prometheus.DefaultRegisterer for the global registry, or a dedicated
// *prometheus.Registry in tests).
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		dispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "keepalive",
			Name:      "requests_dispatched_total",
			Help:      "Total number of requests handed to a Handler.",
		}, []string{"remote_secure"}),

		pipelineBuffered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "keepalive",
			Name:      "pipeline_buffered_total",
			Help:      "Total number of requests buffered in the pipeline queue rather than dispatched immediately.",
		}),

		pipelineDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "relay",
			Subsystem: "keepalive",
			Name:      "pipeline_depth",
			Help:      "Pipeline queue depth observed at the moment a request was buffered.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		}),

		responsesComplete: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "keepalive",
			Name:      "responses_completed_total",
			Help:      "Total number of responses whose LastContent was shaped onto the wire.",
		}),

		handlerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "keepalive",
			Name:      "handler_errors_total",
			Help:      "Total number of Handler invocations that returned an error or panicked.",
		}, []string{"reason"}),

		connectionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "keepalive",
			Name:      "connections_closed_total",
			Help:      "Total number of connections whose executor loop exited.",
		}),

		requestsPerConn: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "relay",
			Subsystem: "keepalive",
			Name:      "requests_per_connection",
			Help:      "Number of requests served on a connection by the time it closed.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),

		overflowTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "keepalive",
			Name:      "pipeline_overflow_total",
			Help:      "Total number of requests buffered while the pipeline overflow flag was set.",
		}),
	}
}

var _ keepalive.PipelineObserver = (*Collector)(nil)

func (m *Collector) OnDispatch(c *keepalive.Connection, op *keepalive.Operation) {
	label := "plaintext"
	if op.Secure {
		label = "tls"
	}
	m.dispatched.WithLabelValues(label).Inc()
}

func (m *Collector) OnPipelineBuffered(c *keepalive.Connection, depth int) {
	m.pipelineBuffered.Inc()
	m.pipelineDepth.Observe(float64(depth))
	if c.Overflow() {
		m.overflowTotal.Inc()
	}
}

func (m *Collector) OnResponseComplete(c *keepalive.Connection, requestNumber int) {
	m.responsesComplete.Inc()
}

func (m *Collector) OnHandlerError(c *keepalive.Connection, op *keepalive.Operation, err error) {
	reason := "error"
	if err == keepalive.ErrHandlerPanic {
		reason = "panic"
	}
	m.handlerErrors.WithLabelValues(reason).Inc()
}

func (m *Collector) OnClose(c *keepalive.Connection, servedRequests int) {
	m.connectionsClosed.Inc()
	m.requestsPerConn.Observe(float64(servedRequests))
}
