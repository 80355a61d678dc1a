package rqlite

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the adapter. A nil *Metrics is a no-op.
type Metrics struct {
	requests   *prometheus.CounterVec
	redirects  prometheus.Counter
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg (skipped when reg is nil)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rqlite_store_requests_total",
			Help: "HTTP requests sent to rqlite, by endpoint and status code",
		}, []string{"endpoint", "code"}),
		redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rqlite_store_redirects_total",
			Help: "Redirects to another node followed by the client",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rqlite_store_operations_total",
			Help: "Entity operations, by operation and outcome",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rqlite_store_operation_duration_seconds",
			Help:    "Duration of entity operations including redirects",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(m.requests, m.redirects, m.operations, m.duration)
	}
	return m
}

func (m *Metrics) observeRequest(endpoint string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}

func (m *Metrics) observeRedirect() {
	if m == nil {
		return
	}
	m.redirects.Inc()
}

// observeOperation records an operation; outcome is "ok" or the error kind
func (m *Metrics) observeOperation(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}
