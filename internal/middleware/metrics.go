package middleware

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records Prometheus metrics for processed requests and calls.
type Metrics struct {
	RequestsTotal   prometheus.Counter
	RequestDuration prometheus.Histogram
	CallsTotal      *prometheus.CounterVec
	CallDuration    *prometheus.HistogramVec
}

// NewMetrics creates and registers the middleware metrics with the given
// registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "jsonrpc",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
		),
		RequestDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "jsonrpc",
				Name:      "request_duration_seconds",
				Help:      "End-to-end request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		CallsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "jsonrpc",
				Name:      "calls_total",
				Help:      "Total method calls dispatched",
			},
			[]string{"method", "success"},
		),
		CallDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "jsonrpc",
				Name:      "call_duration_seconds",
				Help:      "Per-call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// OnRequest implements Middleware.
func (m *Metrics) OnRequest() time.Time {
	m.RequestsTotal.Inc()
	return time.Now()
}

// OnCall implements Middleware.
func (m *Metrics) OnCall(method string) {}

// OnResult implements Middleware.
func (m *Metrics) OnResult(method string, success bool, started time.Time) {
	m.CallsTotal.WithLabelValues(method, strconv.FormatBool(success)).Inc()
	m.CallDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

// OnResponse implements Middleware.
func (m *Metrics) OnResponse(started time.Time) {
	m.RequestDuration.Observe(time.Since(started).Seconds())
}

// RxLog implements Middleware.
func (m *Metrics) RxLog([]byte, uint32) {}
