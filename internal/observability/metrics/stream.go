// Package metrics provides streaming proxy metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StreamMetrics contains Prometheus metrics for the streaming proxy
type StreamMetrics struct {
	registry *prometheus.Registry

	streamRequestsTotal   *prometheus.CounterVec
	streamHeartbeatsTotal prometheus.Counter
	streamLinesTotal      prometheus.Counter
	streamDuration        prometheus.Histogram
	activeStreams         prometheus.Gauge
}

// NewStreamMetrics creates and registers new streaming proxy metrics
func NewStreamMetrics(registry *prometheus.Registry) (*StreamMetrics, error) {
	m := &StreamMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *StreamMetrics) initMetrics() error {
	m.streamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_requests_total",
			Help: "Total number of streaming proxy requests",
		},
		[]string{"status"}, // status: success, upstream_error, error
	)

	m.streamHeartbeatsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_heartbeats_total",
			Help: "Total number of heartbeat frames injected into idle streams",
		},
	)

	m.streamLinesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_lines_total",
			Help: "Total number of upstream lines relayed to clients",
		},
	)

	m.streamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "stream_duration_seconds",
			Help: "Lifetime of streaming proxy connections",
			// Streams run from sub-second errors to multi-minute answers
			Buckets: prometheus.ExponentialBuckets(BucketStart1s, BucketFactor2, BucketCount10),
		},
	)

	m.activeStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_active_connections",
			Help: "Number of currently open streaming proxy connections",
		},
	)

	return nil
}

// RecordStreamRequest records a completed streaming request with its outcome
func (m *StreamMetrics) RecordStreamRequest(status string, durationSeconds float64) {
	m.streamRequestsTotal.WithLabelValues(status).Inc()
	m.streamDuration.Observe(durationSeconds)
}

// RecordHeartbeat increments the heartbeat frame counter
func (m *StreamMetrics) RecordHeartbeat() {
	m.streamHeartbeatsTotal.Inc()
}

// RecordLine increments the relayed line counter
func (m *StreamMetrics) RecordLine() {
	m.streamLinesTotal.Inc()
}

// StreamStarted increments the active connection gauge
func (m *StreamMetrics) StreamStarted() {
	m.activeStreams.Inc()
}

// StreamEnded decrements the active connection gauge
func (m *StreamMetrics) StreamEnded() {
	m.activeStreams.Dec()
}

// Describe implements the Collector interface
func (m *StreamMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.streamRequestsTotal.Describe(ch)
	m.streamHeartbeatsTotal.Describe(ch)
	m.streamLinesTotal.Describe(ch)
	m.streamDuration.Describe(ch)
	m.activeStreams.Describe(ch)
}

// Collect implements the Collector interface
func (m *StreamMetrics) Collect(ch chan<- prometheus.Metric) {
	m.streamRequestsTotal.Collect(ch)
	m.streamHeartbeatsTotal.Collect(ch)
	m.streamLinesTotal.Collect(ch)
	m.streamDuration.Collect(ch)
	m.activeStreams.Collect(ch)
}
