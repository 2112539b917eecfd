// Package metrics provides session store metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics contains Prometheus metrics for session store operations
type SessionMetrics struct {
	registry *prometheus.Registry

	sessionsCreatedTotal prometheus.Counter
	sessionLoadsTotal    *prometheus.CounterVec
	sessionSavesTotal    *prometheus.CounterVec
}

// NewSessionMetrics creates and registers new session store metrics
func NewSessionMetrics(registry *prometheus.Registry) (*SessionMetrics, error) {
	m := &SessionMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *SessionMetrics) initMetrics() error {
	m.sessionsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_created_total",
			Help: "Total number of newly minted session identifiers",
		},
	)

	m.sessionLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_loads_total",
			Help: "Total number of session record loads",
		},
		[]string{"status"}, // status: hit, miss, corrupt
	)

	m.sessionSavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_saves_total",
			Help: "Total number of session record writes",
		},
		[]string{"status"}, // status: success, error
	)

	return nil
}

// RecordSessionCreated increments the counter of minted session identifiers
func (m *SessionMetrics) RecordSessionCreated() {
	m.sessionsCreatedTotal.Inc()
}

// RecordSessionLoad records a session load with its outcome
func (m *SessionMetrics) RecordSessionLoad(status string) {
	m.sessionLoadsTotal.WithLabelValues(status).Inc()
}

// RecordSessionSave records a session write with its outcome
func (m *SessionMetrics) RecordSessionSave(status string) {
	m.sessionSavesTotal.WithLabelValues(status).Inc()
}

// Describe implements the Collector interface
func (m *SessionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.sessionsCreatedTotal.Describe(ch)
	m.sessionLoadsTotal.Describe(ch)
	m.sessionSavesTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *SessionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.sessionsCreatedTotal.Collect(ch)
	m.sessionLoadsTotal.Collect(ch)
	m.sessionSavesTotal.Collect(ch)
}
