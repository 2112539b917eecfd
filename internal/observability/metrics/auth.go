// Package metrics provides authentication metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AuthMetrics contains Prometheus metrics for authentication operations
type AuthMetrics struct {
	registry *prometheus.Registry

	authDecisionsTotal  *prometheus.CounterVec
	tokenRefreshesTotal *prometheus.CounterVec
	groupLookupsTotal   *prometheus.CounterVec
}

// NewAuthMetrics creates and registers new authentication metrics
func NewAuthMetrics(registry *prometheus.Registry) (*AuthMetrics, error) {
	m := &AuthMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *AuthMetrics) initMetrics() error {
	m.authDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_decisions_total",
			Help: "Total number of per-request authorization decisions",
		},
		[]string{"result"}, // result: authorized, unauthorized, anonymous
	)

	m.tokenRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_refreshes_total",
			Help: "Total number of silent token refresh attempts",
		},
		[]string{"scope", "status"}, // scope: basic, extra; status: success, error
	)

	m.groupLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_group_lookups_total",
			Help: "Total number of group membership lookups",
		},
		[]string{"status"}, // status: success, error
	)

	return nil
}

// RecordAuthDecision records the outcome of an authorization check
func (m *AuthMetrics) RecordAuthDecision(result string) {
	m.authDecisionsTotal.WithLabelValues(result).Inc()
}

// RecordTokenRefresh records a silent token refresh attempt
func (m *AuthMetrics) RecordTokenRefresh(scope, status string) {
	m.tokenRefreshesTotal.WithLabelValues(scope, status).Inc()
}

// RecordGroupLookup records a group membership lookup
func (m *AuthMetrics) RecordGroupLookup(status string) {
	m.groupLookupsTotal.WithLabelValues(status).Inc()
}

// Describe implements the Collector interface
func (m *AuthMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.authDecisionsTotal.Describe(ch)
	m.tokenRefreshesTotal.Describe(ch)
	m.groupLookupsTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *AuthMetrics) Collect(ch chan<- prometheus.Metric) {
	m.authDecisionsTotal.Collect(ch)
	m.tokenRefreshesTotal.Collect(ch)
	m.groupLookupsTotal.Collect(ch)
}
