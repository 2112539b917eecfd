// Package observability provides Prometheus metrics for monitoring the gateway.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/avatar-gateway/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Session  *metrics.SessionMetrics
	Auth     *metrics.AuthMetrics
	Stream   *metrics.StreamMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	sessionMetrics, err := metrics.NewSessionMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create session metrics: %w", err)
	}

	authMetrics, err := metrics.NewAuthMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth metrics: %w", err)
	}

	streamMetrics, err := metrics.NewStreamMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Session:  sessionMetrics,
		Auth:     authMetrics,
		Stream:   streamMetrics,
	}, nil
}

// Handler returns the HTTP handler serving the Prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
