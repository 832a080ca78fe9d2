// Package observability provides metrics and monitoring capabilities for companyfix.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldrow/companyfix/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Migration *metrics.MigrationMetrics
	Cache     *metrics.CacheMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	migrationMetrics, err := metrics.NewMigrationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration metrics: %w", err)
	}

	cacheMetrics, err := metrics.NewCacheMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Migration: migrationMetrics,
		Cache:     cacheMetrics,
	}, nil
}

// Handler returns an http.Handler serving the registry in Prometheus format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
