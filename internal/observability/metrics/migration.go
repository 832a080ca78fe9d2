// Package metrics provides Prometheus collectors for the repair engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MigrationMetrics contains Prometheus metrics for batch engine operations.
type MigrationMetrics struct {
	recordsTotal      *prometheus.CounterVec
	pagesTotal        *prometheus.CounterVec
	commitDuration    *prometheus.HistogramVec
	candidatesChecked *prometheus.CounterVec
	resolutionsTotal  *prometheus.CounterVec
}

// NewMigrationMetrics creates and registers new migration metrics.
func NewMigrationMetrics(registry *prometheus.Registry) (*MigrationMetrics, error) {
	m := &MigrationMetrics{
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "companyfix_records_total",
				Help: "Records handled by the engine, partitioned by outcome",
			},
			[]string{"job", "outcome"},
		),
		pagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "companyfix_pages_total",
				Help: "Pages fetched by the engine, partitioned by result",
			},
			[]string{"job", "result"},
		),
		commitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "companyfix_commit_duration_seconds",
				Help:    "Duration of atomic page commits",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		),
		candidatesChecked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "companyfix_candidates_checked_total",
				Help: "Owner candidates examined by the resolver",
			},
			[]string{"job"},
		),
		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "companyfix_resolutions_total",
				Help: "Resolver outcomes, partitioned by result",
			},
			[]string{"job", "result"},
		),
	}

	collectors := []prometheus.Collector{
		m.recordsTotal,
		m.pagesTotal,
		m.commitDuration,
		m.candidatesChecked,
		m.resolutionsTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordOutcome counts one processed record. outcome is one of
// updated, skipped, error.
func (m *MigrationMetrics) RecordOutcome(job, outcome string) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(job, outcome).Inc()
}

// RecordPage counts one fetched page. result is one of committed, empty,
// failed, dryrun.
func (m *MigrationMetrics) RecordPage(job, result string) {
	if m == nil {
		return
	}
	m.pagesTotal.WithLabelValues(job, result).Inc()
}

// ObserveCommit records the duration of one atomic page commit.
func (m *MigrationMetrics) ObserveCommit(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.commitDuration.WithLabelValues(job).Observe(d.Seconds())
}

// AddCandidatesChecked counts resolver candidate examinations.
func (m *MigrationMetrics) AddCandidatesChecked(job string, n int) {
	if m == nil {
		return
	}
	m.candidatesChecked.WithLabelValues(job).Add(float64(n))
}

// RecordResolution counts one resolver outcome, found or not_found.
func (m *MigrationMetrics) RecordResolution(job, result string) {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(job, result).Inc()
}
