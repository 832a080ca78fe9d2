package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics contains Prometheus metrics for the reference-record cache.
type CacheMetrics struct {
	hitsGauge       prometheus.Gauge
	missesGauge     prometheus.Gauge
	sizeGauge       prometheus.Gauge
	evictionsGauge  prometheus.Gauge
	efficiencyGauge prometheus.Gauge
}

// NewCacheMetrics creates and registers new cache metrics.
func NewCacheMetrics(registry *prometheus.Registry) (*CacheMetrics, error) {
	m := &CacheMetrics{
		hitsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "companyfix_cache_hits",
			Help: "Lifetime cache hits of the current run",
		}),
		missesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "companyfix_cache_misses",
			Help: "Lifetime cache misses of the current run",
		}),
		sizeGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "companyfix_cache_size",
			Help: "Entries currently held by the cache",
		}),
		evictionsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "companyfix_cache_evictions",
			Help: "Entries evicted by LRU or TTL",
		}),
		efficiencyGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "companyfix_cache_efficiency_percent",
			Help: "Hit ratio of the cache in percent",
		}),
	}

	collectors := []prometheus.Collector{
		m.hitsGauge, m.missesGauge, m.sizeGauge, m.evictionsGauge, m.efficiencyGauge,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Update publishes a cache stats snapshot.
func (m *CacheMetrics) Update(hits, misses, evictions uint64, size int, efficiency float64) {
	if m == nil {
		return
	}
	m.hitsGauge.Set(float64(hits))
	m.missesGauge.Set(float64(misses))
	m.sizeGauge.Set(float64(size))
	m.evictionsGauge.Set(float64(evictions))
	m.efficiencyGauge.Set(efficiency)
}
