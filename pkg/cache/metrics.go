package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mac-/eidetic/metric"
)

// cacheMetrics holds Prometheus metrics for cache operations.
type cacheMetrics struct {
	// Counter metrics - directly incremented without stats duplication
	hits       prometheus.Counter
	misses     prometheus.Counter
	sets       prometheus.Counter
	rejections prometheus.Counter
	removals   *prometheus.CounterVec // by reason

	// Gauge metrics - updated on operations
	size prometheus.Gauge
}

// newCacheMetrics creates and registers cache metrics with the provided registry.
func newCacheMetrics(registry *metric.MetricsRegistry, prefix string) (*cacheMetrics, error) {
	labels := prometheus.Labels{"component": prefix}

	m := &cacheMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "hits_total",
			ConstLabels: labels,
			Help:        "Total number of cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "misses_total",
			ConstLabels: labels,
			Help:        "Total number of cache misses",
		}),
		sets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "sets_total",
			ConstLabels: labels,
			Help:        "Total number of successful cache puts",
		}),
		rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "rejections_total",
			ConstLabels: labels,
			Help:        "Total number of puts refused because the cache was full",
		}),
		removals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "removals_total",
			ConstLabels: labels,
			Help:        "Total number of entries removed, by reason",
		}, []string{"reason"}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of entries in cache",
		}),
	}

	// Register all metrics with the registry
	if err := registry.RegisterCounter(prefix, "cache_hits", m.hits); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "cache_misses", m.misses); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "cache_sets", m.sets); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "cache_rejections", m.rejections); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "cache_removals", m.removals); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "cache_size", m.size); err != nil {
		return nil, err
	}

	// Pre-create each reason so all series are exported from the start
	for _, reason := range []RemovalReason{RemovalExpired, RemovalEvicted, RemovalDeleted, RemovalCleared} {
		m.removals.WithLabelValues(string(reason))
	}

	return m, nil
}

// unregister removes every metric from the registry. Used on Close so the
// prefix can be reused by a new cache.
func (m *cacheMetrics) unregister(registry *metric.MetricsRegistry, prefix string) {
	for _, name := range []string{
		"cache_hits", "cache_misses", "cache_sets",
		"cache_rejections", "cache_removals", "cache_size",
	} {
		registry.Unregister(prefix, name)
	}
}

func (m *cacheMetrics) recordRequest(hit bool) {
	if hit {
		m.hits.Inc()
		return
	}
	m.misses.Inc()
}

func (m *cacheMetrics) recordSet() {
	m.sets.Inc()
}

func (m *cacheMetrics) recordRejection() {
	m.rejections.Inc()
}

func (m *cacheMetrics) recordRemoval(reason RemovalReason, count int) {
	m.removals.WithLabelValues(string(reason)).Add(float64(count))
}

// updateSize sets the current cache size.
func (m *cacheMetrics) updateSize(size int) {
	m.size.Set(float64(size))
}
