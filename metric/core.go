package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric exported by eidetic.
const Namespace = "eidetic"

// Metrics contains process-level metrics that are not tied to one cache
type Metrics struct {
	BuildInfo      *prometheus.GaugeVec
	CachesAttached prometheus.Gauge
	HTTPRequests   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "build_info",
				Help:      "Build information, value is always 1",
			},
			[]string{"version"},
		),

		CachesAttached: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "server",
				Name:      "caches_attached",
				Help:      "Number of caches exposed on the debug endpoints",
			},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "server",
				Name:      "http_requests_total",
				Help:      "Requests served by the observability server",
			},
			[]string{"route", "code"},
		),
	}
}

// RecordBuild marks the running version.
func (m *Metrics) RecordBuild(version string) {
	m.BuildInfo.WithLabelValues(version).Set(1)
}
