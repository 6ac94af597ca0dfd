// Package metric provides the Prometheus registry and the observability HTTP
// server used by eidetic.
//
// # Architecture
//
//  1. Core Metrics: process-level metrics registered automatically (Metrics type)
//  2. Registry: owner-scoped registration for cache metrics (MetricsRegistrar interface)
//  3. HTTP Server: metrics, health and read-only cache statistics (Server type)
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	sessions, _ := cache.New[*Session](
//	    cache.WithMetrics[*Session](registry, "sessions"),
//	)
//
//	server := metric.NewServer(9090, "/metrics", registry, logger)
//	server.Attach("sessions", func() any { return sessions.Stats().Summary() })
//
//	go func() {
//	    if err := server.Start(ctx); err != nil {
//	        logger.Error("metrics server failed", "error", err)
//	    }
//	}()
//
// Endpoints:
//
//   - GET /metrics              Prometheus exposition (OpenMetrics enabled)
//   - GET /health               aggregated health.Status, 503 when unhealthy
//   - GET /debug/caches         names of attached caches
//   - GET /debug/caches/{name}  statistics snapshot of one cache
//
// The server never exposes cache contents.
//
// # Duplicate Registration
//
// Registering the same owner and metric name twice returns an Invalid error
// wrapping errors.ErrDuplicateMetric. Two caches sharing one registry must use
// different owner prefixes.
package metric
