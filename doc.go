// Package eidetic is an in-process key/value cache with per-entry expiry,
// bounded capacity and copy isolation.
//
// # Philosophy
//
// A cached value belongs to the cache. Values are deep-copied when they go in
// and again when they come out, so a caller can never mutate what another
// caller reads. Expiry is exact per entry: an absolute entry lives for its
// duration from the last write, a sliding entry for its duration from the last
// read or write.
//
// eidetic MUST NOT:
//   - share entries across processes
//   - persist entries to disk
//   - expose cache contents over the network
//
// # Architecture
//
//	pkg/cache   Cache[V] interface, the Engine, statistics, metrics, config
//	pkg/clock   time source and timers, with a manual Fake for tests
//	pkg/clone   value copiers (deep copy by default)
//	metric      Prometheus registry and the observability HTTP server
//	health      component health states and aggregation
//	config      layered JSON/YAML configuration with schema validation
//	errors      classified errors (invalid, transient, fatal)
//	cmd/eidetic CLI: serve, validate, version
//
// # Capacity
//
// A cache holds at most MaxSize entries. When a put for a new key would exceed
// it, the put is rejected unless CanPutWhenFull is set; then the put succeeds
// and the least recently used entry is evicted shortly after, on a timer. The
// overflow is therefore visible for a moment, which callers must tolerate.
//
// # Running
//
//	go build -o bin/eidetic ./cmd/eidetic
//	./bin/eidetic validate --config eidetic.yaml
//	./bin/eidetic serve --config eidetic.yaml --log-level debug
//
// serve exposes /metrics, /health and /debug/caches on the configured port and,
// when the workload is enabled, drives the cache with rate-limited
// read-through traffic so its counters move.
package eidetic
