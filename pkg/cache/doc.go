// Package cache provides an in-process, thread-safe key/value cache with
// per-entry expiration, a capacity bound with least-recently-used eviction,
// deep-copy isolation of stored values, built-in statistics, and optional
// Prometheus metrics integration.
//
// # Quick Start
//
//	c, err := cache.New[*Session]()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	ok, err := c.Put("user:42", session, cache.WithDuration(30*time.Minute))
//	s, found := c.Get("user:42")
//
// # Expiration
//
// Every entry has its own lifetime, set per Put with WithDuration and
// defaulting to one second. Two modes exist:
//
//   - Absolute: the entry is removed once its lifetime has elapsed since the put.
//   - Sliding: every successful Get restarts the lifetime (WithSlidingExpiration).
//
// Each resident entry owns exactly one pending expiry timer. Overwrites,
// refreshes, deletes, and Clear cancel the previous timer, and a timer that
// fires late for a superseded entry does nothing.
//
// A Put with a zero duration on a key that is already present replaces the
// value but keeps the existing countdown:
//
//	c.Put("token", t1, cache.WithDuration(time.Minute))
//	// ... 40s later
//	c.Put("token", t2, cache.WithDuration(0)) // still expires 20s from now
//
// TTL reports the whole seconds left, rounding the elapsed time up.
//
// # Capacity
//
// WithMaxSize bounds the number of entries (500 by default). When the cache
// holds that many entries, a Put for a new key either:
//
//   - is rejected, returning (false, nil), which is the default; or
//   - succeeds with WithCanPutWhenFull(true), after which the least recently
//     used entry is evicted on the timer facility, not inside Put.
//
// Overwrites of resident keys never count against the bound. Because eviction
// is deferred, Size can briefly exceed the bound.
//
// # Copy Isolation
//
// Put stores a deep copy and Get returns a deep copy, so neither the caller's
// original value nor a value returned by Get shares mutable state with the
// cache. The default copier is reflection based (clone.Deep); types can
// implement clone.Cloner or the cache can be given a clone.Copier with
// WithCopier, for example bytes.Clone for []byte values.
//
// # Observability
//
// Statistics are always collected and available via Stats():
//
//	c.Stats().Hits()
//	c.Stats().Misses()       // TotalRequests() - Hits(), always
//	c.Stats().Summary()      // JSON-serialisable snapshot
//
// Prometheus metrics are optional:
//
//	registry := metric.NewMetricsRegistry()
//	c, _ := cache.New[[]byte](
//		cache.WithMetrics[[]byte](registry, "api_cache"),
//	)
//
// Exported series, labelled component=<prefix>:
//
//   - eidetic_cache_hits_total
//   - eidetic_cache_misses_total
//   - eidetic_cache_sets_total
//   - eidetic_cache_rejections_total
//   - eidetic_cache_removals_total{reason="expired|evicted|deleted|cleared"}
//   - eidetic_cache_size
//
// Engine.Health reports the cache as unhealthy once closed and degraded while
// it is full and rejecting new keys, for use with health.Monitor.Register.
//
// Diagnostics go to the *slog.Logger given with WithLogger; the default
// discards them. Per-operation messages use LevelTrace, capacity decisions
// use Debug, and rejected arguments use Warn.
//
// # Configuration
//
// Config mirrors the options and accepts duration strings in JSON and YAML:
//
//	cfg := cache.DefaultConfig()
//	cfg.MaxSize = 10000
//	c, err := cache.NewFromConfig[*Entity](cfg, cache.WithLogger[*Entity](logger))
//
// A disabled Config yields a no-op cache that never stores anything.
//
// # Testing
//
// Timers and time are taken from a clock.Clock. Tests pass clock.NewFake and
// move time explicitly:
//
//	fake := clock.NewFake(time.Now())
//	c, _ := cache.New[string](cache.WithClock[string](fake))
//	c.Put("k", "v", cache.WithDuration(time.Second))
//	fake.Advance(time.Second) // "k" expires here, synchronously
package cache
