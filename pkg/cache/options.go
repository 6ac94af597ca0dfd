package cache

import (
	"log/slog"
	"time"

	"github.com/mac-/eidetic/metric"
	"github.com/mac-/eidetic/pkg/clock"
	"github.com/mac-/eidetic/pkg/clone"
)

// Option configures cache behavior using the functional options pattern.
type Option[V any] func(*cacheOptions[V])

// cacheOptions holds internal configuration for cache instances.
// Stats are ALWAYS collected; metrics are optional via WithMetrics().
type cacheOptions[V any] struct {
	name             string
	maxSize          int
	canPutWhenFull   bool
	defaultDuration  time.Duration
	slidingByDefault bool

	logger *slog.Logger
	clock  clock.Clock
	copier clone.Copier[V]

	// metricsReg is optional - if provided, cache stats are also exposed as Prometheus metrics
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string

	evictCallback EvictCallback[V]
}

// WithName labels the cache in logs. WithMetrics uses its own prefix.
func WithName[V any](name string) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.name = name
	}
}

// WithMaxSize sets the capacity bound. New rejects non-positive sizes.
func WithMaxSize[V any](maxSize int) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.maxSize = maxSize
	}
}

// WithCanPutWhenFull lets Put exceed the capacity bound, in which case the
// least recently used entry is evicted shortly afterwards. When false, Put
// rejects new keys once the cache is full.
func WithCanPutWhenFull[V any](allowed bool) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.canPutWhenFull = allowed
	}
}

// WithDefaultDuration sets the lifetime used by Put calls without WithDuration.
// If d is <= 0, this option is ignored.
func WithDefaultDuration[V any](d time.Duration) Option[V] {
	return func(opts *cacheOptions[V]) {
		if d > 0 {
			opts.defaultDuration = clampDuration(d)
		}
	}
}

// WithSlidingByDefault makes Put calls without WithSlidingExpiration use sliding expiration.
func WithSlidingByDefault[V any](sliding bool) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.slidingByDefault = sliding
	}
}

// WithLogger sets the diagnostic logger. A nil logger is ignored.
func WithLogger[V any](logger *slog.Logger) Option[V] {
	return func(opts *cacheOptions[V]) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// WithClock replaces the time source and timer facility, typically with
// clock.Fake in tests. A nil clock is ignored.
func WithClock[V any](c clock.Clock) Option[V] {
	return func(opts *cacheOptions[V]) {
		if c != nil {
			opts.clock = c
		}
	}
}

// WithCopier replaces the deep-copy capability used on Put and Get.
// A nil copier is ignored.
func WithCopier[V any](copier clone.Copier[V]) Option[V] {
	return func(opts *cacheOptions[V]) {
		if copier != nil {
			opts.copier = copier
		}
	}
}

// WithMetrics enables Prometheus metrics export for cache statistics.
// If registry is nil or prefix is empty, this option is ignored.
func WithMetrics[V any](registry *metric.MetricsRegistry, prefix string) Option[V] {
	return func(opts *cacheOptions[V]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithEvictionCallback sets a callback invoked whenever an entry is removed.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.evictCallback = callback
	}
}

// applyOptions applies functional options on top of the defaults.
func applyOptions[V any](options ...Option[V]) *cacheOptions[V] {
	opts := &cacheOptions[V]{
		maxSize:         DefaultMaxSize,
		defaultDuration: DefaultDuration,
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	if opts.logger == nil {
		opts.logger = slog.New(slog.DiscardHandler)
	}
	if opts.clock == nil {
		opts.clock = clock.New()
	}
	if opts.copier == nil {
		opts.copier = clone.Deep[V]()
	}

	return opts
}

// PutOption configures a single Put call.
type PutOption func(*putOptions)

type putOptions struct {
	duration time.Duration
	sliding  bool
}

// WithDuration sets the entry lifetime. It is clamped to [0, MaxDuration].
// A zero duration on an existing key keeps that key's remaining lifetime and
// its pending expiry, so the value can be replaced without restarting the countdown.
func WithDuration(d time.Duration) PutOption {
	return func(po *putOptions) {
		po.duration = d
	}
}

// WithSlidingExpiration makes every successful Get restart the entry's lifetime.
func WithSlidingExpiration(enabled bool) PutOption {
	return func(po *putOptions) {
		po.sliding = enabled
	}
}
