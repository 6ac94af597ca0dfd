package cache

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/mac-/eidetic/errors"
	"github.com/mac-/eidetic/metric"
	"github.com/mac-/eidetic/pkg/clock"
	"github.com/mac-/eidetic/pkg/clone"
)

// entry is one resident key. Stored values are private copies and are never
// mutated in place; an overwrite installs a new entry.
type entry[V any] struct {
	key      string
	value    V
	duration time.Duration
	sliding  bool

	lastAccessed time.Time
	lastModified time.Time
	seq          uint64 // access order, breaks lastAccessed ties

	expiry *expiry
}

// expiry is the handle of one scheduled expiration. Timer callbacks compare
// handles by identity and do nothing if the entry has been given a new one.
type expiry struct {
	timer clock.Timer
}

func (x *expiry) stop() {
	if x != nil && x.timer != nil {
		x.timer.Stop()
	}
}

type removal[V any] struct {
	key   string
	value V
}

// Engine is the cache. It is safe for concurrent use.
type Engine[V any] struct {
	mu              sync.Mutex
	items           map[string]*entry[V]
	seq             uint64
	closed          bool
	pendingEviction []clock.Timer

	name             string
	maxSize          int
	canPutWhenFull   bool
	defaultDuration  time.Duration
	slidingByDefault bool

	clock   clock.Clock
	copier  clone.Copier[V]
	logger  *slog.Logger
	evictFn EvictCallback[V]

	stats         *Statistics   // ALWAYS initialized
	metrics       *cacheMetrics // Optional, if metrics enabled
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
}

var _ Cache[string] = (*Engine[string])(nil)

// New creates a cache. Stats are always enabled for observability.
// Use WithMetrics() to also export them as Prometheus metrics.
func New[V any](options ...Option[V]) (*Engine[V], error) {
	opts := applyOptions(options...)

	if opts.maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "cache", "New",
			fmt.Sprintf("max size must be positive, got %d", opts.maxSize))
	}

	var metrics *cacheMetrics
	// Optionally expose stats as Prometheus metrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "New", "metrics registration")
		}
	}

	logger := opts.logger.With("component", "cache")
	if opts.name != "" {
		logger = logger.With("cache", opts.name)
	}

	return &Engine[V]{
		items:            make(map[string]*entry[V]),
		name:             opts.name,
		maxSize:          opts.maxSize,
		canPutWhenFull:   opts.canPutWhenFull,
		defaultDuration:  opts.defaultDuration,
		slidingByDefault: opts.slidingByDefault,
		clock:            opts.clock,
		copier:           opts.copier,
		logger:           logger,
		evictFn:          opts.evictCallback,
		stats:            NewStatistics(),
		metrics:          metrics,
		metricsReg:       opts.metricsReg,
		metricsPrefix:    opts.metricsPrefix,
	}, nil
}

// Name returns the name the cache was created with, possibly empty.
func (c *Engine[V]) Name() string {
	return c.name
}

// Put stores a private copy of value under key.
//
// Without options the entry lives for the configured default duration with
// absolute expiration. A zero duration on an existing key keeps its remaining
// lifetime and its pending expiry. A zero duration on a new key makes the
// entry expire as soon as the timer facility runs.
//
// When the cache is full, a new key is rejected with (false, nil) unless
// overflow is allowed, in which case the least recently used entry is evicted
// shortly afterwards. Overwriting an existing key is never rejected.
func (c *Engine[V]) Put(key string, value V, opts ...PutOption) (bool, error) {
	c.trace("attempting to put entry", "key", key)

	if err := validateKey(key); err != nil {
		c.logger.Warn("put rejected", "key", key, "error", err)
		return false, err
	}
	if err := validateValue(value); err != nil {
		c.logger.Warn("put rejected", "key", key, "error", err)
		return false, err
	}

	po := putOptions{duration: c.defaultDuration, sliding: c.slidingByDefault}
	for _, opt := range opts {
		if opt != nil {
			opt(&po)
		}
	}
	duration := clampDuration(po.duration)

	stored := c.copier.Copy(value)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, errors.WrapFatal(errors.ErrClosed, "cache", "Put", "put after close")
	}

	now := c.clock.Now()
	existing, exists := c.items[key]

	var kept *expiry
	if exists && duration == 0 && existing.expiry != nil {
		// The pending timer was armed at the last put, or the last read for
		// sliding entries.
		anchor := existing.lastModified
		if existing.sliding {
			anchor = existing.lastAccessed
		}
		remaining := existing.duration - now.Sub(anchor)
		if remaining < 0 {
			remaining = 0
		}
		duration = remaining
		kept = existing.expiry
		c.trace("keeping remaining lifetime", "key", key, "remaining", remaining)
	}

	if !exists && len(c.items) >= c.maxSize && !c.canPutWhenFull {
		c.mu.Unlock()
		c.stats.Rejection()
		if c.metrics != nil {
			c.metrics.recordRejection()
		}
		c.logger.Debug("cache full, put rejected", "key", key, "max_size", c.maxSize)
		return false, nil
	}

	if exists && kept == nil {
		existing.expiry.stop()
	}

	c.seq++
	e := &entry[V]{
		key:          key,
		value:        stored,
		duration:     duration,
		sliding:      po.sliding,
		lastAccessed: now,
		lastModified: now,
		seq:          c.seq,
		expiry:       kept,
	}
	if e.expiry == nil {
		e.expiry = c.scheduleExpiry(key, duration)
	}
	c.items[key] = e

	size := len(c.items)
	overflow := size > c.maxSize
	if overflow {
		c.pendingEviction = append(c.pendingEviction, c.clock.AfterFunc(0, c.evictLeastRecentlyUsed))
	}
	c.publishSizeLocked()
	c.mu.Unlock()

	c.stats.Set()
	if c.metrics != nil {
		c.metrics.recordSet()
	}

	if overflow {
		c.logger.Debug("cache over capacity, eviction scheduled", "size", size, "max_size", c.maxSize)
	}
	c.trace("put entry", "key", key, "duration", duration, "sliding", po.sliding)
	return true, nil
}

// Get returns a private copy of the value stored under key. A hit refreshes
// the entry's recency and, for sliding entries, restarts its lifetime.
func (c *Engine[V]) Get(key string) (V, bool) {
	c.trace("attempting to get entry", "key", key)

	c.mu.Lock()
	e, ok := c.items[key]
	c.stats.Request(ok)
	if !ok {
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.recordRequest(false)
		}
		c.trace("cache miss", "key", key)
		var zero V
		return zero, false
	}

	now := c.clock.Now()
	if e.sliding {
		e.expiry.stop()
		e.expiry = c.scheduleExpiry(key, e.duration)
	}
	e.lastAccessed = now
	c.seq++
	e.seq = c.seq
	value := e.value
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.recordRequest(true)
	}
	c.trace("cache hit", "key", key)
	return c.copier.Copy(value), true
}

// Delete removes an entry by key. Returns true if the key existed.
func (c *Engine[V]) Delete(key string) bool {
	c.trace("attempting to delete entry", "key", key)

	c.mu.Lock()
	e, ok := c.items[key]
	if ok {
		c.removeLocked(e)
		c.publishSizeLocked()
	}
	c.mu.Unlock()

	if !ok {
		return false
	}

	c.stats.Delete()
	c.removed(RemovalDeleted, removal[V]{key: e.key, value: e.value})
	c.trace("deleted entry", "key", key)
	return true
}

// Clear removes every entry and cancels their expirations. Hit and request
// counters are kept.
func (c *Engine[V]) Clear() {
	c.trace("clearing cache")

	c.mu.Lock()
	removed := c.drainLocked()
	c.publishSizeLocked()
	c.mu.Unlock()

	c.removed(RemovalCleared, removed...)
	c.logger.Debug("cache cleared", "removed", len(removed))
}

// TTL returns the whole seconds left before key expires, or 0 if the key is
// absent. Elapsed time is counted from the last access for sliding entries and
// from the last put otherwise, and is rounded up to the next second. The
// result is not clamped and can be negative for an entry whose expiry is due.
func (c *Engine[V]) TTL(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok || e.expiry == nil {
		return 0
	}

	anchor := e.lastModified
	if e.sliding {
		anchor = e.lastAccessed
	}
	elapsed := c.clock.Now().Sub(anchor)
	if elapsed < 0 {
		elapsed = 0
	}

	remaining := e.duration.Seconds() - math.Ceil(elapsed.Seconds())
	return int(math.Floor(remaining))
}

// Hits returns the number of lookups that found their key.
func (c *Engine[V]) Hits() int64 {
	return c.stats.Hits()
}

// Misses returns the number of lookups that did not find their key.
// It always equals TotalRequests minus Hits.
func (c *Engine[V]) Misses() int64 {
	return c.stats.Misses()
}

// TotalRequests returns the number of lookups.
func (c *Engine[V]) TotalRequests() int64 {
	return c.stats.TotalRequests()
}

// Size returns the current number of entries in the cache.
func (c *Engine[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns all resident keys in unspecified order.
func (c *Engine[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}
	return keys
}

// Stats returns the cache statistics.
func (c *Engine[V]) Stats() *Statistics {
	return c.stats
}

// Close stops every pending timer and drops all entries without invoking the
// eviction callback. Later puts fail with an error wrapping errors.ErrClosed
// and lookups report the key absent. Close is idempotent.
func (c *Engine[V]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	removed := c.drainLocked()
	for _, t := range c.pendingEviction {
		t.Stop()
	}
	c.pendingEviction = nil
	c.publishSizeLocked()
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.unregister(c.metricsReg, c.metricsPrefix)
	}
	c.logger.Debug("cache closed", "dropped", len(removed))
	return nil
}

// scheduleExpiry arms a timer that removes key after d. Caller holds c.mu.
func (c *Engine[V]) scheduleExpiry(key string, d time.Duration) *expiry {
	x := &expiry{}
	x.timer = c.clock.AfterFunc(d, func() {
		c.expire(key, x)
	})
	return x
}

// expire runs on the timer facility. It removes key only if the entry still
// carries the handle that scheduled this call.
func (c *Engine[V]) expire(key string, x *expiry) {
	c.mu.Lock()
	e, ok := c.items[key]
	if !ok || e.expiry != x {
		c.mu.Unlock()
		return
	}
	c.removeLocked(e)
	c.publishSizeLocked()
	c.mu.Unlock()

	c.stats.Expiration()
	c.removed(RemovalExpired, removal[V]{key: e.key, value: e.value})
	c.trace("entry expired", "key", key)
}

// evictLeastRecentlyUsed runs once per overflowing put and removes the single
// least recently used entry if the cache is still over capacity.
func (c *Engine[V]) evictLeastRecentlyUsed() {
	c.mu.Lock()
	if len(c.pendingEviction) > 0 {
		c.pendingEviction = c.pendingEviction[1:]
	}
	if c.closed || len(c.items) <= c.maxSize {
		c.mu.Unlock()
		return
	}

	var victim *entry[V]
	for _, e := range c.items {
		if victim == nil || e.lastAccessed.Before(victim.lastAccessed) ||
			(e.lastAccessed.Equal(victim.lastAccessed) && e.seq < victim.seq) {
			victim = e
		}
	}
	c.removeLocked(victim)
	size := len(c.items)
	c.publishSizeLocked()
	c.mu.Unlock()

	c.stats.Eviction()
	c.removed(RemovalEvicted, removal[V]{key: victim.key, value: victim.value})
	c.logger.Debug("evicted least recently used entry", "key", victim.key, "size", size)
}

// removeLocked drops e and cancels its expiry. Caller holds c.mu.
func (c *Engine[V]) removeLocked(e *entry[V]) {
	e.expiry.stop()
	delete(c.items, e.key)
}

// drainLocked empties the cache and returns what was resident. Caller holds c.mu.
func (c *Engine[V]) drainLocked() []removal[V] {
	removed := make([]removal[V], 0, len(c.items))
	for _, e := range c.items {
		e.expiry.stop()
		removed = append(removed, removal[V]{key: e.key, value: e.value})
	}
	c.items = make(map[string]*entry[V])
	return removed
}

// publishSizeLocked copies the entry count into the statistics and the size
// gauge. Caller holds c.mu, so concurrent writers publish in mutation order.
func (c *Engine[V]) publishSizeLocked() {
	size := len(c.items)
	c.stats.UpdateSize(int64(size))
	if c.metrics != nil {
		c.metrics.updateSize(size)
	}
}

// removed counts removals and notifies the eviction callback.
// Must be called without holding c.mu.
func (c *Engine[V]) removed(reason RemovalReason, entries ...removal[V]) {
	if c.metrics != nil && len(entries) > 0 {
		c.metrics.recordRemoval(reason, len(entries))
	}

	if c.evictFn == nil {
		return
	}
	for _, r := range entries {
		c.evictFn(r.key, c.copier.Copy(r.value), reason)
	}
}

func (c *Engine[V]) trace(msg string, args ...any) {
	c.logger.Log(context.Background(), LevelTrace, msg, args...)
}
