package cache

import (
	"log/slog"
	"reflect"
	"time"

	"github.com/mac-/eidetic/errors"
)

// MaxDuration is the longest lifetime an entry can be given. Longer requests
// are clamped. It is the largest delay a signed 32-bit millisecond timer can
// hold (2,147,483.647s), kept so lifetimes behave the same as in caches built on
// such timers.
const MaxDuration = time.Duration(1<<31-1) * time.Millisecond

// DefaultMaxSize is the capacity used when none is configured.
const DefaultMaxSize = 500

// DefaultDuration is the lifetime used when Put is called without WithDuration.
const DefaultDuration = time.Second

// LevelTrace is below slog.LevelDebug and carries per-operation chatter.
const LevelTrace = slog.LevelDebug - 4

// Cache represents the cache interface satisfied by Engine and by the no-op
// cache returned for disabled configurations.
type Cache[V any] interface {
	// Get retrieves a copy of the value stored under key. The boolean reports
	// whether the key was present; a cached zero value is returned with true.
	Get(key string) (V, bool)

	// Put stores a copy of value under key. It returns false without error
	// when the cache is full and overflow is not allowed.
	Put(key string, value V, opts ...PutOption) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key string) bool

	// Clear removes all entries. Hit and request counters are kept.
	Clear()

	// TTL returns the whole seconds left before key expires, 0 if absent.
	TTL(key string) int

	// Hits returns the number of successful lookups.
	Hits() int64

	// Misses returns the number of failed lookups.
	Misses() int64

	// Size returns the current number of entries in the cache.
	Size() int

	// Keys returns all resident keys in unspecified order.
	Keys() []string

	// Stats returns cache statistics, nil for the no-op cache.
	Stats() *Statistics

	// Close stops all pending timers and releases the entries.
	Close() error
}

// RemovalReason says why an entry left the cache.
type RemovalReason string

const (
	// RemovalExpired means the entry's expiry timer fired.
	RemovalExpired RemovalReason = "expired"
	// RemovalEvicted means the entry was the least recently used when the cache overflowed.
	RemovalEvicted RemovalReason = "evicted"
	// RemovalDeleted means Delete was called for the key.
	RemovalDeleted RemovalReason = "deleted"
	// RemovalCleared means Clear was called.
	RemovalCleared RemovalReason = "cleared"
)

// EvictCallback is called when an entry leaves the cache for any reason
// other than being overwritten. It runs outside the cache lock.
type EvictCallback[V any] func(key string, value V, reason RemovalReason)

// validateKey validates a cache key for basic requirements.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "cache", "Put", "key cannot be empty")
	}
	return nil
}

// validateValue rejects values that were never supplied: a nil interface, or a
// nil pointer, map, slice, channel or func. Zero values of other kinds are valid.
func validateValue(value any) error {
	if isAbsent(value) {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "cache", "Put", "value cannot be nil")
	}
	return nil
}

func isAbsent(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// clampDuration bounds a requested lifetime to [0, MaxDuration].
func clampDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > MaxDuration {
		return MaxDuration
	}
	return d
}
