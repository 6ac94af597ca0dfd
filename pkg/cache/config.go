package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mac-/eidetic/errors"
)

// Config contains configuration for cache creation.
type Config struct {
	// Enabled determines if caching is enabled.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Name labels the cache in logs and on the debug endpoints. Generated when empty.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// MaxSize is the maximum number of entries.
	MaxSize int `json:"max_size" yaml:"max_size"`

	// CanPutWhenFull allows puts beyond MaxSize, followed by an LRU eviction.
	CanPutWhenFull bool `json:"can_put_when_full" yaml:"can_put_when_full"`

	// DefaultDuration is the lifetime of entries put without an explicit duration.
	DefaultDuration time.Duration `json:"default_duration" yaml:"default_duration"`

	// SlidingByDefault makes entries put without an explicit mode use sliding expiration.
	SlidingByDefault bool `json:"sliding_by_default" yaml:"sliding_by_default"`
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		MaxSize:         DefaultMaxSize,
		DefaultDuration: DefaultDuration,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil // No validation needed if disabled
	}

	if c.MaxSize <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("max_size must be positive, got %d", c.MaxSize))
	}
	if c.DefaultDuration <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("default_duration must be positive, got %v", c.DefaultDuration))
	}
	if c.DefaultDuration > MaxDuration {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("default_duration must not exceed %v, got %v", MaxDuration, c.DefaultDuration))
	}

	return nil
}

// NewFromConfig creates a cache based on the provided configuration.
// Returns a disabled cache (NoopCache) if config.Enabled is false.
// Additional functional options can be passed to configure metrics, callbacks, etc.;
// they are applied after the configured values and may override them.
func NewFromConfig[V any](config Config, options ...Option[V]) (Cache[V], error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "cache", "NewFromConfig", "config validation failed")
	}

	if !config.Enabled {
		return NewNoop[V](), nil
	}

	name := config.Name
	if name == "" {
		name = "cache-" + uuid.NewString()[:8]
	}

	opts := []Option[V]{
		WithName[V](name),
		WithMaxSize[V](config.MaxSize),
		WithCanPutWhenFull[V](config.CanPutWhenFull),
		WithDefaultDuration[V](config.DefaultDuration),
		WithSlidingByDefault[V](config.SlidingByDefault),
	}
	opts = append(opts, options...)

	return New[V](opts...)
}

// NewNoop creates a cache that does nothing (always returns cache misses).
// This is useful when caching is disabled via configuration.
func NewNoop[V any]() Cache[V] {
	return &noopCache[V]{}
}

// noopCache is a cache implementation that does nothing.
type noopCache[V any] struct{}

func (c *noopCache[V]) Get(_ string) (V, bool) {
	var zero V
	return zero, false
}

func (c *noopCache[V]) Put(_ string, _ V, _ ...PutOption) (bool, error) {
	return false, nil
}

func (c *noopCache[V]) Delete(_ string) bool {
	return false
}

func (c *noopCache[V]) Clear() {}

func (c *noopCache[V]) TTL(_ string) int {
	return 0
}

func (c *noopCache[V]) Hits() int64 {
	return 0
}

func (c *noopCache[V]) Misses() int64 {
	return 0
}

func (c *noopCache[V]) Size() int {
	return 0
}

func (c *noopCache[V]) Keys() []string {
	return nil
}

func (c *noopCache[V]) Stats() *Statistics {
	return nil
}

func (c *noopCache[V]) Close() error {
	return nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Config to support
// duration strings (e.g., "1h", "5m", "30s") in addition to nanosecond integers.
func (c *Config) UnmarshalJSON(data []byte) error {
	// Use an alias to avoid infinite recursion
	type Alias Config

	aux := &struct {
		DefaultDuration json.RawMessage `json:"default_duration,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if len(aux.DefaultDuration) > 0 {
		d, err := parseDurationField(aux.DefaultDuration, "default_duration")
		if err != nil {
			return err
		}
		c.DefaultDuration = d
	}

	return nil
}

// parseDurationField parses a JSON duration field that can be either:
// - An integer (nanoseconds) for backward compatibility
// - A string (duration like "1h", "5m", "30s")
func parseDurationField(data json.RawMessage, fieldName string) (time.Duration, error) {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		duration, err := time.ParseDuration(str)
		if err != nil {
			return 0, fmt.Errorf("invalid duration string for %s: %w", fieldName, err)
		}
		return duration, nil
	}

	var nsec int64
	if err := json.Unmarshal(data, &nsec); err != nil {
		return 0, fmt.Errorf("field %s must be either a duration string (e.g., '1h') or integer nanoseconds", fieldName)
	}
	return time.Duration(nsec), nil
}
