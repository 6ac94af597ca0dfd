package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mac-/eidetic/errors"
	"github.com/mac-/eidetic/pkg/cache"
)

// Config represents the complete application configuration
type Config struct {
	Cache    cache.Config   `json:"cache" yaml:"cache"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
	Log      LogConfig      `json:"log" yaml:"log"`
	Workload WorkloadConfig `json:"workload" yaml:"workload"`
}

// MetricsConfig defines the observability server settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// LogConfig defines logger settings
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // trace, debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json or text
}

// WorkloadConfig drives the synthetic read-through traffic generated by
// `eidetic serve`. Each worker picks a random key, reads it, and puts a fresh
// value of ValueSize bytes on a miss.
type WorkloadConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled"`
	Workers   int           `json:"workers" yaml:"workers"`
	Keys      int           `json:"keys" yaml:"keys"`             // size of the key space
	Rate      float64       `json:"rate" yaml:"rate"`             // lookups per second, all workers combined
	Burst     int           `json:"burst" yaml:"burst"`           // limiter burst
	ValueSize int           `json:"value_size" yaml:"value_size"` // bytes per value
	Duration  time.Duration `json:"duration" yaml:"duration"`     // lifetime of each put, 0 uses the cache default
	Sliding   bool          `json:"sliding" yaml:"sliding"`
}

// Default returns the configuration used when no file overrides a field
func Default() *Config {
	return &Config{
		Cache: cache.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Workload: WorkloadConfig{
			Enabled:   true,
			Workers:   4,
			Keys:      1000,
			Rate:      200,
			Burst:     20,
			ValueSize: 256,
			Duration:  5 * time.Second,
		},
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return invalid(fmt.Sprintf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port))
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return invalid(fmt.Sprintf("metrics.path must start with '/', got %q", c.Metrics.Path))
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return invalid(fmt.Sprintf("log.level %q is not one of trace, debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return invalid(fmt.Sprintf("log.format %q is not one of json, text", c.Log.Format))
	}

	if c.Workload.Enabled {
		w := c.Workload
		switch {
		case w.Workers <= 0:
			return invalid(fmt.Sprintf("workload.workers must be positive, got %d", w.Workers))
		case w.Keys <= 0:
			return invalid(fmt.Sprintf("workload.keys must be positive, got %d", w.Keys))
		case w.Rate <= 0:
			return invalid(fmt.Sprintf("workload.rate must be positive, got %v", w.Rate))
		case w.Burst <= 0:
			return invalid(fmt.Sprintf("workload.burst must be positive, got %d", w.Burst))
		case w.ValueSize < 0:
			return invalid(fmt.Sprintf("workload.value_size must not be negative, got %d", w.ValueSize))
		case w.Duration < 0 || w.Duration > cache.MaxDuration:
			return invalid(fmt.Sprintf("workload.duration must be between 0 and %v, got %v", cache.MaxDuration, w.Duration))
		}
	}

	return nil
}

func invalid(msg string) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", msg)
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Load reads a single JSON or YAML file on top of the defaults, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	loader := NewLoader()
	loader.EnableValidation(true)
	return loader.LoadFile(path)
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  "EIDETIC",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers. Later layers override
// earlier ones field by field; fields a layer omits keep their previous value.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, err
		}
		if err := validateSchema(raw); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("schema validation of %s", path))
		}
		cfg, err = l.mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("decode %s", path))
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadRaw reads one layer as a generic document. The file extension selects
// the decoder.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.WrapInvalid(errors.ErrConfigNotFound, "Loader", "Load", path)
		}
		return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("read %s", path))
	}

	raw := map[string]any{}
	codec, _ := decoderFor(path)
	if codec == "YAML" {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("parse %s %s", codec, path))
	}
	if err := validateDocument(raw); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("check %s", path))
	}

	return raw, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if len(override) == 0 {
		return base, nil
	}
	l.parseDurations(override)

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(l.deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}

	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		// If both base and override have maps at this key, merge them
		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// parseDurations converts workload duration strings to nanoseconds for json
// unmarshaling. cache.Config parses its own durations.
func (l *Loader) parseDurations(data map[string]any) {
	if workload, ok := data["workload"].(map[string]any); ok {
		if s, ok := workload["duration"].(string); ok {
			if d, err := time.ParseDuration(s); err == nil {
				workload["duration"] = d.Nanoseconds()
			}
		}
	}
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	lookup := func(name string) (string, bool, error) {
		key := l.envPrefix + "_" + name
		val := os.Getenv(key)
		if val == "" {
			return "", false, nil
		}
		if err := validateEnvVar(key, val); err != nil {
			return "", false, errors.WrapInvalid(err, "Loader", "applyEnvOverrides", key)
		}
		return val, true, nil
	}

	strOverrides := map[string]*string{
		"LOG_LEVEL":    &cfg.Log.Level,
		"LOG_FORMAT":   &cfg.Log.Format,
		"METRICS_PATH": &cfg.Metrics.Path,
		"CACHE_NAME":   &cfg.Cache.Name,
	}
	for name, target := range strOverrides {
		val, ok, err := lookup(name)
		if err != nil {
			return err
		}
		if ok {
			*target = val
		}
	}

	intOverrides := map[string]*int{
		"METRICS_PORT":   &cfg.Metrics.Port,
		"CACHE_MAX_SIZE": &cfg.Cache.MaxSize,
		"WORKLOAD_KEYS":  &cfg.Workload.Keys,
	}
	for name, target := range intOverrides {
		val, ok, err := lookup(name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, err), "Loader",
				"applyEnvOverrides", l.envPrefix+"_"+name)
		}
		*target = n
	}

	if val, ok, err := lookup("WORKLOAD_RATE"); err != nil {
		return err
	} else if ok {
		rate, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, err), "Loader",
				"applyEnvOverrides", l.envPrefix+"_WORKLOAD_RATE")
		}
		cfg.Workload.Rate = rate
	}

	if val, ok, err := lookup("WORKLOAD_ENABLED"); err != nil {
		return err
	} else if ok {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, err), "Loader",
				"applyEnvOverrides", l.envPrefix+"_WORKLOAD_ENABLED")
		}
		cfg.Workload.Enabled = enabled
	}

	return nil
}
