// Package config loads the eidetic application configuration.
//
// A configuration is built from the defaults (Default), then one or more file
// layers in JSON or YAML, then EIDETIC_* environment variables. Each layer is
// checked against an embedded JSON schema before it is merged, so unknown keys
// and wrongly typed values are reported with the offending path. The merged
// result is validated with Config.Validate when validation is enabled.
//
// # Basic Usage
//
//	cfg, err := config.Load("eidetic.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Layered loading:
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.yaml")
//	loader.AddLayer("config/production.json") // Overrides base
//	loader.EnableValidation(true)
//	cfg, err := loader.Load()
//
// # File Format
//
//	cache:
//	  max_size: 500
//	  can_put_when_full: false
//	  default_duration: 1s
//	  sliding_by_default: false
//	metrics:
//	  enabled: true
//	  port: 9090
//	  path: /metrics
//	log:
//	  level: info      # trace, debug, info, warn, error
//	  format: json     # json or text
//	workload:
//	  enabled: true
//	  workers: 4
//	  keys: 1000
//	  rate: 200
//	  burst: 20
//	  value_size: 256
//	  duration: 5s
//	  sliding: false
//
// Durations accept Go duration strings ("30s", "5m") or integer nanoseconds.
//
// # Environment Overrides
//
//   - EIDETIC_LOG_LEVEL, EIDETIC_LOG_FORMAT
//   - EIDETIC_METRICS_PORT, EIDETIC_METRICS_PATH
//   - EIDETIC_CACHE_NAME, EIDETIC_CACHE_MAX_SIZE
//   - EIDETIC_WORKLOAD_ENABLED, EIDETIC_WORKLOAD_KEYS, EIDETIC_WORKLOAD_RATE
//
// # Security
//
// Config paths must not traverse outside the working directory when relative,
// must name a regular file no larger than 10MB, and must end in .json, .yaml
// or .yml. JSON documents deeper than 100 levels are rejected.
package config
