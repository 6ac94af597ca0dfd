package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Limits applied to every configuration layer before it is merged.
const (
	maxConfigSize = 10 << 20
	maxDocDepth   = 100
	maxDocNodes   = 100_000
	maxEnvVarLen  = 10000
	maxPathLen    = 4096
)

var (
	errDocTooDeep  = errors.New("config document nested too deep")
	errDocTooLarge = errors.New("config document has too many values")
)

// validateConfigPath accepts absolute paths and relative paths that stay
// under the working directory. Only JSON and YAML files are accepted.
func validateConfigPath(path string) error {
	switch {
	case path == "":
		return errors.New("empty config path")
	case len(path) > maxPathLen:
		return fmt.Errorf("config path is %d bytes, limit %d", len(path), maxPathLen)
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		rel, err := filepath.Rel(cwd, filepath.Join(cwd, path))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("config path %s escapes the working directory", path)
		}
	}

	if _, ok := decoderFor(path); !ok {
		return fmt.Errorf("config file %s is not JSON or YAML", path)
	}
	return nil
}

// decoderFor reports which codec reads path, keyed by its extension.
func decoderFor(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "YAML", true
	case ".json":
		return "JSON", true
	}
	return "", false
}

func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("config path %s is not a regular file", path)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file %s is %d bytes, limit %d", path, info.Size(), maxConfigSize)
	}

	return os.ReadFile(path)
}

// validateDocument walks a decoded layer and bounds its nesting depth and
// total value count. It runs on the result of either decoder, so the limits
// hold for YAML anchors and JSON alike.
func validateDocument(doc map[string]any) error {
	nodes := 0
	var walk func(v any, depth int) error
	walk = func(v any, depth int) error {
		nodes++
		if nodes > maxDocNodes {
			return fmt.Errorf("%w: limit %d", errDocTooLarge, maxDocNodes)
		}
		if depth > maxDocDepth {
			return fmt.Errorf("%w: limit %d", errDocTooDeep, maxDocDepth)
		}

		switch t := v.(type) {
		case map[string]any:
			for _, child := range t {
				if err := walk(child, depth+1); err != nil {
					return err
				}
			}
		case map[any]any:
			for _, child := range t {
				if err := walk(child, depth+1); err != nil {
					return err
				}
			}
		case []any:
			for _, child := range t {
				if err := walk(child, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(doc, 1)
}

func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("environment variable %s is %d bytes, limit %d", key, len(value), maxEnvVarLen)
	}
	if strings.IndexByte(value, 0) >= 0 {
		return fmt.Errorf("environment variable %s contains a NUL byte", key)
	}
	return nil
}
