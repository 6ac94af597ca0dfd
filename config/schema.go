package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/mac-/eidetic/errors"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

// Schema returns the JSON schema every configuration layer must satisfy.
func Schema() []byte {
	return schemaJSON
}

// validateSchema checks one decoded layer against the embedded schema. Layers
// are partial documents, so no property is required.
func validateSchema(doc map[string]any) error {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	if schemaErr != nil {
		return errors.WrapFatal(schemaErr, "config", "validateSchema", "compile embedded schema")
	}

	result, err := compiledSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidConfig, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(messages, "; "))
	}

	return nil
}
