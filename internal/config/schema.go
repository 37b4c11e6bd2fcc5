// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON []byte

const schemaResourceName = "pgmt-config.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("parsing embedded config schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaResourceName, doc); err != nil {
			compileErr = fmt.Errorf("loading embedded config schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaResourceName)
	})
	return compiled, compileErr
}

// ValidateSchema validates a config document, already converted from YAML
// to JSON bytes, against the embedded JSON schema describing spec §6's
// recognized key table (promoted here from
// internal/jsonschema's test-only validation harness into a real runtime
// check, since pgmt's config surface is much larger than pgroll's few
// flags).
func ValidateSchema(asJSON []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(asJSON))
	if err != nil {
		return fmt.Errorf("parsing config as JSON: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("config does not match schema: %w", err)
	}
	return nil
}
