package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaValidator validates call arguments against a tool's parameter
// schema. Compiled schemas are cached by their source text.
type SchemaValidator struct {
	mu    sync.Mutex
	cache map[string]*gojsonschema.Schema
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{cache: make(map[string]*gojsonschema.Schema)}
}

// Compile checks that a parameter schema is usable.
func (sv *SchemaValidator) Compile(schema json.RawMessage) error {
	_, err := sv.getSchema(schema)
	return err
}

// ValidateArgs validates args against descriptor.Parameters. Descriptors
// without parameters accept any JSON object.
func (sv *SchemaValidator) ValidateArgs(descriptor Descriptor, args json.RawMessage) error {
	if len(descriptor.Parameters) == 0 {
		return nil
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	schema, err := sv.getSchema(descriptor.Parameters)
	if err != nil {
		return fmt.Errorf("invalid parameter schema for tool %s: %w", descriptor.Name, err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return &ValidationError{Tool: descriptor.Name, Detail: err.Error()}
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			msgs[i] = desc.String()
		}
		return &ValidationError{Tool: descriptor.Name, Detail: strings.Join(msgs, "; ")}
	}
	return nil
}

func (sv *SchemaValidator) getSchema(raw json.RawMessage) (*gojsonschema.Schema, error) {
	key := string(raw)

	sv.mu.Lock()
	defer sv.mu.Unlock()

	if schema, ok := sv.cache[key]; ok {
		return schema, nil
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, err
	}
	sv.cache[key] = schema
	return schema, nil
}
