package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Compile turns a schema expressed as a generic map into a reusable validator.
func Compile(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
}

// ValidateJSON validates raw JSON bytes against a compiled schema.
func ValidateJSON(s *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return ValidateValue(s, v)
}

// ValidateValue validates an already decoded value (e.g. from YAML) against a compiled schema.
func ValidateValue(s *jsonschema.Schema, v any) error {
	// round-trip through JSON so YAML-decoded ints and nested maps look like JSON values
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	var norm any
	if err := json.Unmarshal(b, &norm); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	if err := s.Validate(norm); err != nil {
		return fmt.Errorf("document does not match schema: %w", err)
	}
	return nil
}
