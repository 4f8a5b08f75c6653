package repository

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const storeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name", "surname", "national_id", "confirmed_at"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "name": {"type": ["string", "null"]},
      "surname": {"type": ["string", "null"]},
      "national_id": {"type": ["string", "null"]},
      "sender": {"type": "string"},
      "confirmed_at": {"type": "string", "minLength": 1}
    }
  }
}`

func compileStoreSchema() (*jsonschema.Schema, error) {
	s, err := jsonschema.CompileString("guard-records.json", storeSchema)
	if err != nil {
		return nil, fmt.Errorf("compile store schema: %w", err)
	}
	return s, nil
}

// validateDocument checks raw file bytes against the store schema.
func validateDocument(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
