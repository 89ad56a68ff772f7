package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchemaDoc is a permissive structural schema for operator-supplied
// config documents: it only pins down the types of keys enumerated in
// spec.md §6, leaving everything else as additionalProperties so the
// document can still grow without this schema immediately going stale.
const configSchemaDoc = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "storage": {
      "type": "object",
      "properties": {
        "backend": {"type": "string", "enum": ["local", "remote", "cached"]}
      },
      "additionalProperties": true
    },
    "limits": {
      "type": "object",
      "properties": {
        "max_bulk_actions": {"type": "integer", "minimum": 1},
        "max_query_string_length": {"type": "integer", "minimum": 1},
        "max_search_limit": {"type": "integer", "minimum": 1},
        "max_parse_depth": {"type": "integer", "minimum": 1}
      },
      "additionalProperties": true
    },
    "hnsw": {
      "type": "object",
      "properties": {
        "m": {"type": "integer", "minimum": 1},
        "ef_construction": {"type": "integer", "minimum": 1},
        "ef_search": {"type": "integer", "minimum": 1}
      },
      "additionalProperties": true
    },
    "bm25": {
      "type": "object",
      "properties": {
        "k1": {"type": "number", "minimum": 0},
        "b": {"type": "number", "minimum": 0, "maximum": 1}
      },
      "additionalProperties": true
    },
    "hybrid": {
      "type": "object",
      "properties": {
        "default_strategy": {"type": "string", "enum": ["rrf", "weighted"]},
        "rrf_k": {"type": "integer", "minimum": 1}
      },
      "additionalProperties": true
    },
    "cluster": {
      "type": "object",
      "properties": {
        "drain_state": {"type": "string", "enum": ["normal", "draining", "drained"]}
      },
      "additionalProperties": true
    }
  },
  "additionalProperties": true
}`

var configSchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", strings.NewReader(configSchemaDoc)); err != nil {
		panic(fmt.Sprintf("config: invalid embedded schema: %v", err))
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		panic(fmt.Sprintf("config: schema compile failed: %v", err))
	}
	configSchema = schema
}

// ValidateDocument checks a raw (already YAML/JSON-decoded) config document
// against the structural schema, ahead of strict field decoding into Config.
// This catches type mistakes (a string where hnsw.m expects an integer)
// with a field path, before they surface as a less specific decode error.
func ValidateDocument(raw map[string]any) error {
	// jsonschema validates over json.Unmarshal-shaped data (float64 for
	// numbers); round-trip through JSON to get there from a YAML-decoded map.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode config for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return fmt.Errorf("failed to decode config for validation: %w", err)
	}
	if err := configSchema.Validate(doc); err != nil {
		return fmt.Errorf("config failed schema validation: %w", err)
	}
	return nil
}
