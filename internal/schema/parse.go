package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/prism-search/prism/internal/perr"
)

const schemaDoc = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["collection", "backends"],
  "properties": {
    "collection": {"type": "string", "minLength": 1},
    "backends": {
      "type": "object",
      "properties": {
        "text": {
          "type": "object",
          "properties": {
            "fields": {"type": "object"},
            "bm25": {
              "type": "object",
              "properties": {
                "k1": {"type": "number", "minimum": 0},
                "b": {"type": "number", "minimum": 0, "maximum": 1}
              }
            }
          }
        },
        "vector": {
          "type": "object",
          "required": ["dimension"],
          "properties": {
            "num_shards": {"type": "integer", "minimum": 1},
            "dimension": {"type": "integer", "minimum": 1},
            "metric": {"type": "string", "enum": ["cosine", "euclidean", "dot"]},
            "hnsw": {
              "type": "object",
              "properties": {
                "m": {"type": "integer", "minimum": 1},
                "ef_construction": {"type": "integer", "minimum": 1},
                "ef_search": {"type": "integer", "minimum": 1}
              }
            }
          }
        },
        "graph": {
          "type": "object",
          "properties": {
            "num_shards": {"type": "integer", "minimum": 1},
            "scope": {"type": "string", "enum": ["shard", "collection"]}
          }
        }
      },
      "additionalProperties": false
    },
    "hybrid": {
      "type": "object",
      "properties": {
        "strategy": {"type": "string", "enum": ["rrf", "weighted"]},
        "rrf_k": {"type": "integer", "minimum": 1}
      }
    },
    "reranking": {
      "type": "object",
      "properties": {
        "mode": {"type": "string", "enum": ["cross_encoder", "expression"]}
      }
    }
  },
  "additionalProperties": true
}`

var compiledSchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.schema.json", strings.NewReader(schemaDoc)); err != nil {
		panic(fmt.Sprintf("schema: invalid embedded schema: %v", err))
	}
	s, err := compiler.Compile("schema.schema.json")
	if err != nil {
		panic(fmt.Sprintf("schema: schema compile failed: %v", err))
	}
	compiledSchema = s
}

// Parse decodes a collection schema document, validates it structurally
// against the embedded JSON Schema, decodes it strictly into a
// CollectionSchema, and checks the field-reference invariant (§3). The
// returned error is always a *perr.Error with Kind perr.KindInput when the
// document is malformed or violates an invariant.
func Parse(data []byte) (*CollectionSchema, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, perr.Input("schema.invalid_yaml", fmt.Sprintf("invalid schema YAML: %v", err))
	}

	if err := validateDocument(raw); err != nil {
		return nil, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var cs CollectionSchema
	if err := decoder.Decode(&cs); err != nil {
		return nil, perr.Input("schema.decode_failed", fmt.Sprintf("schema document has unknown or malformed fields: %v", err))
	}

	if err := Validate(&cs); err != nil {
		return nil, err
	}
	return &cs, nil
}

func validateDocument(raw map[string]any) error {
	// jsonschema validates JSON-shaped values; round-trip through
	// encoding/json so YAML's map[any]any-free decode (already
	// map[string]any here) matches the types jsonschema expects (e.g.
	// YAML integers surviving as float64 after the round trip).
	blob, err := json.Marshal(raw)
	if err != nil {
		return perr.Input("schema.invalid_document", fmt.Sprintf("schema document could not be normalized: %v", err))
	}
	var doc any
	if err := json.Unmarshal(blob, &doc); err != nil {
		return perr.Input("schema.invalid_document", fmt.Sprintf("schema document could not be normalized: %v", err))
	}

	if err := compiledSchema.Validate(doc); err != nil {
		return perr.Input("schema.structural_validation_failed", fmt.Sprintf("schema document failed structural validation: %v", err))
	}
	return nil
}
