package schema

import (
	"fmt"
	"strings"

	"github.com/prism-search/prism/internal/perr"
)

// Validate checks the field-reference invariant (§3): every field named by
// ranking, embedding generation, or hybrid/reranking configuration must
// exist in one of the active backends, and must carry the access mode
// (stored or indexed) that the referencing component needs. It also checks
// the handful of semantic rules the structural schema can't express (vector
// dimension present when the vector backend is active, valid backend
// cross-references).
func Validate(cs *CollectionSchema) error {
	var issues []string

	if strings.TrimSpace(cs.Collection) == "" {
		issues = append(issues, "collection: name must not be empty")
	}
	if cs.Backends.Text == nil && cs.Backends.Vector == nil && cs.Backends.Graph == nil {
		issues = append(issues, "backends: at least one of text, vector, graph must be configured")
	}

	textFields := map[string]FieldSpec{}
	if cs.Backends.Text != nil {
		textFields = cs.Backends.Text.Fields
		for name, spec := range textFields {
			if !spec.Stored && !spec.Indexed {
				issues = append(issues, fmt.Sprintf("backends.text.fields.%s: must be stored or indexed (or both)", name))
			}
		}
	}

	if v := cs.Backends.Vector; v != nil {
		if v.Dimension <= 0 {
			issues = append(issues, "backends.vector.dimension: must be a positive integer")
		}
		if v.AutoEmbedding != nil {
			checkFieldStored(textFields, v.AutoEmbedding.SourceField, "backends.vector.auto_embedding.source_field", &issues)
		}
	}

	if eg := cs.EmbeddingGeneration; eg != nil {
		checkFieldStored(textFields, eg.SourceField, "embedding_generation.source_field", &issues)
		if cs.Backends.Vector == nil {
			issues = append(issues, "embedding_generation: requires backends.vector to be configured")
		}
	}

	if r := cs.Ranking; r != nil {
		if r.Recency != nil && r.Recency.Field != "" {
			checkFieldIndexedOrStored(textFields, r.Recency.Field, "boosting.recency.field", &issues)
		}
		for field := range r.FieldWeights {
			checkFieldIndexedOrStored(textFields, field, "boosting.field_weights."+field, &issues)
		}
		for i, sig := range r.Signals {
			checkFieldIndexedOrStored(textFields, sig.Field, fmt.Sprintf("boosting.signals[%d].field", i), &issues)
		}
	}

	if b := cs.Backends.Text; b != nil {
		for field := range b.FieldWeights {
			if _, ok := textFields[field]; !ok {
				issues = append(issues, fmt.Sprintf("backends.text.field_weights.%s: references a field not declared in backends.text.fields", field))
			}
		}
	}

	for i, facet := range cs.Facets {
		checkFieldIndexedOrStored(textFields, facet, fmt.Sprintf("facets[%d]", i), &issues)
	}

	if h := cs.Hybrid; h != nil {
		switch h.Strategy {
		case "", "rrf", "weighted":
		default:
			issues = append(issues, fmt.Sprintf("hybrid.strategy: unknown strategy %q", h.Strategy))
		}
		if h.Strategy == "weighted" && h.TextWeight == 0 && h.VectorWeight == 0 {
			issues = append(issues, "hybrid: weighted strategy requires at least one of text_weight, vector_weight to be non-zero")
		}
		if (h.Strategy == "" || h.Strategy == "rrf") && cs.Backends.Text != nil && cs.Backends.Vector == nil {
			// A text-only collection declaring hybrid tuning is not an
			// error by itself; the hybrid coordinator simply won't be
			// exercised for it. No issue recorded.
			_ = h
		}
	}

	if rr := cs.Reranking; rr != nil {
		switch rr.Mode {
		case "cross_encoder":
			if rr.Model == "" {
				issues = append(issues, "reranking.model: required when mode is cross_encoder")
			}
		case "expression":
			if strings.TrimSpace(rr.Expression) == "" {
				issues = append(issues, "reranking.expression: required when mode is expression")
			}
		case "":
		default:
			issues = append(issues, fmt.Sprintf("reranking.mode: unknown mode %q", rr.Mode))
		}
	}

	if len(issues) > 0 {
		return perr.Input("schema.invariant_violation", "schema invariant violations:\n- "+strings.Join(issues, "\n- "))
	}
	return nil
}

func checkFieldStored(fields map[string]FieldSpec, field, path string, issues *[]string) {
	if field == "" {
		*issues = append(*issues, path+": must not be empty")
		return
	}
	spec, ok := fields[field]
	if !ok {
		*issues = append(*issues, fmt.Sprintf("%s: references field %q, which is not declared in backends.text.fields", path, field))
		return
	}
	if !spec.Stored {
		*issues = append(*issues, fmt.Sprintf("%s: field %q must be stored to be read back as embedding input", path, field))
	}
}

func checkFieldIndexedOrStored(fields map[string]FieldSpec, field, path string, issues *[]string) {
	if field == "" {
		*issues = append(*issues, path+": must not be empty")
		return
	}
	spec, ok := fields[field]
	if !ok {
		*issues = append(*issues, fmt.Sprintf("%s: references field %q, which is not declared in backends.text.fields", path, field))
		return
	}
	if !spec.Stored && !spec.Indexed {
		*issues = append(*issues, fmt.Sprintf("%s: field %q must be stored or indexed", path, field))
	}
}
