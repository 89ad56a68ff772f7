// Package schema parses and validates collection schema files: the YAML
// document (spec.md §6) that declares a collection's backends, embedding
// generation, ranking, hybrid, and re-ranking configuration, plus the
// structural and field-reference invariants every parsed schema must
// satisfy before a collection can be registered.
package schema

import "time"

// FieldType is one of the tagged value types a document field can hold.
type FieldType string

const (
	FieldText   FieldType = "text"
	FieldString FieldType = "string"
	FieldI64    FieldType = "i64"
	FieldU64    FieldType = "u64"
	FieldF64    FieldType = "f64"
	FieldBool   FieldType = "bool"
	FieldDate   FieldType = "date"
	FieldBytes  FieldType = "bytes"
)

// FieldSpec describes one field's type and indexing options.
type FieldSpec struct {
	Type             FieldType      `yaml:"type"`
	Stored           bool           `yaml:"stored"`
	Indexed          bool           `yaml:"indexed"`
	Tokenizer        string         `yaml:"tokenizer"`
	TokenizerOptions map[string]any `yaml:"tokenizer_options"`
}

// TextBackendConfig configures the inverted-index backend (§4.2).
type TextBackendConfig struct {
	Fields       map[string]FieldSpec `yaml:"fields"`
	BM25         BM25Params           `yaml:"bm25"`
	FieldWeights map[string]float64   `yaml:"field_weights"`
}

// BM25Params holds the schema-level BM25 tuning (§3).
type BM25Params struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
}

// VectorBackendConfig configures the HNSW backend (§4.3).
type VectorBackendConfig struct {
	NumShards int        `yaml:"num_shards"`
	Dimension int        `yaml:"dimension"`
	Metric    string     `yaml:"metric"` // cosine | euclidean | dot
	HNSW      HNSWParams `yaml:"hnsw"`

	// AutoEmbedding, when set, has the vector backend resolve SourceField
	// through the embedding layer on write and store the result here.
	AutoEmbedding *AutoEmbeddingConfig `yaml:"auto_embedding"`
}

// HNSWParams holds the schema-level HNSW tuning (§3, §6).
type HNSWParams struct {
	M              int `yaml:"m"`
	EfConstruction int `yaml:"ef_construction"`
	EfSearch       int `yaml:"ef_search"`
}

// AutoEmbeddingConfig binds a text field to a vector field through an
// embedding-layer provider/model.
type AutoEmbeddingConfig struct {
	SourceField string `yaml:"source_field"`
	TargetField string `yaml:"target_field"`
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
}

// GraphBackendConfig configures the graph backend (§4.4).
type GraphBackendConfig struct {
	NumShards int    `yaml:"num_shards"`
	Scope     string `yaml:"scope"` // shard | collection
}

// BackendsConfig lists the backends a collection activates; any subset of
// the three may be present.
type BackendsConfig struct {
	Text   *TextBackendConfig   `yaml:"text"`
	Vector *VectorBackendConfig `yaml:"vector"`
	Graph  *GraphBackendConfig  `yaml:"graph"`
}

// SystemFieldsConfig toggles the two system fields spec.md §3 names.
type SystemFieldsConfig struct {
	IndexedAt bool `yaml:"indexed_at"`
	Boost     bool `yaml:"boost"`
}

// RecencyConfig configures score decay by document age (§4.6 item 1).
type RecencyConfig struct {
	Field     string        `yaml:"field"`
	Mode      string        `yaml:"mode"` // exponential | linear | gaussian
	Scale     time.Duration `yaml:"scale"`
	DecayRate float64       `yaml:"decay_rate"`
	Offset    time.Duration `yaml:"offset"`
}

// SignalConfig is one additive ranking signal (§4.6 item 3).
type SignalConfig struct {
	Field  string  `yaml:"field"`
	Weight float64 `yaml:"weight"`
}

// RankingConfig configures the post-retrieval ranking engine (§4.6).
type RankingConfig struct {
	Recency      *RecencyConfig     `yaml:"recency"`
	FieldWeights map[string]float64 `yaml:"field_weights"`
	Signals      []SignalConfig     `yaml:"signals"`

	// BoostEnabled gates stage 2 (the `_boost` multiplier). It isn't
	// parsed from the `boosting:` block itself — callers populate it
	// from the same schema's SystemFields.Boost toggle (§3, §4.6 item
	// 2) before handing this config to rank.Apply.
	BoostEnabled bool `yaml:"-"`
}

// HybridSchemaConfig configures the default fusion strategy for this
// collection (§4.7); a per-request override supersedes it.
type HybridSchemaConfig struct {
	Strategy     string  `yaml:"strategy"` // rrf | weighted
	RRFK         int     `yaml:"rrf_k"`
	TextWeight   float64 `yaml:"text_weight"`
	VectorWeight float64 `yaml:"vector_weight"`
}

// RerankingConfig configures the optional second-phase re-rank (§4.6 item 5).
type RerankingConfig struct {
	Candidates int    `yaml:"candidates"`
	Mode       string `yaml:"mode"` // cross_encoder | expression
	Model      string `yaml:"model"`
	Expression string `yaml:"expression"`
}

// QuotaConfig bounds a collection's resource consumption.
type QuotaConfig struct {
	MaxDocuments    int64 `yaml:"max_documents"`
	MaxStorageBytes int64 `yaml:"max_storage_bytes"`
}

// StorageOverrideConfig lets a collection pin a storage backend different
// from the node-wide default.
type StorageOverrideConfig struct {
	Backend string `yaml:"backend"`
}

// CollectionSchema is the parsed, validated form of a collection's schema
// file (§3, §6). It is immutable by version: a schema change is published
// as a new version, not a live mutation of this struct.
type CollectionSchema struct {
	Collection          string                 `yaml:"collection"`
	Backends            BackendsConfig         `yaml:"backends"`
	EmbeddingGeneration *AutoEmbeddingConfig   `yaml:"embedding_generation"`
	Indexing            *IndexingConfig        `yaml:"indexing"`
	Quota               *QuotaConfig           `yaml:"quota"`
	SystemFields        SystemFieldsConfig     `yaml:"system_fields"`
	Facets              []string               `yaml:"facets"`
	Ranking             *RankingConfig         `yaml:"boosting"`
	Hybrid              *HybridSchemaConfig    `yaml:"hybrid"`
	Reranking           *RerankingConfig       `yaml:"reranking"`
	Storage             *StorageOverrideConfig `yaml:"storage"`
}

// IndexingConfig names the ingest pipeline applied to documents written to
// this collection (§4.5); empty means no pipeline.
type IndexingConfig struct {
	Pipeline string `yaml:"pipeline"`
}
