// Package embed implements the provider-agnostic embedding layer: a
// batched embed_batch(model_id, texts) contract over a two-layer cache
// (process-local LRU, then a persistent key-value store), bounded
// concurrency, and deterministic oversize-batch splitting (spec.md
// §4.8).
package embed

import "context"

// Provider is one embedding backend bound to a single concrete model
// (mirrors internal/memory/embeddings.Provider's shape). The embedding
// layer routes a model_id to a Provider instance via a Registry, so the
// spec's single `embed_batch(model_id, texts)` entry point can address
// many concrete provider/model pairs.
type Provider interface {
	Name() string
	Dimension() int
	MaxBatchSize() int
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
