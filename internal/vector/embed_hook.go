package vector

import "context"

// Embedder is the embedding layer's contract as seen from the vector
// backend (mirrors internal/memory/embeddings.Provider's EmbedBatch
// shape): embed a batch of texts through a named model.
type Embedder interface {
	EmbedBatch(ctx context.Context, modelID string, texts []string) ([][]float32, error)
}

// AutoEmbedSource is the minimal view of a document the auto-embedding
// hook needs: its id and the resolved source-field text.
type AutoEmbedSource struct {
	DocID string
	Text  string
}

// AutoEmbed resolves vectors for a batch of documents through embedder
// for the schema's configured auto-embedding model (spec.md §4.3's
// "resolve a source text field, look up/compute an embedding through the
// embedding layer"). Callers Upsert the returned vectors into a Writer;
// documents that already carried a precomputed vector should never reach
// here.
func AutoEmbed(ctx context.Context, embedder Embedder, modelID string, sources []AutoEmbedSource) (map[string][]float32, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	texts := make([]string, len(sources))
	for i, s := range sources {
		texts[i] = s.Text
	}
	vectors, err := embedder.EmbedBatch(ctx, modelID, texts)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]float32, len(sources))
	for i, s := range sources {
		if i < len(vectors) {
			out[s.DocID] = vectors[i]
		}
	}
	return out, nil
}
