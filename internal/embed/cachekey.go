package embed

import (
	"crypto/sha256"
	"encoding/hex"
)

// KeyStrategy selects how a cache key is derived from a model id,
// optional model version, and text (spec.md §4.8).
type KeyStrategy string

const (
	// KeyTextHash keys purely on the text's hash, sharing embeddings
	// across models (only correct when every configured model produces
	// interchangeable vectors, which is rarely true — offered for
	// completeness, not recommended).
	KeyTextHash KeyStrategy = "text-hash"
	// KeyModelTextHash is the default, recommended strategy: model id
	// plus text hash.
	KeyModelTextHash KeyStrategy = "model-text-hash"
	// KeyModelVersionTextHash additionally incorporates a model
	// version, for providers that version embeddings within one model
	// id.
	KeyModelVersionTextHash KeyStrategy = "model-version-text-hash"
)

// CacheKey computes the cache key for one (modelID, modelVersion, text)
// triple under strategy.
func CacheKey(strategy KeyStrategy, modelID, modelVersion, text string) string {
	h := sha256.Sum256([]byte(text))
	textHash := hex.EncodeToString(h[:])

	switch strategy {
	case KeyModelVersionTextHash:
		return modelID + ":" + modelVersion + ":" + textHash
	case KeyTextHash:
		return textHash
	default: // KeyModelTextHash
		return modelID + ":" + textHash
	}
}
