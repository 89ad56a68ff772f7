package embed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prism-search/prism/internal/backoff"
)

// Config bounds one Embedder's batching and concurrency (spec.md §4.8,
// §6's `embedding.batch_size`/`embedding.concurrency` defaults).
type Config struct {
	BatchSize     int
	Concurrency   int
	ModelVersion  string
	KeyStrategy   KeyStrategy
	RetryAttempts int
}

// Embedder is the embedding layer's single entry point:
// embed_batch(model_id, texts) with an L1/L2 cache in front of the
// provider, bounded concurrency, and deterministic oversize-batch
// splitting (spec.md §4.8).
type Embedder struct {
	registry *Registry
	l1       *L1Cache
	l2       *L2Cache
	cfg      Config
	log      *slog.Logger
}

// NewEmbedder constructs an Embedder. l2 may be nil to run L1-only.
func NewEmbedder(registry *Registry, l1 *L1Cache, l2 *L2Cache, cfg Config, log *slog.Logger) *Embedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.KeyStrategy == "" {
		cfg.KeyStrategy = KeyModelTextHash
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &Embedder{registry: registry, l1: l1, l2: l2, cfg: cfg, log: log}
}

// EmbedBatch resolves modelID to a Provider, serves whatever it can from
// cache, and calls the provider only for cache misses, split into
// provider.MaxBatchSize()-and-cfg.BatchSize-bounded chunks run with at
// most cfg.Concurrency in flight. Returned vectors preserve texts'
// input order.
func (e *Embedder) EmbedBatch(ctx context.Context, modelID string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	provider, err := e.registry.Get(modelID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = CacheKey(e.cfg.KeyStrategy, modelID, e.cfg.ModelVersion, t)
	}

	out := make([][]float32, len(texts))
	missIdx := e.fillFromCache(ctx, keys, out)
	if len(missIdx) == 0 {
		return out, nil
	}

	limit := e.cfg.BatchSize
	if pm := provider.MaxBatchSize(); pm > 0 && pm < limit {
		limit = pm
	}
	chunks := splitDeterministic(missIdx, limit)

	sem := make(chan struct{}, e.cfg.Concurrency)
	var wg sync.WaitGroup
	errs := make([]error, len(chunks))
	for ci, chunk := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(ci int, chunk []int) {
			defer wg.Done()
			defer func() { <-sem }()
			chunkTexts := make([]string, len(chunk))
			for i, idx := range chunk {
				chunkTexts[i] = texts[idx]
			}
			// Provider calls are a network round trip to an external API;
			// a transient failure shouldn't fail the whole batch.
			result, err := backoff.RetryWithBackoff(ctx, backoff.DefaultPolicy(), e.cfg.RetryAttempts,
				func(attempt int) ([][]float32, error) {
					return provider.EmbedBatch(ctx, chunkTexts)
				})
			if err != nil {
				errs[ci] = err
				return
			}
			vectors := result.Value
			toCache := make(map[string][]float32, len(chunk))
			for i, idx := range chunk {
				if i >= len(vectors) {
					continue
				}
				out[idx] = vectors[i]
				if e.l1 != nil {
					e.l1.Put(keys[idx], vectors[i])
				}
				toCache[keys[idx]] = vectors[i]
			}
			e.writeBackL2(ctx, toCache)
		}(ci, chunk)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// fillFromCache populates out from L1 then L2 (a single multi-get for
// whatever L1 missed) and returns the indices still needing a provider
// call.
func (e *Embedder) fillFromCache(ctx context.Context, keys []string, out [][]float32) []int {
	var l2Keys []string
	l2Idx := map[string]int{}
	var miss []int

	for i, key := range keys {
		if e.l1 != nil {
			if v, ok := e.l1.Get(key); ok {
				out[i] = v
				continue
			}
		}
		if e.l2 != nil {
			l2Keys = append(l2Keys, key)
			l2Idx[key] = i
			continue
		}
		miss = append(miss, i)
	}

	if len(l2Keys) > 0 {
		found, err := e.l2.MultiGet(ctx, l2Keys)
		if err != nil {
			e.log.Warn("embed: L2 multi-get failed, falling back to provider", "error", err)
			for _, key := range l2Keys {
				miss = append(miss, l2Idx[key])
			}
		} else {
			for _, key := range l2Keys {
				if v, ok := found[key]; ok {
					idx := l2Idx[key]
					out[idx] = v
					if e.l1 != nil {
						e.l1.Put(key, v)
					}
					continue
				}
				miss = append(miss, l2Idx[key])
			}
		}
	}
	return miss
}

// writeBackL2 persists freshly computed vectors to L2. Cache writes are
// best-effort: a failure logs a warning and never fails the embed
// (spec.md §4.8).
func (e *Embedder) writeBackL2(ctx context.Context, entries map[string][]float32) {
	if e.l2 == nil || len(entries) == 0 {
		return
	}
	if err := e.l2.PipelinedPut(ctx, entries); err != nil {
		e.log.Warn("embed: L2 cache write failed", "error", err)
	}
}

// splitDeterministic partitions indices into chunks of at most size,
// preserving order, so the same input always splits the same way.
func splitDeterministic(indices []int, size int) [][]int {
	if size <= 0 {
		size = len(indices)
	}
	var chunks [][]int
	for start := 0; start < len(indices); start += size {
		end := start + size
		if end > len(indices) {
			end = len(indices)
		}
		chunks = append(chunks, indices[start:end])
	}
	return chunks
}
