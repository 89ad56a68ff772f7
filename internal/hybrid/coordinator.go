package hybrid

import (
	"context"
	"sync"

	"github.com/prism-search/prism/internal/perr"
	"github.com/prism-search/prism/internal/schema"
)

// TextSearcher is the text backend's contribution to a hybrid query:
// ranked results (1-based rank, BM25 score) for a query string.
type TextSearcher interface {
	Search(ctx context.Context, query string) ([]RankedResult, error)
}

// VectorSearcher is the vector backend's contribution to a hybrid
// query: ranked results for a query vector.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32) ([]RankedResult, error)
}

// Request is one hybrid query's inputs. Query and Vector may both be
// set, or either may be empty/nil if that backend isn't being queried
// this time (spec.md §4.7: "the request includes either a text query, a
// vector, or both").
type Request struct {
	Query  string
	Vector []float32

	Strategy     Strategy
	RRFK         int
	TextWeight   float64
	VectorWeight float64
}

// resolveOverrides lets a per-query request override the schema's
// default hybrid config (spec.md §4.7).
func resolveOverrides(req Request, cfg *schema.HybridSchemaConfig) Request {
	if cfg == nil {
		if req.Strategy == "" {
			req.Strategy = StrategyRRF
		}
		return req
	}
	if req.Strategy == "" {
		req.Strategy = Strategy(cfg.Strategy)
	}
	if req.Strategy == "" {
		req.Strategy = StrategyRRF
	}
	if req.RRFK == 0 {
		req.RRFK = cfg.RRFK
	}
	if req.TextWeight == 0 {
		req.TextWeight = cfg.TextWeight
	}
	if req.VectorWeight == 0 {
		req.VectorWeight = cfg.VectorWeight
	}
	return req
}

// Run launches text and vector retrieval in parallel goroutines and
// fuses their results per req's (possibly schema-defaulted) strategy.
// Either searcher may be nil when the collection lacks that backend;
// fusion then degenerates to that backend's ranking alone.
func Run(ctx context.Context, req Request, cfg *schema.HybridSchemaConfig, text TextSearcher, vector VectorSearcher) ([]Fused, error) {
	req = resolveOverrides(req, cfg)

	var (
		wg                   sync.WaitGroup
		textResults          []RankedResult
		vectorResults        []RankedResult
		textErr, vectorErr   error
	)

	if text != nil && req.Query != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			textResults, textErr = text.Search(ctx, req.Query)
		}()
	}
	if vector != nil && len(req.Vector) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vectorResults, vectorErr = vector.Search(ctx, req.Vector)
		}()
	}
	wg.Wait()

	if textErr != nil {
		return nil, perr.Backend("hybrid.text_retrieval", textErr)
	}
	if vectorErr != nil {
		return nil, perr.Backend("hybrid.vector_retrieval", vectorErr)
	}

	switch req.Strategy {
	case StrategyWeighted:
		return WeightedFuse(textResults, vectorResults, req.TextWeight, req.VectorWeight), nil
	default:
		return RRFFuse(textResults, vectorResults, req.RRFK), nil
	}
}
