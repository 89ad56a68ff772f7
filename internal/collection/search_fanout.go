package collection

import (
	"context"
	"sort"

	"github.com/prism-search/prism/internal/hybrid"
	"github.com/prism-search/prism/internal/text"
	"github.com/prism-search/prism/internal/vector"
)

// fanoutTextSearcher implements hybrid.TextSearcher over every shard of a
// collection's text backend: each shard is searched independently (a
// shard only ever holds a subset of documents, so there's no double
// counting), results are merged by score, and re-ranked into a single
// 1-based rank sequence before fusion sees them.
type fanoutTextSearcher struct {
	shards        []*text.Index
	maxParseDepth int
	window        int
}

func (f fanoutTextSearcher) Search(ctx context.Context, query string) ([]hybrid.RankedResult, error) {
	var hits []text.Hit
	for _, shard := range f.shards {
		res, err := shard.Search(query, f.maxParseDepth, f.window, 0)
		if err != nil {
			return nil, err
		}
		hits = append(hits, res.Hits...)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if len(hits) > f.window {
		hits = hits[:f.window]
	}
	out := make([]hybrid.RankedResult, len(hits))
	for i, h := range hits {
		out[i] = hybrid.RankedResult{DocID: h.DocID, Rank: i + 1, Score: h.Score}
	}
	return out, nil
}

// fanoutVectorSearcher implements hybrid.VectorSearcher over every shard
// of a collection's vector backend, merging nearest-neighbor results the
// same way fanoutTextSearcher merges BM25 hits.
type fanoutVectorSearcher struct {
	shards []*vector.Index
	window int
}

func (f fanoutVectorSearcher) Search(ctx context.Context, query []float32) ([]hybrid.RankedResult, error) {
	var hits []vector.Hit
	for _, shard := range f.shards {
		hits = append(hits, shard.Search(query, f.window)...)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if len(hits) > f.window {
		hits = hits[:f.window]
	}
	out := make([]hybrid.RankedResult, len(hits))
	for i, h := range hits {
		out[i] = hybrid.RankedResult{DocID: h.DocID, Rank: i + 1, Score: h.Score}
	}
	return out, nil
}
