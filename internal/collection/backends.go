package collection

import (
	"context"
	"fmt"

	"github.com/prism-search/prism/internal/graph"
	"github.com/prism-search/prism/internal/schema"
	"github.com/prism-search/prism/internal/storage"
	"github.com/prism-search/prism/internal/text"
	"github.com/prism-search/prism/internal/vector"
)

// backendSet is the live, hot-loaded set of backend instances for one
// collection, sharded per its schema's configured shard counts. Any of
// the three may be absent (BackendsConfig lets a collection activate any
// subset).
type backendSet struct {
	textShards   []*text.Index
	vectorShards []*vector.Index
	graph        *graph.Graph

	textLayout   text.FieldLayout
	fieldWeights map[string]float64
	vectorDim    int
}

// buildBackends constructs the backend instances a schema activates,
// rooted at "<collection>/<backend>/<shard>" within store. Readers must
// still call Reload on each shard before it serves traffic (spec.md
// §4.2/§4.3's explicit-reload contract).
func buildBackends(collectionName string, cs *schema.CollectionSchema, store storage.Store) (*backendSet, error) {
	bs := &backendSet{}

	if cs.Backends.Text != nil {
		tc := cs.Backends.Text
		layout := make(text.FieldLayout, len(tc.Fields))
		for name, spec := range tc.Fields {
			layout[name] = text.FieldConfig{
				Stored:    spec.Stored,
				Indexed:   spec.Indexed,
				Tokenizer: spec.Tokenizer,
			}
		}
		params := text.BM25Params{K1: tc.BM25.K1, B: tc.BM25.B}
		if params.K1 == 0 && params.B == 0 {
			params = text.DefaultBM25Params
		}
		shards := 1
		tokenizers := text.NewTokenizerRegistry()
		bs.textShards = make([]*text.Index, shards)
		for i := 0; i < shards; i++ {
			basePath := fmt.Sprintf("%s/text/%d", collectionName, i)
			bs.textShards[i] = text.NewIndex(basePath, store, layout, tokenizers, params, tc.FieldWeights, cs.SystemFields.IndexedAt)
		}
		bs.textLayout = layout
		bs.fieldWeights = tc.FieldWeights
	}

	if cs.Backends.Vector != nil {
		vc := cs.Backends.Vector
		numShards := vc.NumShards
		if numShards < 1 {
			numShards = 1
		}
		metric := vector.Metric(vc.Metric)
		if metric == "" {
			metric = vector.MetricCosine
		}
		params := vector.Params{M: vc.HNSW.M, EfConstruction: vc.HNSW.EfConstruction, EfSearch: vc.HNSW.EfSearch}
		if params.M == 0 {
			params = vector.DefaultParams
		}
		bs.vectorShards = make([]*vector.Index, numShards)
		for i := 0; i < numShards; i++ {
			basePath := fmt.Sprintf("%s/vector/%d", collectionName, i)
			bs.vectorShards[i] = vector.NewIndex(basePath, store, metric, params)
		}
		bs.vectorDim = vc.Dimension
	}

	if cs.Backends.Graph != nil {
		gc := cs.Backends.Graph
		numShards := gc.NumShards
		if numShards < 1 {
			numShards = 1
		}
		scope := graph.ScopeShard
		if gc.Scope == string(graph.ScopeCollection) {
			scope = graph.ScopeCollection
		}
		bs.graph = graph.NewGraph(numShards, scope)
	}

	return bs, nil
}

// reload calls Reload on every text and vector shard, making any newly
// committed segment visible.
func (bs *backendSet) reload(ctx context.Context) error {
	for _, ix := range bs.textShards {
		if err := ix.Reload(ctx); err != nil {
			return err
		}
	}
	for _, ix := range bs.vectorShards {
		if err := ix.Reload(ctx); err != nil {
			return err
		}
	}
	return nil
}

// textShardFor and vectorShardFor route a document id to its owning
// shard within this backend set.
func (bs *backendSet) textShardFor(id string) *text.Index {
	if len(bs.textShards) == 0 {
		return nil
	}
	return bs.textShards[shardIndex(id, len(bs.textShards))]
}

func (bs *backendSet) vectorShardFor(id string) *vector.Index {
	if len(bs.vectorShards) == 0 {
		return nil
	}
	return bs.vectorShards[shardIndex(id, len(bs.vectorShards))]
}
