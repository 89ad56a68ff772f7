package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/perr"
	"github.com/prism-search/prism/internal/storage"
)

// shardFile is the JSON-serializable snapshot of one shard. Unlike
// internal/text and internal/vector, the graph backend has no
// segment/tombstone lifecycle — nodes and edges mutate in place — so
// persistence is a whole-shard snapshot write rather than an
// append-only manifest.
type shardFile struct {
	Nodes map[string]nodeFile `json:"nodes"`
	Edges map[string][]Edge   `json:"edges"`
}

type nodeFile struct {
	ID     string                     `json:"id"`
	Fields map[string]document.Value `json:"fields"`
}

// Store persists every shard of g to basePath within store (e.g.
// "<collection>/graph/<shard>.json").
func (g *Graph) Store(ctx context.Context, basePath string, store storage.Store) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for i, s := range g.shards {
		f := shardFile{Nodes: make(map[string]nodeFile, len(s.nodes)), Edges: s.edges}
		for id, n := range s.nodes {
			f.Nodes[id] = nodeFile{ID: n.ID, Fields: n.Fields}
		}
		blob, err := json.Marshal(f)
		if err != nil {
			return perr.Backend("graph.shard_encode", err)
		}
		if err := store.Write(ctx, shardPath(basePath, i), blob); err != nil {
			return err
		}
	}
	return nil
}

// Load replaces g's in-memory shard contents with whatever is persisted
// at basePath, leaving a shard with no stored snapshot empty.
func (g *Graph) Load(ctx context.Context, basePath string, store storage.Store) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.shards {
		exists, err := store.Exists(ctx, shardPath(basePath, i))
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		blob, err := store.Read(ctx, shardPath(basePath, i))
		if err != nil {
			return err
		}
		var f shardFile
		if err := json.Unmarshal(blob, &f); err != nil {
			return perr.Backend("graph.shard_decode", err)
		}
		s := newShard()
		for id, nf := range f.Nodes {
			s.nodes[id] = Node{ID: id, Fields: nf.Fields}
		}
		s.edges = f.Edges
		g.shards[i] = s
	}
	return nil
}

func shardPath(basePath string, i int) string {
	return fmt.Sprintf("%s/%d.json", basePath, i)
}
