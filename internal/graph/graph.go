// Package graph implements the node/edge graph backend: sharded storage,
// BFS, Dijkstra shortest-path, and collection-level shard merge (spec.md
// §4.4).
package graph

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/perr"
)

// Scope controls whether an edge may cross shard boundaries.
type Scope string

const (
	// ScopeShard forbids edges between nodes on different shards.
	ScopeShard Scope = "shard"
	// ScopeCollection permits cross-shard edges at shard-local-traversal
	// cost.
	ScopeCollection Scope = "collection"
)

// Node is a graph node's typed payload, reusing the document field model
// so node attributes share a type system with stored documents.
type Node struct {
	ID     string
	Fields map[string]document.Value
}

// Edge is one outgoing connection from a node.
type Edge struct {
	Target string
	Type   string
	Weight float64
}

// Graph is a collection's graph backend: NumShards shards, each an
// independent node/edge table, sharded by hash(doc_id) mod num_shards
// (the same fnv64a hash internal/collection's shardIndex uses, so a
// document's node and vector co-locate per spec.md §3).
type Graph struct {
	NumShards int
	Scope     Scope

	mu     sync.RWMutex
	shards []*shard
	merged bool
}

// NewGraph constructs a Graph with numShards independent shards.
func NewGraph(numShards int, scope Scope) *Graph {
	if numShards < 1 {
		numShards = 1
	}
	g := &Graph{NumShards: numShards, Scope: scope, shards: make([]*shard, numShards)}
	for i := range g.shards {
		g.shards[i] = newShard()
	}
	return g
}

func shardIndex(id string, numShards int) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum64() % uint64(numShards))
}

// shardFor returns the shard index owning id. After a Merge, every id
// routes to shard 0 regardless of its hash, so whole-graph traversal
// stays within one shard's node table.
func (g *Graph) shardFor(id string) int {
	if g.merged {
		return 0
	}
	return shardIndex(id, g.NumShards)
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(id string, fields map[string]document.Value) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := g.shards[g.shardFor(id)]
	s.addNode(Node{ID: id, Fields: fields})
}

// GetNode returns id's node, if present.
func (g *Graph) GetNode(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.shards[g.shardFor(id)].getNode(id)
}

// DeleteNode removes id and every edge incident to it (outgoing, and
// incoming from any shard — a collection-scope graph can have incoming
// edges that live in another shard's table).
func (g *Graph) DeleteNode(id string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	g.shards[g.shardFor(id)].deleteNode(id)
	for _, s := range g.shards {
		s.removeEdgesTo(id)
	}
}

// AddEdge adds a directed edge from→to. Under ScopeShard, an edge whose
// endpoints hash to different shards is rejected as an input error
// (spec.md §4.4); ScopeCollection permits it.
func (g *Graph) AddEdge(from, to, edgeType string, weight float64) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fromShard, toShard := g.shardFor(from), g.shardFor(to)
	if g.Scope == ScopeShard && fromShard != toShard {
		return perr.Input("graph.cross_shard_edge", fmt.Sprintf("edge endpoints %q and %q are on different shards under shard scope", from, to))
	}
	g.shards[fromShard].addEdge(from, Edge{Target: to, Type: edgeType, Weight: weight})
	return nil
}

// EdgesFrom returns id's outgoing edges.
func (g *Graph) EdgesFrom(id string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.shards[g.shardFor(id)].edgesFrom(id)
}

// Merge rewrites every shard's nodes and edges into shard 0, enabling
// whole-graph traversal at the cost of losing shard-local placement
// (spec.md §4.4's collection-level graph-merge operation).
func (g *Graph) Merge() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.merged {
		return
	}
	target := g.shards[0]
	for i := 1; i < len(g.shards); i++ {
		src := g.shards[i]
		for id, n := range src.nodes {
			target.nodes[id] = n
		}
		for id, edges := range src.edges {
			target.edges[id] = append(target.edges[id], edges...)
		}
		g.shards[i] = newShard()
	}
	g.merged = true
}
