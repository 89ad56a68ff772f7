package vector

import "sort"

// Params are the schema-fixed HNSW tuning knobs (spec.md §3).
type Params struct {
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultParams mirrors internal/config's defaults.
var DefaultParams = Params{M: 16, EfConstruction: 200, EfSearch: 100}

// candidate is one node in a search frontier or result set.
type candidate struct {
	id   string
	dist float64
}

// Graph is a single-layer HNSW-style proximity graph: every node keeps up
// to M neighbors found via greedy nearest-neighbor search at insertion
// time. This omits HNSW's multi-layer skip structure in favor of one
// dense layer — a scoped simplification (see DESIGN.md) that keeps the
// same construction/search shape (ef_construction candidate list at
// insert, ef_search candidate list at query) without a full hierarchy.
type Graph struct {
	Metric Metric
	Params Params

	vectors   map[string][]float32
	neighbors map[string][]string
	entry     string
}

// NewGraph constructs an empty graph.
func NewGraph(metric Metric, params Params) *Graph {
	return &Graph{
		Metric:    metric,
		Params:    params,
		vectors:   make(map[string][]float32),
		neighbors: make(map[string][]string),
	}
}

// Insert adds id/vec to the graph, connecting it to its ef_construction
// nearest existing neighbors (pruned to M) and updating those neighbors'
// lists symmetrically.
func (g *Graph) Insert(id string, vec []float32) {
	g.vectors[id] = vec
	if g.entry == "" {
		g.entry = id
		g.neighbors[id] = nil
		return
	}

	candidates := g.searchCandidates(vec, g.Params.EfConstruction, "")
	neighbors := pruneToM(candidates, g.Params.M)
	g.neighbors[id] = neighborIDs(neighbors)

	for _, n := range neighbors {
		g.neighbors[n.id] = pruneNeighborList(g, n.id, id)
	}
}

// pruneNeighborList adds newID to nodeID's neighbor list and re-prunes it
// to M entries by distance, keeping the graph's degree bounded.
func pruneNeighborList(g *Graph, nodeID, newID string) []string {
	existing := g.neighbors[nodeID]
	set := make(map[string]bool, len(existing)+1)
	merged := append([]string(nil), existing...)
	for _, e := range existing {
		set[e] = true
	}
	if !set[newID] && newID != nodeID {
		merged = append(merged, newID)
	}

	nodeVec := g.vectors[nodeID]
	cands := make([]candidate, 0, len(merged))
	for _, m := range merged {
		cands = append(cands, candidate{id: m, dist: distance(g.Metric, nodeVec, g.vectors[m])})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if len(cands) > g.Params.M {
		cands = cands[:g.Params.M]
	}
	return neighborIDs(cands)
}

func pruneToM(cands []candidate, m int) []candidate {
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if len(cands) > m {
		cands = cands[:m]
	}
	return cands
}

func neighborIDs(cands []candidate) []string {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.id
	}
	return ids
}

// searchCandidates runs a greedy best-first search from the graph's entry
// point, expanding through neighbor edges, maintaining a frontier of at
// most ef candidates, excluding excludeID (used while inserting, before
// the new node has any edges of its own).
func (g *Graph) searchCandidates(query []float32, ef int, excludeID string) []candidate {
	if g.entry == "" {
		return nil
	}
	visited := map[string]bool{}
	var frontier []candidate

	push := func(id string) {
		if id == excludeID || visited[id] {
			return
		}
		visited[id] = true
		frontier = append(frontier, candidate{id: id, dist: distance(g.Metric, query, g.vectors[id])})
	}
	push(g.entry)

	improved := true
	for improved {
		improved = false
		sort.Slice(frontier, func(i, j int) bool { return frontier[i].dist < frontier[j].dist })
		if len(frontier) > ef {
			frontier = frontier[:ef]
		}
		for _, c := range append([]candidate(nil), frontier...) {
			for _, n := range g.neighbors[c.id] {
				if !visited[n] {
					push(n)
					improved = true
				}
			}
		}
	}

	sort.Slice(frontier, func(i, j int) bool { return frontier[i].dist < frontier[j].dist })
	if len(frontier) > ef {
		frontier = frontier[:ef]
	}
	return frontier
}

// Search returns up to k nearest (id, distance) pairs to query, using
// ef_search as the candidate-frontier size (or the graph's configured
// default if ef <= 0).
func (g *Graph) Search(query []float32, k, ef int) []candidate {
	if ef <= 0 {
		ef = g.Params.EfSearch
	}
	if ef < k {
		ef = k
	}
	cands := g.searchCandidates(query, ef, "")
	if len(cands) > k {
		cands = cands[:k]
	}
	return cands
}

// Vector returns the stored vector for id, if present.
func (g *Graph) Vector(id string) ([]float32, bool) {
	v, ok := g.vectors[id]
	return v, ok
}

// Len returns the number of vectors in the graph.
func (g *Graph) Len() int { return len(g.vectors) }

// IDs returns every id currently in the graph, for serialization.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.vectors))
	for id := range g.vectors {
		ids = append(ids, id)
	}
	return ids
}
