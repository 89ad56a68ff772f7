package graph

import "container/heap"

// BFS walks outward from start, optionally restricted to one edge type,
// up to maxDepth hops (0 means unbounded), and returns every node id
// reached in visitation order. Under ScopeShard this never leaves
// start's shard since no cross-shard edge can exist; under
// ScopeCollection it may (spec.md §4.4: "O(V+E) within the starting
// shard" describes the shard-scope case).
func (g *Graph) BFS(start string, edgeType string, maxDepth int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	type frontierNode struct {
		id    string
		depth int
	}
	visited := map[string]bool{start: true}
	order := []string{start}
	queue := []frontierNode{{id: start, depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && cur.depth >= maxDepth {
			continue
		}
		for _, e := range g.shards[g.shardFor(cur.id)].edgesFrom(cur.id) {
			if edgeType != "" && e.Type != edgeType {
				continue
			}
			if visited[e.Target] {
				continue
			}
			visited[e.Target] = true
			order = append(order, e.Target)
			queue = append(queue, frontierNode{id: e.Target, depth: cur.depth + 1})
		}
	}
	return order
}

// pqItem is one entry in Dijkstra's priority queue.
type pqItem struct {
	id   string
	dist float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// ShortestPath finds the minimum-weight path from start to target via
// Dijkstra, restricted to edgeTypes when non-empty (any type otherwise).
// Edge weights must be non-negative. Returns the path (inclusive of
// start and target) and its total weight, or found=false if target is
// unreachable.
func (g *Graph) ShortestPath(start, target string, edgeTypes []string) (path []string, totalWeight float64, found bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	allowed := make(map[string]bool, len(edgeTypes))
	for _, t := range edgeTypes {
		allowed[t] = true
	}

	dist := map[string]float64{start: 0}
	prev := map[string]string{}
	visited := map[string]bool{}

	pq := &priorityQueue{{id: start, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true
		if cur.id == target {
			break
		}
		for _, e := range g.shards[g.shardFor(cur.id)].edgesFrom(cur.id) {
			if len(allowed) > 0 && !allowed[e.Type] {
				continue
			}
			if e.Weight < 0 {
				continue
			}
			nd := cur.dist + e.Weight
			if existing, ok := dist[e.Target]; !ok || nd < existing {
				dist[e.Target] = nd
				prev[e.Target] = cur.id
				heap.Push(pq, pqItem{id: e.Target, dist: nd})
			}
		}
	}

	if _, ok := dist[target]; !ok || !visited[target] {
		return nil, 0, false
	}

	for at := target; ; {
		path = append([]string{at}, path...)
		if at == start {
			break
		}
		at = prev[at]
	}
	return path, dist[target], true
}
