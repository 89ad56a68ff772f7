// Package aggregate implements Prism's aggregation engine: a three-tier
// Aggregation → Prepared → Segment collector pipeline over a materialized
// document set, supporting metric (count/sum/avg/min/max/stats/percentiles)
// and bucket (terms/histogram/date_histogram/range/filter/filters/global)
// aggregations with nested sub-aggregations (spec.md §4.2).
package aggregate

import (
	"context"
	"runtime"
	"sync"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/perr"
)

// defaultScanLimit bounds how many documents a single aggregation request
// scans when the caller configures none, so an unbounded collection can't
// turn an aggregate call into an unbounded full scan.
const defaultScanLimit = 1_000_000

// minSegmentSize keeps segment fan-out from spinning up a goroutine per
// handful of documents on small collections.
const minSegmentSize = 2048

// Engine is the concrete Aggregator collection.Manager routes §4.2's
// aggregate operation through.
type Engine struct {
	// ScanLimit caps the number of documents any single Run call
	// collects over, per spec.md's "budget: bounded by scan_limit."
	ScanLimit int
}

// NewEngine builds an Engine with scanLimit <= 0 meaning "use the default".
func NewEngine(scanLimit int) *Engine {
	if scanLimit <= 0 {
		scanLimit = defaultScanLimit
	}
	return &Engine{ScanLimit: scanLimit}
}

// Run evaluates spec — a map of aggregation name to aggregation body, the
// shape collection.Manager.Aggregate's callers supply — against docs and
// returns one result per named aggregation, keyed the same way.
func (e *Engine) Run(ctx context.Context, docs []document.Document, spec map[string]any) (map[string]any, error) {
	if e == nil {
		return nil, perr.Configuration("aggregate.no_engine", "no aggregation engine configured")
	}
	limit := e.ScanLimit
	if limit <= 0 {
		limit = defaultScanLimit
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}

	nodes, err := parseSpec(spec)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(nodes))
	for _, named := range nodes {
		result, err := evalNode(ctx, named.node, docs)
		if err != nil {
			return nil, err
		}
		out[named.name] = result
	}
	return out, nil
}

// evalNode builds named.node's Aggregation, runs it over docs with
// parallel per-segment collection, and renders its Fruit to the
// caller-facing result shape (spec.md's "partials merge left-to-right").
func evalNode(ctx context.Context, node aggNode, docs []document.Document) (any, error) {
	agg, err := build(node, docs)
	if err != nil {
		return nil, err
	}
	prepared, err := agg.Prepare(docs)
	if err != nil {
		return nil, err
	}
	fruit, err := collect(ctx, prepared, docs)
	if err != nil {
		return nil, err
	}
	return fruit.Result(), nil
}

// collect drives prepared's segment collectors over docs, splitting the
// document set into ordered segments collected concurrently, then merging
// partial Fruits left-to-right in segment order (deterministic regardless
// of goroutine completion order).
func collect(ctx context.Context, prepared Prepared, docs []document.Document) (Fruit, error) {
	if len(docs) == 0 {
		return prepared.NewSegment().Fruit(), nil
	}

	segments := splitSegments(len(docs))
	fruits := make([]Fruit, len(segments))

	var wg sync.WaitGroup
	for i, seg := range segments {
		wg.Add(1)
		go func(i int, seg [2]int) {
			defer wg.Done()
			collector := prepared.NewSegment()
			for _, doc := range docs[seg[0]:seg[1]] {
				if ctx.Err() != nil {
					return
				}
				collector.Collect(doc)
			}
			fruits[i] = collector.Fruit()
		}(i, seg)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, perr.Upstream("aggregate.canceled", err)
	}

	merged := fruits[0]
	for _, f := range fruits[1:] {
		merged.Merge(f)
	}
	return merged, nil
}

// splitSegments partitions [0, n) into up to GOMAXPROCS contiguous ranges
// of at least minSegmentSize documents each.
func splitSegments(n int) [][2]int {
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if n/minSegmentSize < workers {
		workers = n / minSegmentSize
	}
	if workers < 1 {
		workers = 1
	}

	size := n / workers
	segments := make([][2]int, 0, workers)
	start := 0
	for i := 0; i < workers; i++ {
		end := start + size
		if i == workers-1 {
			end = n
		}
		segments = append(segments, [2]int{start, end})
		start = end
	}
	return segments
}
