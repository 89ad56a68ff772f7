package aggregate

import (
	"fmt"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/perr"
)

// predicate reports whether doc belongs in a filter/filters bucket.
type predicate func(doc document.Document) bool

// parsePredicate builds a predicate from a filter body: {"field": "...",
// "eq": value} for equality, or {"field": "...", "exists": true/false} for
// presence. Full query-syntax filters are §6 scope, out of this engine.
func parsePredicate(body map[string]any) (predicate, error) {
	field, ok := stringParam(body, "field")
	if !ok || field == "" {
		return nil, perr.Input("aggregate.bad_spec", "filter requires a \"field\"")
	}
	if wantExists, ok := body["exists"].(bool); ok {
		return func(doc document.Document) bool {
			_, present := doc.Fields[field]
			return present == wantExists
		}, nil
	}
	want, hasEq := body["eq"]
	if !hasEq {
		return nil, perr.Input("aggregate.bad_spec", fmt.Sprintf("filter on field %q requires \"eq\" or \"exists\"", field))
	}
	return func(doc document.Document) bool {
		v, ok := doc.Fields[field]
		if !ok {
			return false
		}
		_, rendered, ok := fieldKeyOf(v)
		if !ok {
			return false
		}
		return fmt.Sprint(rendered) == fmt.Sprint(want)
	}, nil
}

// --- filter: a single predicate-gated bucket, rendered as one object
// rather than a "buckets" array (ES's unkeyed single-filter shape).

type filterAgg struct {
	pred    predicate
	subSpec []namedNode
}

func newFilterAgg(params map[string]any, aggs []namedNode) (Aggregation, error) {
	pred, err := parsePredicate(params)
	if err != nil {
		return nil, err
	}
	return filterAgg{pred: pred, subSpec: aggs}, nil
}

func (a filterAgg) Prepare(root []document.Document) (Prepared, error) {
	subs, err := prepareSubAggs(a.subSpec, root)
	if err != nil {
		return nil, err
	}
	return filterPrepared{pred: a.pred, subs: subs}, nil
}

type filterPrepared struct {
	pred predicate
	subs subAggSet
}

func (p filterPrepared) NewSegment() Segment {
	return &filterSegment{pred: p.pred, subs: p.subs, segs: p.subs.newSegments()}
}

type filterSegment struct {
	pred  predicate
	subs  subAggSet
	count int64
	segs  []Segment
}

func (s *filterSegment) Collect(doc document.Document) {
	if !s.pred(doc) {
		return
	}
	s.count++
	s.subs.collect(s.segs, doc)
}

func (s *filterSegment) Fruit() Fruit {
	return &filterFruit{subs: s.subs, count: s.count, fruits: s.subs.fruits(s.segs)}
}

type filterFruit struct {
	subs   subAggSet
	count  int64
	fruits []Fruit
}

func (f *filterFruit) Merge(other Fruit) {
	o := other.(*filterFruit)
	f.count += o.count
	if f.fruits != nil {
		f.subs.merge(f.fruits, o.fruits)
	}
}

func (f *filterFruit) Result() any {
	body := f.subs.render(f.fruits)
	body["doc_count"] = f.count
	return body
}

// --- filters: multiple named predicate-gated buckets, keyed by name.

func newFiltersAgg(params map[string]any, aggs []namedNode) (Aggregation, error) {
	raw, ok := params["filters"].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil, perr.Input("aggregate.bad_spec", "filters aggregation requires a non-empty \"filters\" object")
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	keyers := make(map[string]predicate, len(names))
	seed := make([]seedBucket, 0, len(names))
	for _, name := range names {
		body, ok := raw[name].(map[string]any)
		if !ok {
			return nil, perr.Input("aggregate.bad_spec", fmt.Sprintf("filters.%s must be an object", name))
		}
		pred, err := parsePredicate(body)
		if err != nil {
			return nil, err
		}
		keyers[name] = pred
		seed = append(seed, seedBucket{mapKey: name, rendered: name})
	}

	return keyedBucketAgg{
		keyer:   namedPredicateKeyer(keyers),
		subSpec: aggs,
		order:   orderDefined,
		keyed:   true,
		seed:    seed,
	}, nil
}

// namedPredicateKeyer routes a document into the first named bucket whose
// predicate matches, checking names in map-iteration order. A document is
// counted in at most one bucket: when it satisfies several named filters,
// which of those buckets receives it is not defined.
func namedPredicateKeyer(keyers map[string]predicate) bucketKeyer {
	return func(doc document.Document) (string, any, bool) {
		for name, pred := range keyers {
			if pred(doc) {
				return name, name, true
			}
		}
		return "", nil, false
	}
}

// --- global: ignore whatever bucket scope this was nested under and
// evaluate sub-aggregations over every document in root (spec.md §4.2).

type globalAgg struct {
	subSpec []namedNode
}

func newGlobalAgg(aggs []namedNode) (Aggregation, error) {
	return globalAgg{subSpec: aggs}, nil
}

func (a globalAgg) Prepare(root []document.Document) (Prepared, error) {
	subs, err := prepareSubAggs(a.subSpec, root)
	if err != nil {
		return nil, err
	}
	segs := subs.newSegments()
	for _, doc := range root {
		subs.collect(segs, doc)
	}
	result := subs.render(subs.fruits(segs))
	result["doc_count"] = int64(len(root))
	return globalPrepared{result: result}, nil
}

type globalPrepared struct{ result map[string]any }

func (p globalPrepared) NewSegment() Segment { return globalSegment{result: p.result} }

type globalSegment struct{ result map[string]any }

func (s globalSegment) Collect(document.Document) {}
func (s globalSegment) Fruit() Fruit              { return globalFruit{result: s.result} }

type globalFruit struct{ result map[string]any }

func (f globalFruit) Merge(Fruit) {}
func (f globalFruit) Result() any { return f.result }
