package aggregate

import "github.com/prism-search/prism/internal/document"

// subAggSet prepares and drives zero or more named nested aggregations
// sharing the same document stream — the mechanism that makes "nested
// aggregations compose identically" (spec.md §4.2) regardless of whether
// the nesting parent is a metric or bucket aggregation.
type subAggSet struct {
	names    []string
	prepared []Prepared
}

func prepareSubAggs(aggs []namedNode, root []document.Document) (subAggSet, error) {
	var s subAggSet
	for _, n := range aggs {
		agg, err := build(n.node, root)
		if err != nil {
			return subAggSet{}, err
		}
		p, err := agg.Prepare(root)
		if err != nil {
			return subAggSet{}, err
		}
		s.names = append(s.names, n.name)
		s.prepared = append(s.prepared, p)
	}
	return s, nil
}

func (s subAggSet) newSegments() []Segment {
	if len(s.prepared) == 0 {
		return nil
	}
	segs := make([]Segment, len(s.prepared))
	for i, p := range s.prepared {
		segs[i] = p.NewSegment()
	}
	return segs
}

func (s subAggSet) collect(segs []Segment, doc document.Document) {
	for _, seg := range segs {
		seg.Collect(doc)
	}
}

func (s subAggSet) fruits(segs []Segment) []Fruit {
	if segs == nil {
		return nil
	}
	out := make([]Fruit, len(segs))
	for i, seg := range segs {
		out[i] = seg.Fruit()
	}
	return out
}

func (s subAggSet) merge(dst, src []Fruit) {
	for i := range dst {
		dst[i].Merge(src[i])
	}
}

func (s subAggSet) render(fruits []Fruit) map[string]any {
	out := make(map[string]any, len(s.names))
	for i, name := range s.names {
		out[name] = fruits[i].Result()
	}
	return out
}
