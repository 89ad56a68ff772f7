package aggregate

import "github.com/prism-search/prism/internal/document"

// Aggregation is a top-level aggregation definition: it prepares a bound
// Prepared form once, from which every segment builds its own collector
// (spec.md §4.2's three-tier collector interface).
type Aggregation interface {
	// Prepare binds the aggregation to the full in-scope document set.
	// Most aggregations ignore root beyond size; Global uses it to
	// evaluate its sub-aggregations outside whatever bucket scope it
	// was nested under.
	Prepare(root []document.Document) (Prepared, error)
}

// Prepared constructs one Segment collector per document-set partition.
type Prepared interface {
	NewSegment() Segment
}

// Segment collects one partition's documents into a partial Fruit via a
// per-document callback.
type Segment interface {
	Collect(doc document.Document)
	Fruit() Fruit
}

// Fruit is a partial aggregation result. Merge combines another partial
// result produced by a sibling segment into the receiver (partials merge
// left-to-right); Result renders the caller-facing value once every
// segment has merged in.
type Fruit interface {
	Merge(other Fruit)
	Result() any
}
