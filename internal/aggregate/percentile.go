package aggregate

import (
	"sort"
	"strconv"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/perr"
)

// defaultPercents mirrors the common latency-percentile set the teacher's
// own metrics layer reports (p50/p95/p99).
var defaultPercents = []float64{50, 95, 99}

// percentilesAgg collects every in-scope numeric value for field and
// reports exact percentiles via sorted-array linear interpolation (not a
// t-digest), per spec.md §4.2.
type percentilesAgg struct {
	field    string
	percents []float64
}

func newPercentilesAgg(params map[string]any) (Aggregation, error) {
	field, ok := stringParam(params, "field")
	if !ok || field == "" {
		return nil, perr.Input("aggregate.bad_spec", "percentiles aggregation requires a \"field\"")
	}
	percents := defaultPercents
	if raw, ok := params["percents"].([]any); ok {
		percents = make([]float64, 0, len(raw))
		for _, p := range raw {
			if f, ok := p.(float64); ok {
				percents = append(percents, f)
			}
		}
	}
	return percentilesAgg{field: field, percents: percents}, nil
}

func (a percentilesAgg) Prepare(root []document.Document) (Prepared, error) {
	return percentilesPrepared{field: a.field, percents: a.percents}, nil
}

type percentilesPrepared struct {
	field    string
	percents []float64
}

func (p percentilesPrepared) NewSegment() Segment {
	return &percentilesSegment{field: p.field, percents: p.percents}
}

type percentilesSegment struct {
	field    string
	percents []float64
	values   []float64
}

func (s *percentilesSegment) Collect(doc document.Document) {
	v, ok := doc.Fields[s.field]
	if !ok {
		return
	}
	if f, ok := v.AsFloat64(); ok {
		s.values = append(s.values, f)
	}
}

func (s *percentilesSegment) Fruit() Fruit {
	return &percentilesFruit{percents: s.percents, values: s.values}
}

type percentilesFruit struct {
	percents []float64
	values   []float64
}

func (f *percentilesFruit) Merge(other Fruit) {
	o := other.(*percentilesFruit)
	f.values = append(f.values, o.values...)
}

func (f *percentilesFruit) Result() any {
	sorted := append([]float64(nil), f.values...)
	sort.Float64s(sorted)

	out := make(map[string]float64, len(f.percents))
	for _, p := range f.percents {
		out[percentileKey(p)] = linearInterpolatedPercentile(sorted, p)
	}
	return out
}

// linearInterpolatedPercentile computes the p-th percentile (0-100) of a
// pre-sorted slice using the "R-7" linear-interpolation method: exact, not
// an approximation, which is the right trade-off at the scan_limit-bounded
// sizes this engine deals in.
func linearInterpolatedPercentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := (p / 100) * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func percentileKey(p float64) string {
	return strconv.FormatFloat(p, 'g', -1, 64)
}
