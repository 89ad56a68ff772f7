package aggregate

import (
	"fmt"
	"math"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/perr"
)

type metricKind int

const (
	metricSum metricKind = iota
	metricAvg
	metricMin
	metricMax
	metricStats
)

// countAgg counts every document reaching it; it needs no field.
type countAgg struct{}

func newCountAgg(params map[string]any) (Aggregation, error) {
	return countAgg{}, nil
}

func (countAgg) Prepare(root []document.Document) (Prepared, error) { return countPrepared{}, nil }

type countPrepared struct{}

func (countPrepared) NewSegment() Segment { return &countSegment{} }

type countSegment struct{ n int64 }

func (s *countSegment) Collect(document.Document) { s.n++ }
func (s *countSegment) Fruit() Fruit              { return &countFruit{n: s.n} }

type countFruit struct{ n int64 }

func (f *countFruit) Merge(other Fruit) { f.n += other.(*countFruit).n }
func (f *countFruit) Result() any       { return f.n }

// metricAgg computes sum/avg/min/max/stats over a numeric field.
type metricAgg struct {
	field string
	kind  metricKind
}

func newMetricAgg(params map[string]any, kind metricKind) (Aggregation, error) {
	field, ok := stringParam(params, "field")
	if !ok || field == "" {
		return nil, perr.Input("aggregate.bad_spec", "metric aggregation requires a \"field\"")
	}
	return metricAgg{field: field, kind: kind}, nil
}

func (a metricAgg) Prepare(root []document.Document) (Prepared, error) {
	return metricPrepared{field: a.field, kind: a.kind}, nil
}

type metricPrepared struct {
	field string
	kind  metricKind
}

func (p metricPrepared) NewSegment() Segment {
	return &metricSegment{field: p.field, kind: p.kind, min: math.Inf(1), max: math.Inf(-1)}
}

type metricSegment struct {
	field    string
	kind     metricKind
	count    int64
	sum      float64
	min, max float64
}

func (s *metricSegment) Collect(doc document.Document) {
	v, ok := doc.Fields[s.field]
	if !ok {
		return
	}
	f, ok := v.AsFloat64()
	if !ok {
		return
	}
	s.count++
	s.sum += f
	if f < s.min {
		s.min = f
	}
	if f > s.max {
		s.max = f
	}
}

func (s *metricSegment) Fruit() Fruit {
	return &metricFruit{kind: s.kind, count: s.count, sum: s.sum, min: s.min, max: s.max}
}

type metricFruit struct {
	kind     metricKind
	count    int64
	sum      float64
	min, max float64
}

func (f *metricFruit) Merge(other Fruit) {
	o := other.(*metricFruit)
	f.count += o.count
	f.sum += o.sum
	if o.min < f.min {
		f.min = o.min
	}
	if o.max > f.max {
		f.max = o.max
	}
}

func (f *metricFruit) Result() any {
	switch f.kind {
	case metricSum:
		return f.sum
	case metricAvg:
		return f.average()
	case metricMin:
		return f.boundedMin()
	case metricMax:
		return f.boundedMax()
	case metricStats:
		return map[string]any{
			"count": f.count,
			"sum":   f.sum,
			"avg":   f.average(),
			"min":   f.boundedMin(),
			"max":   f.boundedMax(),
		}
	default:
		panic(fmt.Sprintf("aggregate: unhandled metric kind %d", f.kind))
	}
}

func (f *metricFruit) average() float64 {
	if f.count == 0 {
		return 0
	}
	return f.sum / float64(f.count)
}

func (f *metricFruit) boundedMin() float64 {
	if f.count == 0 {
		return 0
	}
	return f.min
}

func (f *metricFruit) boundedMax() float64 {
	if f.count == 0 {
		return 0
	}
	return f.max
}
