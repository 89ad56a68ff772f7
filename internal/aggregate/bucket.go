package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/perr"
)

// bucketOrder controls how a keyedBucketFruit renders its buckets.
type bucketOrder int

const (
	orderCountDesc bucketOrder = iota
	orderKeyAsc
	orderDefined
)

// bucketKeyer maps one document to the bucket it falls in: mapKey is the
// internal grouping key, rendered is the "key" field the caller sees, and
// ok is false when the document doesn't belong to any bucket (e.g. the
// field is absent).
type bucketKeyer func(doc document.Document) (mapKey string, rendered any, ok bool)

// keyedBucketAgg is the shared implementation behind terms, histogram,
// date_histogram, range, and filters: group documents by a computed key,
// route each into a per-key instance of the nested sub-aggregations, and
// render a sorted or keyed, optionally size-bounded bucket result.
type keyedBucketAgg struct {
	keyer   bucketKeyer
	subSpec []namedNode
	size    int
	order   bucketOrder
	keyed   bool
	// seed, when non-nil, pre-populates the fixed set of buckets every
	// segment starts from (range/filters: a bucket with 0 matches still
	// appears in the result, in its defined position).
	seed []seedBucket
}

type seedBucket struct {
	mapKey   string
	rendered any
}

func (a keyedBucketAgg) Prepare(root []document.Document) (Prepared, error) {
	subs, err := prepareSubAggs(a.subSpec, root)
	if err != nil {
		return nil, err
	}
	definedOrder := make(map[string]int, len(a.seed))
	for i, seed := range a.seed {
		definedOrder[seed.mapKey] = i
	}
	return keyedBucketPrepared{
		keyer: a.keyer, subs: subs, size: a.size, order: a.order, keyed: a.keyed,
		seed: a.seed, definedOrder: definedOrder,
	}, nil
}

type keyedBucketPrepared struct {
	keyer        bucketKeyer
	subs         subAggSet
	size         int
	order        bucketOrder
	keyed        bool
	seed         []seedBucket
	definedOrder map[string]int
}

func (p keyedBucketPrepared) NewSegment() Segment {
	s := &keyedBucketSegment{keyedBucketPrepared: p, buckets: map[string]*keyedBucketState{}}
	for _, seed := range p.seed {
		s.buckets[seed.mapKey] = &keyedBucketState{renderedKey: seed.rendered, segs: p.subs.newSegments()}
	}
	return s
}

type keyedBucketState struct {
	renderedKey any
	count       int64
	segs        []Segment
}

type keyedBucketSegment struct {
	keyedBucketPrepared
	buckets map[string]*keyedBucketState
}

func (s *keyedBucketSegment) Collect(doc document.Document) {
	mapKey, rendered, ok := s.keyer(doc)
	if !ok {
		return
	}
	b, exists := s.buckets[mapKey]
	if !exists {
		b = &keyedBucketState{renderedKey: rendered, segs: s.subs.newSegments()}
		s.buckets[mapKey] = b
	}
	b.count++
	s.subs.collect(b.segs, doc)
}

func (s *keyedBucketSegment) Fruit() Fruit {
	entries := make(map[string]*keyedBucketEntry, len(s.buckets))
	for k, b := range s.buckets {
		entries[k] = &keyedBucketEntry{renderedKey: b.renderedKey, count: b.count, fruits: s.subs.fruits(b.segs)}
	}
	return &keyedBucketFruit{
		subs: s.subs, size: s.size, order: s.order, keyed: s.keyed,
		definedOrder: s.definedOrder, entries: entries,
	}
}

type keyedBucketEntry struct {
	renderedKey any
	count       int64
	fruits      []Fruit
}

// keyedBucketFruit carries its own rendering parameters (size/order) so
// Result can sort and truncate after every segment has merged in.
type keyedBucketFruit struct {
	subs         subAggSet
	size         int
	order        bucketOrder
	keyed        bool
	definedOrder map[string]int
	entries      map[string]*keyedBucketEntry
}

func (f *keyedBucketFruit) Merge(other Fruit) {
	o := other.(*keyedBucketFruit)
	for k, oe := range o.entries {
		if e, ok := f.entries[k]; ok {
			e.count += oe.count
			if e.fruits != nil {
				f.subs.merge(e.fruits, oe.fruits)
			}
		} else {
			f.entries[k] = oe
		}
	}
	if f.size == 0 {
		f.size = o.size
	}
	if f.definedOrder == nil {
		f.definedOrder = o.definedOrder
	}
	f.keyed = f.keyed || o.keyed
}

func (f *keyedBucketFruit) Result() any {
	type rendered struct {
		mapKey string
		key    any
		count  int64
		body   map[string]any
	}
	list := make([]rendered, 0, len(f.entries))
	for k, e := range f.entries {
		body := f.subs.render(e.fruits)
		body["key"] = e.renderedKey
		body["doc_count"] = e.count
		list = append(list, rendered{mapKey: k, key: e.renderedKey, count: e.count, body: body})
	}

	switch f.order {
	case orderCountDesc:
		sort.Slice(list, func(i, j int) bool {
			if list[i].count != list[j].count {
				return list[i].count > list[j].count
			}
			return list[i].mapKey < list[j].mapKey
		})
	case orderDefined:
		sort.Slice(list, func(i, j int) bool { return f.definedOrder[list[i].mapKey] < f.definedOrder[list[j].mapKey] })
	default:
		sort.Slice(list, func(i, j int) bool {
			a, aNum := list[i].key.(float64)
			b, bNum := list[j].key.(float64)
			if aNum && bNum {
				return a < b
			}
			return list[i].mapKey < list[j].mapKey
		})
	}
	if f.size > 0 && len(list) > f.size {
		list = list[:f.size]
	}

	if f.keyed {
		out := make(map[string]any, len(list))
		for _, r := range list {
			out[r.mapKey] = r.body
		}
		return map[string]any{"buckets": out}
	}
	buckets := make([]map[string]any, len(list))
	for i, r := range list {
		buckets[i] = r.body
	}
	return map[string]any{"buckets": buckets}
}

// --- terms ---

func newTermsAgg(params map[string]any, aggs []namedNode) (Aggregation, error) {
	field, ok := stringParam(params, "field")
	if !ok || field == "" {
		return nil, perr.Input("aggregate.bad_spec", "terms aggregation requires a \"field\"")
	}
	size := intParam(params, "size", 10)
	return keyedBucketAgg{
		keyer:   termsKeyer(field),
		subSpec: aggs,
		size:    size,
		order:   orderCountDesc,
	}, nil
}

func termsKeyer(field string) bucketKeyer {
	return func(doc document.Document) (string, any, bool) {
		v, ok := doc.Fields[field]
		if !ok {
			return "", nil, false
		}
		return fieldKeyOf(v)
	}
}

func fieldKeyOf(v document.Value) (string, any, bool) {
	switch v.Kind {
	case document.KindString, document.KindText:
		return v.Str, v.Str, true
	case document.KindI64:
		return strconv.FormatInt(v.I64, 10), v.I64, true
	case document.KindU64:
		return strconv.FormatUint(v.U64, 10), v.U64, true
	case document.KindF64:
		return strconv.FormatFloat(v.F64, 'g', -1, 64), v.F64, true
	case document.KindBool:
		return strconv.FormatBool(v.Bool), v.Bool, true
	case document.KindTimestamp:
		return v.Time.Format(time.RFC3339), v.Time, true
	default:
		return "", nil, false
	}
}

// --- histogram ---

func newHistogramAgg(params map[string]any, aggs []namedNode) (Aggregation, error) {
	field, ok := stringParam(params, "field")
	if !ok || field == "" {
		return nil, perr.Input("aggregate.bad_spec", "histogram aggregation requires a \"field\"")
	}
	interval := floatParam(params, "interval", 0)
	if interval <= 0 {
		return nil, perr.Input("aggregate.bad_spec", "histogram aggregation requires a positive \"interval\"")
	}
	return keyedBucketAgg{
		keyer:   histogramKeyer(field, interval),
		subSpec: aggs,
		order:   orderKeyAsc,
	}, nil
}

func histogramKeyer(field string, interval float64) bucketKeyer {
	return func(doc document.Document) (string, any, bool) {
		v, ok := doc.Fields[field]
		if !ok {
			return "", nil, false
		}
		f, ok := v.AsFloat64()
		if !ok {
			return "", nil, false
		}
		bucketStart := math.Floor(f/interval) * interval
		return strconv.FormatFloat(bucketStart, 'g', -1, 64), bucketStart, true
	}
}

// --- date_histogram ---

func newDateHistogramAgg(params map[string]any, aggs []namedNode) (Aggregation, error) {
	field, ok := stringParam(params, "field")
	if !ok || field == "" {
		return nil, perr.Input("aggregate.bad_spec", "date_histogram aggregation requires a \"field\"")
	}
	interval, ok := stringParam(params, "interval")
	if !ok || interval == "" {
		interval = "day"
	}
	truncate, err := dateTruncator(interval)
	if err != nil {
		return nil, err
	}
	return keyedBucketAgg{
		keyer:   dateHistogramKeyer(field, truncate),
		subSpec: aggs,
		order:   orderKeyAsc,
	}, nil
}

func dateHistogramKeyer(field string, truncate func(time.Time) time.Time) bucketKeyer {
	return func(doc document.Document) (string, any, bool) {
		v, ok := doc.Fields[field]
		if !ok {
			return "", nil, false
		}
		t, ok := v.AsTime()
		if !ok {
			return "", nil, false
		}
		bucket := truncate(t.UTC())
		return bucket.Format(time.RFC3339), bucket, true
	}
}

func dateTruncator(interval string) (func(time.Time) time.Time, error) {
	switch interval {
	case "hour":
		return func(t time.Time) time.Time {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
		}, nil
	case "day":
		return func(t time.Time) time.Time {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		}, nil
	case "week":
		return func(t time.Time) time.Time {
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
			offset := (int(day.Weekday()) + 6) % 7 // Monday-anchored week
			return day.AddDate(0, 0, -offset)
		}, nil
	case "month":
		return func(t time.Time) time.Time {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		}, nil
	default:
		return nil, perr.Input("aggregate.bad_spec", fmt.Sprintf("date_histogram: unsupported interval %q", interval))
	}
}

// --- range ---

type rangeBucketSpec struct {
	label      string
	from, to   float64
	hasFrom    bool
	hasTo      bool
}

func newRangeAgg(params map[string]any, aggs []namedNode) (Aggregation, error) {
	field, ok := stringParam(params, "field")
	if !ok || field == "" {
		return nil, perr.Input("aggregate.bad_spec", "range aggregation requires a \"field\"")
	}
	raw, ok := params["ranges"].([]any)
	if !ok || len(raw) == 0 {
		return nil, perr.Input("aggregate.bad_spec", "range aggregation requires a non-empty \"ranges\" list")
	}

	specs := make([]rangeBucketSpec, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			return nil, perr.Input("aggregate.bad_spec", "range aggregation: each range must be an object")
		}
		var spec rangeBucketSpec
		if from, ok := m["from"]; ok {
			spec.from = floatParam(map[string]any{"from": from}, "from", 0)
			spec.hasFrom = true
		}
		if to, ok := m["to"]; ok {
			spec.to = floatParam(map[string]any{"to": to}, "to", 0)
			spec.hasTo = true
		}
		if label, ok := stringParam(m, "key"); ok && label != "" {
			spec.label = label
		} else {
			spec.label = rangeLabel(spec)
		}
		specs = append(specs, spec)
	}

	seed := make([]seedBucket, len(specs))
	for i, spec := range specs {
		seed[i] = seedBucket{mapKey: spec.label, rendered: spec.label}
	}

	return keyedBucketAgg{
		keyer:   rangeKeyer(field, specs),
		subSpec: aggs,
		order:   orderDefined,
		seed:    seed,
	}, nil
}

func rangeLabel(spec rangeBucketSpec) string {
	switch {
	case spec.hasFrom && spec.hasTo:
		return fmt.Sprintf("%v-%v", spec.from, spec.to)
	case spec.hasFrom:
		return fmt.Sprintf("%v-*", spec.from)
	case spec.hasTo:
		return fmt.Sprintf("*-%v", spec.to)
	default:
		return "*-*"
	}
}

func rangeKeyer(field string, specs []rangeBucketSpec) bucketKeyer {
	return func(doc document.Document) (string, any, bool) {
		v, ok := doc.Fields[field]
		if !ok {
			return "", nil, false
		}
		f, ok := v.AsFloat64()
		if !ok {
			return "", nil, false
		}
		for _, spec := range specs {
			if spec.hasFrom && f < spec.from {
				continue
			}
			if spec.hasTo && f >= spec.to {
				continue
			}
			return spec.label, spec.label, true
		}
		return "", nil, false
	}
}
