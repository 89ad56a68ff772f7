// Package document defines the tagged document value every backend and
// pipeline processor shares: the atomic ingest unit (spec.md §3).
package document

import "time"

// ValueKind tags the dynamic type carried by a Value.
type ValueKind string

const (
	KindString    ValueKind = "string"
	KindText      ValueKind = "text"
	KindI64       ValueKind = "i64"
	KindU64       ValueKind = "u64"
	KindF64       ValueKind = "f64"
	KindBool      ValueKind = "bool"
	KindTimestamp ValueKind = "timestamp"
	KindBytes     ValueKind = "bytes"
)

// Value is a tagged field value. Exactly the field matching Kind is
// meaningful; the rest are zero.
type Value struct {
	Kind ValueKind
	Str  string
	I64  int64
	U64  uint64
	F64  float64
	Bool bool
	Time time.Time
	Blob []byte
}

func String(v string) Value { return Value{Kind: KindString, Str: v} }
func Text(v string) Value   { return Value{Kind: KindText, Str: v} }
func I64(v int64) Value     { return Value{Kind: KindI64, I64: v} }
func U64(v uint64) Value    { return Value{Kind: KindU64, U64: v} }
func F64(v float64) Value   { return Value{Kind: KindF64, F64: v} }
func Bool(v bool) Value     { return Value{Kind: KindBool, Bool: v} }
func Timestamp(v time.Time) Value {
	return Value{Kind: KindTimestamp, Time: v}
}
func Bytes(v []byte) Value { return Value{Kind: KindBytes, Blob: v} }

// AsString returns the value's string form for the kinds where that's
// meaningful (string, text); ok is false otherwise.
func (v Value) AsString() (string, bool) {
	switch v.Kind {
	case KindString, KindText:
		return v.Str, true
	default:
		return "", false
	}
}

// AsFloat64 returns the value's numeric form for the kinds aggregations
// operate on (i64, u64, f64); ok is false otherwise.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindI64:
		return float64(v.I64), true
	case KindU64:
		return float64(v.U64), true
	case KindF64:
		return v.F64, true
	default:
		return 0, false
	}
}

// AsTime returns the value's timestamp form; ok is false otherwise.
func (v Value) AsTime() (time.Time, bool) {
	if v.Kind != KindTimestamp {
		return time.Time{}, false
	}
	return v.Time, true
}

// Document is the atomic ingest unit: an id plus a field-name → tagged
// value mapping (spec.md §3).
type Document struct {
	ID     string
	Fields map[string]Value
}

// Clone returns a deep-enough copy for pipeline processors to mutate
// without aliasing the caller's map.
func (d Document) Clone() Document {
	fields := make(map[string]Value, len(d.Fields))
	for k, v := range d.Fields {
		fields[k] = v
	}
	return Document{ID: d.ID, Fields: fields}
}
