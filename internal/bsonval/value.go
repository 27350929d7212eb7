// Package bsonval models documents as an open, tagged-union value type
// instead of deserializing into concrete Go structs. The store never knows
// the shape of a caller's document ahead of time, so every field is a
// Value and every document is a plain ordered map keyed by field name.
package bsonval

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Kind tags the dynamic type carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindDate
	KindArray
	KindDocument
)

// Value is a single document field value. Exactly one of the typed fields
// is meaningful, selected by Kind. Int64 and Float64 are kept distinct so
// that documents round-trip integers without drifting into floating point,
// but comparisons and the key encoding (internal/keyenc) treat both as
// "number" and compare numerically.
type Value struct {
	Kind Kind
	Bool bool
	I64  int64
	F64  float64
	Str  string
	Time time.Time
	Arr  []Value
	Doc  Document
}

// Document is an ordered mapping from field name to Value. Go maps have no
// defined iteration order; the order slice preserves the insertion order seen
// on the wire (needed by the planner, which must examine filter entries
// "in insertion order").
type Document struct {
	fields map[string]Value
	order  []string
}

// NewDocument returns an empty, ready-to-use Document.
func NewDocument() Document {
	return Document{fields: make(map[string]Value)}
}

// Set inserts or overwrites a field, appending to the order only on first
// insertion so repeated Set calls do not reorder existing fields.
func (d *Document) Set(field string, v Value) {
	if d.fields == nil {
		d.fields = make(map[string]Value)
	}
	if _, ok := d.fields[field]; !ok {
		d.order = append(d.order, field)
	}
	d.fields[field] = v
}

// Get returns the value at field and whether it was present.
func (d Document) Get(field string) (Value, bool) {
	v, ok := d.fields[field]
	return v, ok
}

// Delete removes a field, returning whether it existed.
func (d *Document) Delete(field string) bool {
	if _, ok := d.fields[field]; !ok {
		return false
	}
	delete(d.fields, field)
	for i, f := range d.order {
		if f == field {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true
}

// Fields returns field names in insertion order.
func (d Document) Fields() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Len returns the number of top-level fields.
func (d Document) Len() int { return len(d.fields) }

// Clone performs a deep copy, used whenever a document crosses a boundary
// that must not alias caller-owned memory (store writes, update application).
func (d Document) Clone() Document {
	out := NewDocument()
	for _, f := range d.order {
		out.Set(f, d.fields[f].Clone())
	}
	return out
}

// Clone deep-copies a Value.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindArray:
		arr := make([]Value, len(v.Arr))
		for i, e := range v.Arr {
			arr[i] = e.Clone()
		}
		return Value{Kind: KindArray, Arr: arr}
	case KindDocument:
		return Value{Kind: KindDocument, Doc: v.Doc.Clone()}
	default:
		return v
	}
}

// ResolvePath descends a dotted field path (e.g. "a.b.c") through nested
// documents, as required by residual filter evaluation (spec §4.3).
// Arrays are not indexed by dotted paths; a path segment over an array
// value fails to resolve.
func (d Document) ResolvePath(path []string) (Value, bool) {
	if len(path) == 0 {
		return Value{}, false
	}
	v, ok := d.Get(path[0])
	if !ok {
		return Value{}, false
	}
	if len(path) == 1 {
		return v, true
	}
	if v.Kind != KindDocument {
		return Value{}, false
	}
	return v.Doc.ResolvePath(path[1:])
}

// IsNullish reports whether v should be treated as absent for indexing and
// range-predicate purposes: the null literal only (absence is represented
// by Get returning ok=false, handled by callers separately).
func (v Value) IsNullish() bool {
	return v.Kind == KindNull
}

// Equal implements the deep structural equality used by $eq/$ne/$in/$nin.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		// Mongo-style $eq treats int64 and float64 representing the same
		// number as equal; everything else requires matching kinds.
		if isNumeric(a.Kind) && isNumeric(b.Kind) {
			return numericOf(a) == numericOf(b)
		}
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindInt64:
		return a.I64 == b.I64
	case KindFloat64:
		return a.F64 == b.F64
	case KindString:
		return a.Str == b.Str
	case KindDate:
		return a.Time.Equal(b.Time)
	case KindArray:
		if len(a.Arr) != len(b.Arr) {
			return false
		}
		for i := range a.Arr {
			if !Equal(a.Arr[i], b.Arr[i]) {
				return false
			}
		}
		return true
	case KindDocument:
		if a.Doc.Len() != b.Doc.Len() {
			return false
		}
		for _, f := range a.Doc.Fields() {
			av, _ := a.Doc.Get(f)
			bv, ok := b.Doc.Get(f)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func isNumeric(k Kind) bool { return k == KindInt64 || k == KindFloat64 }

func numericOf(v Value) float64 {
	if v.Kind == KindInt64 {
		return float64(v.I64)
	}
	return v.F64
}

// AsFinite returns the numeric value of v and whether it is a finite
// number (used by range predicate coercion, spec §4.3).
func AsFinite(v Value) (float64, bool) {
	switch v.Kind {
	case KindInt64:
		return float64(v.I64), true
	case KindFloat64:
		f := v.F64
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return 0, false
	}
}

// Stringify renders a value the way the sort comparator and string-fallback
// comparison do: a human-ish, deterministic textual form.
func Stringify(v Value) string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindInt64:
		return fmt.Sprintf("%d", v.I64)
	case KindFloat64:
		return fmt.Sprintf("%v", v.F64)
	case KindString:
		return v.Str
	case KindDate:
		return v.Time.UTC().Format(time.RFC3339Nano)
	case KindArray:
		parts := make([]string, len(v.Arr))
		for i, e := range v.Arr {
			parts[i] = Stringify(e)
		}
		return fmt.Sprintf("%v", parts)
	case KindDocument:
		fields := v.Doc.Fields()
		sort.Strings(fields)
		return fmt.Sprintf("%v", fields)
	default:
		return ""
	}
}
