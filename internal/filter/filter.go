// Package filter implements residual filter evaluation (spec §4.3): given
// a filter document and a candidate document, decide whether the
// candidate matches. Filters are themselves bsonval.Document values — a
// field maps either to a scalar ($eq shorthand) or to an operator
// sub-document ({$gt: ..., $in: [...]}) — so no separate filter AST type
// is needed; the dynamic Value/Document pair already models it.
package filter

import (
	"fmt"
	"strings"

	"github.com/ridgedb/ridgedb/internal/bsonval"
	"github.com/ridgedb/ridgedb/internal/dberr"
)

// MaxInArrayLen is the cap on $in/$nin array length (spec §4.3).
const MaxInArrayLen = 2000

// Match evaluates filter against doc, implementing the residual operator
// set from spec §4.3.
func Match(f bsonval.Document, doc bsonval.Document) (bool, error) {
	for _, key := range f.Fields() {
		v, _ := f.Get(key)
		switch key {
		case "$and":
			ok, err := matchLogical(v, doc, true)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		case "$or":
			ok, err := matchLogical(v, doc, false)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		default:
			ok, err := matchField(key, v, doc)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

func matchLogical(v bsonval.Value, doc bsonval.Document, isAnd bool) (bool, error) {
	if v.Kind != bsonval.KindArray {
		return false, dberr.BadValue("$and/$or requires an array of filters")
	}
	if len(v.Arr) == 0 {
		if isAnd {
			return true, nil
		}
		return false, dberr.BadValue("$or requires a non-empty array")
	}
	for _, sub := range v.Arr {
		if sub.Kind != bsonval.KindDocument {
			return false, dberr.BadValue("$and/$or entries must be filter documents")
		}
		ok, err := Match(sub.Doc, doc)
		if err != nil {
			return false, err
		}
		if isAnd && !ok {
			return false, nil
		}
		if !isAnd && ok {
			return true, nil
		}
	}
	return isAnd, nil
}

func matchField(path string, spec bsonval.Value, doc bsonval.Document) (bool, error) {
	fieldVal, present := resolve(doc, path)

	if spec.Kind != bsonval.KindDocument || isOperatorFree(spec) {
		return present && bsonval.Equal(fieldVal, spec), nil
	}

	for _, op := range spec.Doc.Fields() {
		target, _ := spec.Doc.Get(op)
		ok, err := evalOperator(op, target, fieldVal, present)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// isOperatorFree reports whether a KindDocument value is actually an
// operator object ({$gt: 5}) or a literal nested-document to match by
// deep equality. Mongo-style filters distinguish these by whether keys
// start with '$'; an empty document has no operators so is treated as a
// literal.
func isOperatorFree(v bsonval.Value) bool {
	for _, f := range v.Doc.Fields() {
		if strings.HasPrefix(f, "$") {
			return false
		}
	}
	return true
}

func resolve(doc bsonval.Document, path string) (bsonval.Value, bool) {
	return doc.ResolvePath(strings.Split(path, "."))
}

func evalOperator(op string, target, fieldVal bsonval.Value, present bool) (bool, error) {
	switch op {
	case "$eq":
		return present && bsonval.Equal(fieldVal, target), nil
	case "$ne":
		return !present || !bsonval.Equal(fieldVal, target), nil
	case "$gt", "$gte", "$lt", "$lte":
		return evalRange(op, target, fieldVal, present)
	case "$in":
		return evalIn(target, fieldVal, present, true)
	case "$nin":
		return evalIn(target, fieldVal, present, false)
	case "$exists":
		want := isTruthy(target)
		return present == want, nil
	default:
		return false, dberr.BadValue("unsupported filter operator %q", op)
	}
}

func evalRange(op string, target, fieldVal bsonval.Value, present bool) (bool, error) {
	if !present || fieldVal.IsNullish() {
		return false, nil
	}
	tn, tok := bsonval.AsFinite(target)
	fn, fok := bsonval.AsFinite(fieldVal)
	var cmp int
	if tok && fok {
		switch {
		case fn < tn:
			cmp = -1
		case fn > tn:
			cmp = 1
		default:
			cmp = 0
		}
	} else {
		cmp = strings.Compare(bsonval.Stringify(fieldVal), bsonval.Stringify(target))
	}
	switch op {
	case "$gt":
		return cmp > 0, nil
	case "$gte":
		return cmp >= 0, nil
	case "$lt":
		return cmp < 0, nil
	case "$lte":
		return cmp <= 0, nil
	}
	return false, fmt.Errorf("unreachable operator %q", op)
}

func evalIn(target, fieldVal bsonval.Value, present, wantIn bool) (bool, error) {
	if target.Kind != bsonval.KindArray {
		return false, dberr.BadValue("$in/$nin requires an array operand")
	}
	if len(target.Arr) > MaxInArrayLen {
		return false, dberr.BadValue("$in/$nin array exceeds cap of %d elements", MaxInArrayLen)
	}
	matched := false
	if present {
		for _, e := range target.Arr {
			if bsonval.Equal(fieldVal, e) {
				matched = true
				break
			}
		}
	}
	if wantIn {
		return matched, nil
	}
	// $nin: a missing field counts as matching (no element can equal an
	// absent value), per spec §4.3.
	if !present {
		return true, nil
	}
	return !matched, nil
}

func isTruthy(v bsonval.Value) bool {
	switch v.Kind {
	case bsonval.KindBool:
		return v.Bool
	case bsonval.KindNull:
		return false
	case bsonval.KindInt64:
		return v.I64 != 0
	case bsonval.KindFloat64:
		return v.F64 != 0
	default:
		return true
	}
}
