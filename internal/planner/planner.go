// Package planner implements spec §4.3's plan selection: given a filter,
// the indexes defined on a collection, and the collection name, decide
// between a collectionScan and a single-field indexScan. It never touches
// the KV substrate — internal/query executes whatever plan this package
// returns.
package planner

import (
	"strings"

	"github.com/ridgedb/ridgedb/internal/bsonval"
	"github.com/ridgedb/ridgedb/internal/dberr"
	"github.com/ridgedb/ridgedb/internal/keyenc"
	"github.com/ridgedb/ridgedb/internal/meta"
)

// Type identifies the shape of a Plan.
type Type int

const (
	CollectionScan Type = iota
	IndexScan
)

// Plan is the planner's output: what to scan and whether the scan's
// results still need residual filter evaluation.
type Plan struct {
	Type            Type
	Field           string
	IndexName       string
	Range           keyenc.Range
	NeedsPostFilter bool
	// CostEstimate is informational only (spec §4.3): a rough ranking, not
	// a guarantee, used by callers that log or expose query diagnostics.
	CostEstimate int64
}

// rangeOps is the set of operators the planner can turn into an index
// range; anything else forces a post-filter.
var rangeOps = map[string]keyenc.Op{
	"$eq":  keyenc.OpEq,
	"$gt":  keyenc.OpGt,
	"$gte": keyenc.OpGte,
	"$lt":  keyenc.OpLt,
	"$lte": keyenc.OpLte,
}

// Select implements the five plan-selection rules of spec §4.3.
// documentCount seeds the informational cost estimate for a collection
// scan; it has no effect on which plan is chosen.
func Select(collection string, filter bsonval.Document, indexes []meta.IndexDef, documentCount int64) (Plan, error) {
	if filter.Len() == 0 {
		return Plan{Type: CollectionScan, CostEstimate: documentCount}, nil
	}

	plan, matched, err := selectFromFields(collection, filter, indexes)
	if err != nil {
		return Plan{}, err
	}
	if matched {
		return plan, nil
	}

	if v, ok := filter.Get("$and"); ok {
		if sub, found, err := selectFromLogical(collection, v, indexes); err != nil {
			return Plan{}, err
		} else if found {
			sub.NeedsPostFilter = true
			return sub, nil
		}
	}

	if v, ok := filter.Get("$or"); ok {
		if sub, found, err := selectFromLogical(collection, v, indexes); err != nil {
			return Plan{}, err
		} else if found {
			sub.NeedsPostFilter = true
			return sub, nil
		}
	}

	return Plan{Type: CollectionScan, NeedsPostFilter: true, CostEstimate: documentCount}, nil
}

// selectFromFields implements rule 2: the first filter entry (in insertion
// order, skipping '$'-prefixed keys) naming an indexed field with a
// range-expressible value becomes the scan.
func selectFromFields(collection string, filter bsonval.Document, indexes []meta.IndexDef) (Plan, bool, error) {
	fields := filter.Fields()

	for _, key := range fields {
		if strings.HasPrefix(key, "$") {
			continue
		}
		ix, isIndexed := findByField(indexes, key)
		if !isIndexed {
			continue
		}
		v, _ := filter.Get(key)

		ops, hasOtherOps, isRangeExpr := extractRangeOps(v)
		if !isRangeExpr || !allIndexable(ops) {
			continue
		}

		rng, err := keyenc.IndexRange(collection, key, ops)
		if err != nil {
			return Plan{}, false, dberr.BadValue("%v", err)
		}

		needsPostFilter := len(fields) > 1 || hasOtherOps
		return Plan{
			Type:            IndexScan,
			Field:           key,
			IndexName:       ix.Name,
			Range:           rng,
			NeedsPostFilter: needsPostFilter,
			CostEstimate:    1,
		}, true, nil
	}

	return Plan{}, false, nil
}

// selectFromLogical applies rule 2's field scan to each sub-filter of a
// $and/$or array, in order, returning the first indexScan found (rules 3,4).
func selectFromLogical(collection string, arr bsonval.Value, indexes []meta.IndexDef) (Plan, bool, error) {
	if arr.Kind != bsonval.KindArray {
		return Plan{}, false, nil
	}
	for _, sub := range arr.Arr {
		if sub.Kind != bsonval.KindDocument {
			continue
		}
		plan, matched, err := selectFromFields(collection, sub.Doc, indexes)
		if err != nil {
			return Plan{}, false, err
		}
		if matched {
			return plan, true, nil
		}
	}
	return Plan{}, false, nil
}

// extractRangeOps inspects a field's filter value and reports:
//   - ops: the range-expressible operators found ($eq/$gt/$gte/$lt/$lte),
//     keyed by keyenc.Op, with the scalar shorthand folded into OpEq;
//   - hasOtherOps: whether a non-range operator ($ne, $in, $nin, $exists,
//     ...) also appears;
//   - isRangeExpr: whether the value qualifies at all for an index scan
//     (a bare scalar, or an operator object with at least one range op).
func extractRangeOps(v bsonval.Value) (ops map[keyenc.Op]bsonval.Value, hasOtherOps bool, isRangeExpr bool) {
	if v.Kind != bsonval.KindDocument || isOperatorFreeDoc(v.Doc) {
		return map[keyenc.Op]bsonval.Value{keyenc.OpEq: v}, false, true
	}

	ops = make(map[keyenc.Op]bsonval.Value)
	for _, op := range v.Doc.Fields() {
		target, _ := v.Doc.Get(op)
		if code, ok := rangeOps[op]; ok {
			ops[code] = target
			continue
		}
		hasOtherOps = true
	}
	return ops, hasOtherOps, len(ops) > 0
}

// allIndexable reports whether every operand extracted for a candidate
// index scan is itself index-encodable. A bare {field: {nested: 1}}
// equality match folds to OpEq with a document operand, which
// keyenc.EncodeValue cannot represent; such a field is skipped for
// indexing and left to a post-filter collection scan instead of failing
// the query.
func allIndexable(ops map[keyenc.Op]bsonval.Value) bool {
	for _, v := range ops {
		switch v.Kind {
		case bsonval.KindDocument, bsonval.KindArray:
			return false
		}
	}
	return true
}

// isOperatorFreeDoc mirrors internal/filter's distinction between an
// operator object and a literal nested document to match by equality.
func isOperatorFreeDoc(d bsonval.Document) bool {
	for _, f := range d.Fields() {
		if strings.HasPrefix(f, "$") {
			return false
		}
	}
	return true
}

func findByField(indexes []meta.IndexDef, field string) (meta.IndexDef, bool) {
	for _, ix := range indexes {
		if ix.Field == field {
			return ix, true
		}
	}
	return meta.IndexDef{}, false
}
