package filter

import (
	"strings"

	"github.com/ridgedb/ridgedb/internal/bsonval"
	"github.com/ridgedb/ridgedb/internal/dberr"
)

// ApplyUpdate applies an update spec ({$set, $inc, $unset}) to a clone of
// doc, per spec §4.4. It returns the resulting document and whether any
// field actually changed (used for modifiedCount).
func ApplyUpdate(doc bsonval.Document, update bsonval.Document) (bsonval.Document, bool, error) {
	out := doc.Clone()
	changed := false

	for _, op := range update.Fields() {
		spec, _ := update.Get(op)
		switch op {
		case "$set":
			if spec.Kind != bsonval.KindDocument {
				return out, false, dberr.BadValue("$set requires a document")
			}
			for _, f := range spec.Doc.Fields() {
				nv, _ := spec.Doc.Get(f)
				if cur, ok := out.Get(f); !ok || !bsonval.Equal(cur, nv) {
					changed = true
				}
				out.Set(f, nv.Clone())
			}
		case "$inc":
			if spec.Kind != bsonval.KindDocument {
				return out, false, dberr.BadValue("$inc requires a document")
			}
			for _, f := range spec.Doc.Fields() {
				delta, _ := spec.Doc.Get(f)
				dn, ok := bsonval.AsFinite(delta)
				if !ok {
					return out, false, dberr.BadValue("$inc operand for %q must be numeric", f)
				}
				cur, exists := out.Get(f)
				var base float64
				if exists {
					b, ok := bsonval.AsFinite(cur)
					if !ok {
						return out, false, dberr.BadValue("$inc target %q is not numeric", f)
					}
					base = b
				}
				out.Set(f, bsonval.Value{Kind: bsonval.KindFloat64, F64: base + dn})
				changed = true
			}
		case "$unset":
			if spec.Kind != bsonval.KindDocument {
				return out, false, dberr.BadValue("$unset requires a document")
			}
			for _, f := range spec.Doc.Fields() {
				if out.Delete(f) {
					changed = true
				}
			}
		default:
			return out, false, dberr.BadValue("unsupported update operator %q", op)
		}
	}
	return out, changed, nil
}

// BaseDocumentFromFilter builds the seed document for an upsert by
// stripping operator keys from the filter (spec §4.4): top-level keys
// starting with '$', and values that are themselves operator objects
// (e.g. {$gte: x}) rather than scalars.
func BaseDocumentFromFilter(f bsonval.Document) bsonval.Document {
	out := bsonval.NewDocument()
	for _, field := range f.Fields() {
		if strings.HasPrefix(field, "$") {
			continue
		}
		v, _ := f.Get(field)
		if v.Kind == bsonval.KindDocument && !isOperatorFree(v) {
			continue
		}
		out.Set(field, v.Clone())
	}
	return out
}

// MergeUpsertUpdate merges $set and $inc from an update spec into base,
// used to finish building the document an upsert inserts (spec §4.4).
func MergeUpsertUpdate(base bsonval.Document, update bsonval.Document) (bsonval.Document, error) {
	merged, _, err := ApplyUpdate(base, update)
	return merged, err
}
