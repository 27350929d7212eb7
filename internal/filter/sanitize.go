package filter

import (
	"github.com/ridgedb/ridgedb/internal/bsonval"
	"github.com/ridgedb/ridgedb/internal/dberr"
)

// MaxSanitizeDepth caps recursion while scanning for dangerous keys (spec
// §4.4), guarding against pathological nesting.
const MaxSanitizeDepth = 20

var dangerousKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// Sanitize recursively rejects any document, filter, or update payload
// that contains a key from the dangerous set at any depth, per spec §4.4.
func Sanitize(d bsonval.Document) error {
	return sanitizeDoc(d, 0)
}

func sanitizeDoc(d bsonval.Document, depth int) error {
	if depth > MaxSanitizeDepth {
		return dberr.BadValue("document nesting exceeds maximum depth of %d", MaxSanitizeDepth)
	}
	for _, f := range d.Fields() {
		if dangerousKeys[f] {
			return dberr.BadValue("field name %q is not allowed", f)
		}
		v, _ := d.Get(f)
		if err := sanitizeValue(v, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func sanitizeValue(v bsonval.Value, depth int) error {
	switch v.Kind {
	case bsonval.KindDocument:
		return sanitizeDoc(v.Doc, depth)
	case bsonval.KindArray:
		if depth > MaxSanitizeDepth {
			return dberr.BadValue("document nesting exceeds maximum depth of %d", MaxSanitizeDepth)
		}
		for _, e := range v.Arr {
			if err := sanitizeValue(e, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
