package planner

import (
	"testing"

	"github.com/ridgedb/ridgedb/internal/bsonval"
	"github.com/ridgedb/ridgedb/internal/meta"
)

func str(s string) bsonval.Value { return bsonval.Value{Kind: bsonval.KindString, Str: s} }
func i64(n int64) bsonval.Value  { return bsonval.Value{Kind: bsonval.KindInt64, I64: n} }

func doc(pairs ...any) bsonval.Document {
	d := bsonval.NewDocument()
	for i := 0; i < len(pairs); i += 2 {
		d.Set(pairs[i].(string), pairs[i+1].(bsonval.Value))
	}
	return d
}

func docVal(d bsonval.Document) bsonval.Value {
	return bsonval.Value{Kind: bsonval.KindDocument, Doc: d}
}

func arrVal(vs ...bsonval.Value) bsonval.Value {
	return bsonval.Value{Kind: bsonval.KindArray, Arr: vs}
}

var emailIndex = []meta.IndexDef{{Name: "email_1", Field: "email", Unique: true}}

func TestSelectEmptyFilterIsCollectionScan(t *testing.T) {
	p, err := Select("users", bsonval.NewDocument(), emailIndex, 42)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.Type != CollectionScan || p.NeedsPostFilter {
		t.Fatalf("unexpected plan: %+v", p)
	}
}

func TestSelectScalarOnIndexedField(t *testing.T) {
	f := doc("email", str("a@x.com"))
	p, err := Select("users", f, emailIndex, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.Type != IndexScan || p.Field != "email" || p.NeedsPostFilter {
		t.Fatalf("unexpected plan: %+v", p)
	}
}

func TestSelectRangeOperatorsNoPostFilter(t *testing.T) {
	f := doc("email", docVal(doc("$gte", str("a"), "$lt", str("z"))))
	p, err := Select("users", f, emailIndex, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.Type != IndexScan || p.NeedsPostFilter {
		t.Fatalf("unexpected plan: %+v", p)
	}
}

func TestSelectMixedOperatorsForcesPostFilter(t *testing.T) {
	f := doc("email", docVal(doc("$gte", str("a"), "$ne", str("skip@x.com"))))
	p, err := Select("users", f, emailIndex, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.Type != IndexScan || !p.NeedsPostFilter {
		t.Fatalf("unexpected plan: %+v", p)
	}
}

func TestSelectExtraFieldForcesPostFilter(t *testing.T) {
	f := doc("email", str("a@x.com"), "age", i64(30))
	p, err := Select("users", f, emailIndex, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.Type != IndexScan || !p.NeedsPostFilter {
		t.Fatalf("unexpected plan: %+v", p)
	}
}

func TestSelectNonIndexedFieldIsCollectionScan(t *testing.T) {
	f := doc("age", i64(30))
	p, err := Select("users", f, emailIndex, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.Type != CollectionScan || !p.NeedsPostFilter {
		t.Fatalf("unexpected plan: %+v", p)
	}
}

func TestSelectAndRecursesIntoIndexedBranch(t *testing.T) {
	f := doc("$and", arrVal(
		docVal(doc("age", i64(30))),
		docVal(doc("email", str("a@x.com"))),
	))
	p, err := Select("users", f, emailIndex, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.Type != IndexScan || p.Field != "email" || !p.NeedsPostFilter {
		t.Fatalf("unexpected plan: %+v", p)
	}
}

func TestSelectOrForcesPostFilterEvenWhenIndexed(t *testing.T) {
	f := doc("$or", arrVal(
		docVal(doc("email", str("a@x.com"))),
		docVal(doc("age", i64(99))),
	))
	p, err := Select("users", f, emailIndex, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.Type != IndexScan || !p.NeedsPostFilter {
		t.Fatalf("unexpected plan: %+v", p)
	}
}

func TestSelectOrWithNoIndexedBranchIsCollectionScan(t *testing.T) {
	f := doc("$or", arrVal(
		docVal(doc("age", i64(99))),
		docVal(doc("height", i64(180))),
	))
	p, err := Select("users", f, emailIndex, 7)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.Type != CollectionScan || !p.NeedsPostFilter {
		t.Fatalf("unexpected plan: %+v", p)
	}
}
