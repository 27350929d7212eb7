package filter

import (
	"testing"

	"github.com/ridgedb/ridgedb/internal/bsonval"
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

func TestMatchScalarEq(t *testing.T) {
	d := doc("name", str("Alice"), "age", i64(30))
	f := doc("name", str("Alice"))
	ok, err := Match(f, d)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestMatchRangeOperators(t *testing.T) {
	d := doc("age", i64(30))
	f := doc("age", docVal(doc("$gte", i64(25), "$lt", i64(40))))
	ok, err := Match(f, d)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestMatchNeMissingField(t *testing.T) {
	d := doc("name", str("Alice"))
	f := doc("age", docVal(doc("$ne", i64(10))))
	ok, err := Match(f, d)
	if err != nil || !ok {
		t.Fatalf("missing field should satisfy $ne: ok=%v err=%v", ok, err)
	}
}

func TestMatchInNin(t *testing.T) {
	d := doc("status", str("open"))
	fIn := doc("status", docVal(doc("$in", arrVal(str("open"), str("closed")))))
	ok, _ := Match(fIn, d)
	if !ok {
		t.Fatal("$in should match")
	}

	fNin := doc("status", docVal(doc("$nin", arrVal(str("closed")))))
	ok, _ = Match(fNin, d)
	if !ok {
		t.Fatal("$nin should match when value absent from array")
	}

	missing := doc("other", str("x"))
	fNinMissing := doc("status", docVal(doc("$nin", arrVal(str("closed")))))
	ok, _ = Match(fNinMissing, missing)
	if !ok {
		t.Fatal("$nin should match when field is absent")
	}
}

func TestMatchExists(t *testing.T) {
	d := doc("a", i64(1))
	ok, _ := Match(doc("a", docVal(doc("$exists", bsonval.Value{Kind: bsonval.KindBool, Bool: true}))), d)
	if !ok {
		t.Fatal("$exists:true should match present field")
	}
	ok, _ = Match(doc("b", docVal(doc("$exists", bsonval.Value{Kind: bsonval.KindBool, Bool: false}))), d)
	if !ok {
		t.Fatal("$exists:false should match absent field")
	}
}

func TestMatchAndOr(t *testing.T) {
	d := doc("a", i64(1), "b", i64(2))
	and := doc("$and", arrVal(docVal(doc("a", i64(1))), docVal(doc("b", i64(2)))))
	ok, err := Match(and, d)
	if err != nil || !ok {
		t.Fatalf("$and should match: ok=%v err=%v", ok, err)
	}

	or := doc("$or", arrVal(docVal(doc("a", i64(99))), docVal(doc("b", i64(2)))))
	ok, err = Match(or, d)
	if err != nil || !ok {
		t.Fatalf("$or should match: ok=%v err=%v", ok, err)
	}

	emptyOr := doc("$or", arrVal())
	_, err = Match(emptyOr, d)
	if err == nil {
		t.Fatal("empty $or should be rejected")
	}
}

func TestMatchDottedPath(t *testing.T) {
	inner := doc("b", i64(5))
	d := doc("a", docVal(inner))
	ok, err := Match(doc("a.b", i64(5)), d)
	if err != nil || !ok {
		t.Fatalf("dotted path should match: ok=%v err=%v", ok, err)
	}
	ok, _ = Match(doc("a.c", i64(5)), d)
	if ok {
		t.Fatal("missing nested path should not match")
	}
}

func TestMatchInCapRejected(t *testing.T) {
	vals := make([]bsonval.Value, MaxInArrayLen+1)
	for i := range vals {
		vals[i] = i64(int64(i))
	}
	_, err := Match(doc("x", docVal(doc("$in", arrVal(vals...)))), doc("x", i64(0)))
	if err == nil {
		t.Fatal("expected cap rejection")
	}
}
