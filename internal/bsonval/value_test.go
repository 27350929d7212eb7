package bsonval

import "testing"

func TestDocumentRoundTrip(t *testing.T) {
	d := NewDocument()
	d.Set("_id", Value{Kind: KindString, Str: "1"})
	d.Set("name", Value{Kind: KindString, Str: "Alice"})
	d.Set("age", Value{Kind: KindInt64, I64: 30})

	b, err := MarshalDocument(d)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalDocument(b)
	if err != nil {
		t.Fatal(err)
	}

	if got.Len() != d.Len() {
		t.Fatalf("field count = %d, want %d", got.Len(), d.Len())
	}
	for _, f := range d.Fields() {
		want, _ := d.Get(f)
		have, ok := got.Get(f)
		if !ok || !Equal(want, have) {
			t.Errorf("field %q = %+v, want %+v", f, have, want)
		}
	}
}

func TestEqual(t *testing.T) {
	a := Value{Kind: KindInt64, I64: 5}
	b := Value{Kind: KindFloat64, F64: 5}
	if !Equal(a, b) {
		t.Fatal("int64(5) should equal float64(5.0)")
	}
	c := Value{Kind: KindString, Str: "5"}
	if Equal(a, c) {
		t.Fatal("number should not equal string")
	}
}

func TestResolvePath(t *testing.T) {
	inner := NewDocument()
	inner.Set("b", Value{Kind: KindInt64, I64: 7})
	outer := NewDocument()
	outer.Set("a", Value{Kind: KindDocument, Doc: inner})

	v, ok := outer.ResolvePath([]string{"a", "b"})
	if !ok || v.I64 != 7 {
		t.Fatalf("ResolvePath(a.b) = %+v, ok=%v", v, ok)
	}

	_, ok = outer.ResolvePath([]string{"a", "missing"})
	if ok {
		t.Fatal("expected missing path to not resolve")
	}
}
