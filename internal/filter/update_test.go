package filter

import "testing"

func TestApplyUpdateSet(t *testing.T) {
	d := doc("name", str("Alice"))
	upd := doc("$set", docVal(doc("age", i64(31))))
	out, changed, err := ApplyUpdate(d, upd)
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	v, ok := out.Get("age")
	if !ok || v.I64 != 31 {
		t.Fatalf("age = %+v", v)
	}
}

func TestApplyUpdateIncMissingField(t *testing.T) {
	d := doc("name", str("Alice"))
	upd := doc("$inc", docVal(doc("x", i64(1))))
	out, changed, err := ApplyUpdate(d, upd)
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	v, ok := out.Get("x")
	if !ok || v.F64 != 1 {
		t.Fatalf("x = %+v, want 1", v)
	}
}

func TestApplyUpdateUnset(t *testing.T) {
	d := doc("a", i64(1), "b", i64(2))
	upd := doc("$unset", docVal(doc("a", i64(1))))
	out, changed, err := ApplyUpdate(d, upd)
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if _, ok := out.Get("a"); ok {
		t.Fatal("a should be removed")
	}
	if _, ok := out.Get("b"); !ok {
		t.Fatal("b should remain")
	}
}

func TestBaseDocumentFromFilter(t *testing.T) {
	f := doc("name", str("X"), "age", docVal(doc("$gte", i64(10))))
	base := BaseDocumentFromFilter(f)
	if _, ok := base.Get("age"); ok {
		t.Fatal("operator-valued field should be stripped")
	}
	v, ok := base.Get("name")
	if !ok || v.Str != "X" {
		t.Fatalf("name = %+v", v)
	}
}
