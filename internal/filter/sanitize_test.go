package filter

import "testing"

func TestSanitizeRejectsDangerousKey(t *testing.T) {
	d := doc("__proto__", i64(1))
	if err := Sanitize(d); err == nil {
		t.Fatal("expected rejection of __proto__")
	}
}

func TestSanitizeRejectsNestedDangerousKey(t *testing.T) {
	nested := doc("constructor", i64(1))
	d := doc("a", docVal(nested))
	if err := Sanitize(d); err == nil {
		t.Fatal("expected rejection of nested constructor key")
	}
}

func TestSanitizeAllowsOrdinaryDocument(t *testing.T) {
	d := doc("name", str("Alice"), "age", i64(30))
	if err := Sanitize(d); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}

func TestSanitizeDepthCap(t *testing.T) {
	d := doc("x", i64(1))
	for i := 0; i < MaxSanitizeDepth+5; i++ {
		d = doc("wrap", docVal(d))
	}
	if err := Sanitize(d); err == nil {
		t.Fatal("expected depth cap rejection")
	}
}
