package keyenc

import (
	"bytes"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/ridgedb/ridgedb/internal/bsonval"
)

func num(f float64) bsonval.Value { return bsonval.Value{Kind: bsonval.KindFloat64, F64: f} }

func TestEncodeNumberOrderPreserving(t *testing.T) {
	values := []float64{
		math.Inf(-1), -100, -10, -1, -0.5, 0, 0.5, 1, 10, 100, math.Inf(1),
	}
	var encoded [][]byte
	for _, v := range values {
		encoded = append(encoded, encodeNumber(v))
	}
	for i := 1; i < len(encoded); i++ {
		if bytes.Compare(encoded[i-1], encoded[i]) >= 0 {
			t.Fatalf("encode(%v) = %x should sort before encode(%v) = %x", values[i-1], encoded[i-1], values[i], encoded[i])
		}
	}
}

func TestEncodeNumberNegativeZeroMatchesPositiveZero(t *testing.T) {
	if !bytes.Equal(encodeNumber(0), encodeNumber(math.Copysign(0, -1))) {
		t.Fatalf("+0.0 and -0.0 must encode identically")
	}
}

func TestEncodeNumberRandomizedOrdering(t *testing.T) {
	vals := []float64{3.14, -3.14, 1e300, -1e300, 1e-300, -1e-300, 42, -42, 0.0001, -0.0001}
	sorted := append([]float64{}, vals...)
	sort.Float64s(sorted)

	encSorted := make([][]byte, len(sorted))
	for i, v := range sorted {
		encSorted[i] = encodeNumber(v)
	}
	for i := 1; i < len(encSorted); i++ {
		if bytes.Compare(encSorted[i-1], encSorted[i]) >= 0 {
			t.Fatalf("numeric order violated at %v < %v: %x vs %x", sorted[i-1], sorted[i], encSorted[i-1], encSorted[i])
		}
	}
}

func TestEncodeValueCrossTypeOrder(t *testing.T) {
	null, _ := EncodeValue(bsonval.Value{Kind: bsonval.KindNull})
	bf, _ := EncodeValue(bsonval.Value{Kind: bsonval.KindBool, Bool: false})
	bt, _ := EncodeValue(bsonval.Value{Kind: bsonval.KindBool, Bool: true})
	n, _ := EncodeValue(num(5))
	s, _ := EncodeValue(bsonval.Value{Kind: bsonval.KindString, Str: "x"})
	d, _ := EncodeValue(bsonval.Value{Kind: bsonval.KindDate, Time: time.Unix(100, 0).UTC()})

	order := [][]byte{null, bf, bt, n, s, d}
	for i := 1; i < len(order); i++ {
		if bytes.Compare(order[i-1], order[i]) >= 0 {
			t.Fatalf("cross-type order violated between index %d and %d", i-1, i)
		}
	}
}

func TestEncodeValueStringLengthCap(t *testing.T) {
	long := make([]byte, MaxIndexStringLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := EncodeValue(bsonval.Value{Kind: bsonval.KindString, Str: string(long)})
	if err == nil {
		t.Fatal("expected error for over-length string")
	}
}

func TestIndexKeyRoundTrip(t *testing.T) {
	key, err := IndexKey("users", "age", num(42), "abc123")
	if err != nil {
		t.Fatal(err)
	}
	enc, id, ok := DecodeIndexKey(key)
	if !ok {
		t.Fatal("expected decode ok")
	}
	if id != "abc123" {
		t.Fatalf("id = %q", id)
	}
	wantEnc, _ := EncodeValue(num(42))
	if !bytes.Equal(enc, wantEnc) {
		t.Fatalf("encoded value mismatch: got %x want %x", enc, wantEnc)
	}
}

func TestIndexRangeEq(t *testing.T) {
	r, err := IndexRange("users", "age", map[Op]bsonval.Value{OpEq: num(5)})
	if err != nil {
		t.Fatal(err)
	}
	key, _ := IndexKey("users", "age", num(5), "id1")
	if bytes.Compare(key, r.Start) < 0 || bytes.Compare(key, r.End) >= 0 {
		t.Fatalf("key %x not within range [%x, %x)", key, r.Start, r.End)
	}
	otherKey, _ := IndexKey("users", "age", num(6), "id2")
	if bytes.Compare(otherKey, r.Start) >= 0 && bytes.Compare(otherKey, r.End) < 0 {
		t.Fatalf("key for a different value must not fall within the $eq range")
	}
}

func TestIndexRangeGteLt(t *testing.T) {
	r, err := IndexRange("users", "age", map[Op]bsonval.Value{OpGte: num(25), OpLt: num(40)})
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []float64{25, 30, 39.9} {
		key, _ := IndexKey("users", "age", num(v), "x")
		if bytes.Compare(key, r.Start) < 0 || bytes.Compare(key, r.End) >= 0 {
			t.Fatalf("value %v should be within [25,40)", v)
		}
	}
	for _, v := range []float64{24.9, 40, 41} {
		key, _ := IndexKey("users", "age", num(v), "x")
		if bytes.Compare(key, r.Start) >= 0 && bytes.Compare(key, r.End) < 0 {
			t.Fatalf("value %v should fall outside [25,40)", v)
		}
	}
}

func TestValidateCollectionName(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"users", true},
		{"", false},
		{"   ", false},
		{"a:b", false},
		{"a/b", false},
		{"a..b", false},
		{"system.profile", false},
	}
	for _, c := range cases {
		err := ValidateCollectionName(c.name)
		if (err == nil) != c.ok {
			t.Errorf("ValidateCollectionName(%q) err=%v, want ok=%v", c.name, err, c.ok)
		}
	}
}
