package query

import (
	"context"
	"testing"

	"github.com/ridgedb/ridgedb/internal/bsonval"
	"github.com/ridgedb/ridgedb/internal/keyenc"
	"github.com/ridgedb/ridgedb/internal/kv"
	"github.com/ridgedb/ridgedb/internal/kv/memstore"
	"github.com/ridgedb/ridgedb/internal/planner"
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

func seedCollectionScan(t *testing.T, store kv.Store, collection string, docs []bsonval.Document) {
	t.Helper()
	ctx := context.Background()
	for _, d := range docs {
		id, _ := d.Get("_id")
		b, err := bsonval.MarshalDocument(d)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if err := store.Put(ctx, keyenc.DocKey(collection, id.Str), b); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
}

func TestExecuteCollectionScanWithPostFilter(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedCollectionScan(t, store, "users", []bsonval.Document{
		doc("_id", str("a"), "age", i64(20)),
		doc("_id", str("b"), "age", i64(30)),
		doc("_id", str("c"), "age", i64(40)),
	})

	plan := planner.Plan{Type: planner.CollectionScan, NeedsPostFilter: true}
	filt := doc("age", i64(30))
	docs, err := Execute(ctx, store, "users", filt, plan, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}
	id, _ := docs[0].Get("_id")
	if id.Str != "b" {
		t.Fatalf("got id %q", id.Str)
	}
}

func TestExecuteIndexScanFetchesDocuments(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	docs := []bsonval.Document{
		doc("_id", str("a"), "email", str("a@x.com")),
		doc("_id", str("b"), "email", str("b@x.com")),
	}
	seedCollectionScan(t, store, "users", docs)
	for _, d := range docs {
		id, _ := d.Get("_id")
		email, _ := d.Get("email")
		key, _ := keyenc.IndexKey("users", "email", email, id.Str)
		if err := store.Put(ctx, key, []byte{'1'}); err != nil {
			t.Fatalf("index put: %v", err)
		}
	}

	rng, err := keyenc.IndexRange("users", "email", map[keyenc.Op]bsonval.Value{keyenc.OpEq: str("b@x.com")})
	if err != nil {
		t.Fatalf("IndexRange: %v", err)
	}
	plan := planner.Plan{Type: planner.IndexScan, Field: "email", Range: rng}
	out, err := Execute(ctx, store, "users", doc("email", str("b@x.com")), plan, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(out))
	}
	id, _ := out[0].Get("_id")
	if id.Str != "b" {
		t.Fatalf("got id %q", id.Str)
	}
}

func TestExecuteSortSkipLimit(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedCollectionScan(t, store, "users", []bsonval.Document{
		doc("_id", str("a"), "age", i64(30)),
		doc("_id", str("b"), "age", i64(10)),
		doc("_id", str("c"), "age", i64(20)),
	})

	plan := planner.Plan{Type: planner.CollectionScan}
	out, err := Execute(ctx, store, "users", bsonval.NewDocument(), plan, Options{
		Sort:  []SortEntry{{Field: "age"}},
		Skip:  1,
		Limit: 1,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(out))
	}
	age, _ := out[0].Get("age")
	if age.I64 != 20 {
		t.Fatalf("expected age 20 (second-smallest), got %d", age.I64)
	}
}

func TestParseProjectionRejectsMixed(t *testing.T) {
	_, err := ParseProjection(doc("a", i64(1), "b", i64(0)))
	if err == nil {
		t.Fatal("expected rejection of mixed projection")
	}
}

func TestParseProjectionAllowsIDExceptionWithInclude(t *testing.T) {
	proj, err := ParseProjection(doc("name", i64(1), "_id", i64(0)))
	if err != nil {
		t.Fatalf("ParseProjection: %v", err)
	}
	d := doc("_id", str("a"), "name", str("Alice"), "age", i64(30))
	out := ApplyProjection(d, proj)
	if _, ok := out.Get("_id"); ok {
		t.Fatal("_id should be dropped")
	}
	if v, ok := out.Get("name"); !ok || v.Str != "Alice" {
		t.Fatal("name should be kept")
	}
	if _, ok := out.Get("age"); ok {
		t.Fatal("age should be excluded in include mode")
	}
}

func TestApplyProjectionExcludeMode(t *testing.T) {
	proj := Projection{Exclude: []string{"age"}}
	d := doc("_id", str("a"), "name", str("Alice"), "age", i64(30))
	out := ApplyProjection(d, proj)
	if _, ok := out.Get("age"); ok {
		t.Fatal("age should be excluded")
	}
	if _, ok := out.Get("name"); !ok {
		t.Fatal("name should remain")
	}
}
