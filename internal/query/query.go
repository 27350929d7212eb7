// Package query implements the streaming executor of spec §4.3: given a
// planner.Plan, scan the KV substrate in bounded chunks, apply residual
// filtering, then sort/skip/limit/project the result set.
package query

import (
	"context"
	"sort"
	"strings"

	"github.com/ridgedb/ridgedb/internal/bsonval"
	"github.com/ridgedb/ridgedb/internal/dberr"
	"github.com/ridgedb/ridgedb/internal/filter"
	"github.com/ridgedb/ridgedb/internal/keyenc"
	"github.com/ridgedb/ridgedb/internal/kv"
	"github.com/ridgedb/ridgedb/internal/planner"
)

// ChunkSize is the row count scanned per KV round trip (spec §4.3).
const ChunkSize = 5000

// SortEvalCap bounds how many candidates are scanned when a sort is
// requested, before sorting in memory and slicing (spec §4.3).
const SortEvalCap = 50000

// HardLimitCeiling is the maximum limit a find request may ask for
// (spec §4.3); Store.Find clamps a caller's limit to it before calling
// Execute. Execute itself honors the limit it is given, so internal
// callers with larger caps (filtered counts, updateMany) get them.
const HardLimitCeiling = 5000

// DefaultSoftCap bounds result size when no limit and no sort are given
// (spec §4.3).
const DefaultSoftCap = 1000

// SortEntry is one key of a multi-key sort.
type SortEntry struct {
	Field      string
	Descending bool
}

// Options carries the post-scan shaping parameters of a find.
type Options struct {
	Sort       []SortEntry
	Skip       int
	Limit      int // 0 means "unset"; already clamped by the caller if desired
	Projection *Projection
}

// Execute runs plan over store/collection, evaluates the residual filter
// when required, and applies sort/skip/limit/projection in that order.
func Execute(ctx context.Context, store kv.Store, collection string, filt bsonval.Document, plan planner.Plan, opts Options) ([]bsonval.Document, error) {
	maxNeeded := computeMaxNeeded(opts)

	docs, err := scan(ctx, store, collection, filt, plan, maxNeeded)
	if err != nil {
		return nil, err
	}

	if len(opts.Sort) > 0 {
		sortDocuments(docs, opts.Sort)
	}

	docs = applySkipLimit(docs, opts.Skip, opts.Limit)

	if opts.Projection != nil {
		for i, d := range docs {
			docs[i] = ApplyProjection(d, *opts.Projection)
		}
	}

	return docs, nil
}

// computeMaxNeeded implements the executor contract of spec §4.3.
func computeMaxNeeded(opts Options) int {
	if len(opts.Sort) > 0 {
		return SortEvalCap
	}
	if opts.Limit > 0 {
		return opts.Skip + opts.Limit
	}
	return opts.Skip + DefaultSoftCap
}

// scan runs the execution loop common to both scan types: chunked reads,
// id-based document fetch for index scans, residual filtering, and early
// stop once maxNeeded candidates have been collected.
func scan(ctx context.Context, store kv.Store, collection string, filt bsonval.Document, plan planner.Plan, maxNeeded int) ([]bsonval.Document, error) {
	var (
		docs     []bsonval.Document
		lastKey  []byte
		startKey []byte
		endKey   []byte
	)

	switch plan.Type {
	case planner.IndexScan:
		startKey, endKey = plan.Range.Start, plan.Range.End
	default:
		startKey, endKey = keyenc.DocPrefix(collection), keyenc.DocPrefixEnd(collection)
	}

	for {
		opts := kv.ScanOptions{StartKey: startKey, EndKey: endKey, Limit: ChunkSize}
		if lastKey != nil {
			opts.StartKey = append(append([]byte{}, lastKey...), 0x00)
		}

		rows, err := store.Scan(ctx, opts)
		if err != nil {
			return nil, dberr.Internal(err, "scanning query results")
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			lastKey = row.Key

			var raw []byte
			if plan.Type == planner.IndexScan {
				_, id, ok := keyenc.DecodeIndexKey(row.Key)
				if !ok {
					continue
				}
				v, found, err := store.Get(ctx, keyenc.DocKey(collection, id))
				if err != nil {
					return nil, dberr.Internal(err, "fetching document for index row")
				}
				if !found {
					// Index row outlived its document (a concurrent delete
					// raced this scan); skip rather than fail the query.
					continue
				}
				raw = v
			} else {
				raw = row.Value
			}

			doc, err := bsonval.UnmarshalDocument(raw)
			if err != nil {
				return nil, dberr.Internal(err, "decoding document during scan")
			}

			if plan.NeedsPostFilter {
				ok, err := filter.Match(filt, doc)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}

			docs = append(docs, doc)
			if len(docs) >= maxNeeded {
				return docs, nil
			}
		}

		if len(rows) < ChunkSize {
			break
		}
	}

	return docs, nil
}

func applySkipLimit(docs []bsonval.Document, skip, limit int) []bsonval.Document {
	if skip > 0 {
		if skip >= len(docs) {
			return nil
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}

// sortDocuments implements spec §4.3's multi-key stable sort: numeric vs
// numeric by subtraction, otherwise by code-point comparison of
// stringified values; null/absent sorts before any non-null value.
func sortDocuments(docs []bsonval.Document, keys []SortEntry) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			cmp := compareByPath(docs[i], docs[j], k.Field)
			if cmp == 0 {
				continue
			}
			if k.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareByPath(a, b bsonval.Document, path string) int {
	av, aok := a.ResolvePath(strings.Split(path, "."))
	bv, bok := b.ResolvePath(strings.Split(path, "."))
	aNull := !aok || av.IsNullish()
	bNull := !bok || bv.IsNullish()

	switch {
	case aNull && bNull:
		return 0
	case aNull:
		return -1
	case bNull:
		return 1
	}

	an, aNum := bsonval.AsFinite(av)
	bn, bNum := bsonval.AsFinite(bv)
	if aNum && bNum {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(bsonval.Stringify(av), bsonval.Stringify(bv))
}

// Projection selects a pure include or pure exclude field set (spec §4.3).
type Projection struct {
	Include []string
	Exclude []string
}

// ParseProjection builds a Projection from a wire-level spec document,
// rejecting a mix of include (1) and exclude (0) entries. {_id: 0} is
// exempt from the mix check: suppressing _id inside an otherwise
// include-mode projection is the one standard exception.
func ParseProjection(spec bsonval.Document) (Projection, error) {
	var proj Projection
	var sawInclude, sawExclude bool
	dropID := false

	for _, f := range spec.Fields() {
		v, _ := spec.Get(f)
		include := isTruthyInt(v)
		if !include && f == "_id" {
			dropID = true
			continue
		}
		if include {
			sawInclude = true
			proj.Include = append(proj.Include, f)
		} else {
			sawExclude = true
			proj.Exclude = append(proj.Exclude, f)
		}
	}
	if sawInclude && sawExclude {
		return Projection{}, dberr.BadValue("projection cannot mix inclusion and exclusion")
	}
	if dropID {
		proj.Exclude = append(proj.Exclude, "_id")
	}
	return proj, nil
}

func isTruthyInt(v bsonval.Value) bool {
	switch v.Kind {
	case bsonval.KindBool:
		return v.Bool
	case bsonval.KindInt64:
		return v.I64 != 0
	case bsonval.KindFloat64:
		return v.F64 != 0
	default:
		return true
	}
}

// ApplyProjection returns the projected view of doc. Include mode keeps
// only the listed fields plus _id (unless _id is explicitly excluded via
// {_id: 0} inside an include spec); exclude mode drops the listed fields.
func ApplyProjection(doc bsonval.Document, proj Projection) bsonval.Document {
	if len(proj.Include) > 0 {
		out := bsonval.NewDocument()
		dropID := false
		for _, f := range proj.Exclude {
			if f == "_id" {
				dropID = true
			}
		}
		if !dropID {
			if v, ok := doc.Get("_id"); ok {
				out.Set("_id", v.Clone())
			}
		}
		for _, f := range proj.Include {
			if v, ok := doc.Get(f); ok {
				out.Set(f, v.Clone())
			}
		}
		return out
	}
	if len(proj.Exclude) > 0 {
		out := doc.Clone()
		for _, f := range proj.Exclude {
			out.Delete(f)
		}
		return out
	}
	return doc.Clone()
}
