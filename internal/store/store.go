// Package store orchestrates CRUD over a collection: input validation and
// sanitization, id allocation, per-collection serialization, collection
// metadata lifecycle, and delegation to the index manager and query
// executor (spec §4.4).
package store

import (
	"context"
	"time"

	"github.com/ridgedb/ridgedb/internal/bsonval"
	"github.com/ridgedb/ridgedb/internal/dberr"
	"github.com/ridgedb/ridgedb/internal/filter"
	"github.com/ridgedb/ridgedb/internal/index"
	"github.com/ridgedb/ridgedb/internal/keyenc"
	"github.com/ridgedb/ridgedb/internal/kv"
	"github.com/ridgedb/ridgedb/internal/logx"
	"github.com/ridgedb/ridgedb/internal/meta"
	"github.com/ridgedb/ridgedb/internal/planner"
	"github.com/ridgedb/ridgedb/internal/query"
)

// InsertChunk is the batch size insert iterates documents in (spec §4.4).
const InsertChunk = 5000

// DeleteManyChunk is the batch size deleteMany loops in (spec §4.4).
const DeleteManyChunk = 5000

// UpdateManyCap bounds how many documents a single updateMany will touch
// (spec §4.4).
const UpdateManyCap = 50000

// CountFilteredCap bounds a filtered CountDocuments execution (spec §4.4).
const CountFilteredCap = 100000

// DefaultMaxDocumentBytes is the default per-document size ceiling (spec §4.4).
const DefaultMaxDocumentBytes = 1 << 20

// Store is the document store orchestrator.
type Store struct {
	kv          kv.Store
	idx         *index.Manager
	log         logx.Logger
	locks       *lockTable
	maxDocBytes int
	clock       func() time.Time
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithMaxDocumentBytes overrides the default 1 MiB document size ceiling.
func WithMaxDocumentBytes(n int) Option {
	return func(s *Store) { s.maxDocBytes = n }
}

// WithClock overrides the store's time source, used by tests that need a
// deterministic id timestamp component.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// New returns a Store over the given KV substrate, building its own index
// manager.
func New(store kv.Store, log logx.Logger, opts ...Option) *Store {
	if log == nil {
		log = logx.Nop()
	}
	s := &Store{
		kv:          store,
		idx:         index.New(store, log),
		log:         log,
		locks:       newLockTable(),
		maxDocBytes: DefaultMaxDocumentBytes,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InsertResult reports the outcome of an Insert call.
type InsertResult struct {
	Acknowledged  bool
	InsertedIDs   []string
	InsertedCount int64
}

// Insert validates, sanitizes, and writes documents in chunks of
// InsertChunk, maintaining indexes and documentCount as it goes.
func (s *Store) Insert(ctx context.Context, collection string, docs []bsonval.Document) (InsertResult, error) {
	if err := validateName(collection); err != nil {
		return InsertResult{}, err
	}
	sanitized := make([]bsonval.Document, len(docs))
	for i, d := range docs {
		if err := filter.Sanitize(d); err != nil {
			return InsertResult{}, err
		}
		sanitized[i] = d.Clone()
	}

	release := s.locks.Lock(collection)
	defer release()

	now := s.clock()
	cm, err := s.getOrCreateMeta(ctx, collection, now)
	if err != nil {
		return InsertResult{}, err
	}

	result, err := s.insertLocked(ctx, collection, sanitized, cm, now)
	if err != nil {
		return result, err
	}
	if err := s.saveMeta(ctx, cm); err != nil {
		return result, err
	}
	return result, nil
}

// insertLocked performs the chunked insert loop against an already-loaded,
// already-locked metadata record. It updates cm.DocumentCount in place but
// leaves persisting it to the caller, so the upsert path in update() can
// fold the save into its own metadata write.
func (s *Store) insertLocked(ctx context.Context, collection string, sanitized []bsonval.Document, cm *meta.Collection, now time.Time) (InsertResult, error) {
	result := InsertResult{Acknowledged: true}

	for start := 0; start < len(sanitized); start += InsertChunk {
		end := start + InsertChunk
		if end > len(sanitized) {
			end = len(sanitized)
		}

		var chunkInserted int64
		for _, d := range sanitized[start:end] {
			id, err := documentIDFor(d, now)
			if err != nil {
				cm.DocumentCount += chunkInserted
				s.saveMeta(ctx, cm)
				return result, dberr.Internal(err, "allocating document id")
			}
			d.Set("_id", bsonval.Value{Kind: bsonval.KindString, Str: id})

			size, err := bsonval.EncodedSize(d)
			if err != nil {
				cm.DocumentCount += chunkInserted
				s.saveMeta(ctx, cm)
				return result, dberr.Internal(err, "encoding document")
			}
			if size > s.maxDocBytes {
				cm.DocumentCount += chunkInserted
				s.saveMeta(ctx, cm)
				return result, dberr.DocumentTooLargeErr(size, s.maxDocBytes)
			}

			if err := s.idx.OnInsert(ctx, collection, cm.Indexes, d, id); err != nil {
				cm.DocumentCount += chunkInserted
				s.saveMeta(ctx, cm)
				return result, err
			}

			b, err := bsonval.MarshalDocument(d)
			if err != nil {
				cm.DocumentCount += chunkInserted
				s.saveMeta(ctx, cm)
				return result, dberr.Internal(err, "marshaling document")
			}
			if err := s.kv.Put(ctx, keyenc.DocKey(collection, id), b); err != nil {
				cm.DocumentCount += chunkInserted
				s.saveMeta(ctx, cm)
				return result, dberr.Internal(err, "writing document")
			}

			result.InsertedIDs = append(result.InsertedIDs, id)
			result.InsertedCount++
			chunkInserted++
		}
		cm.DocumentCount += chunkInserted
	}

	return result, nil
}

// FindOptions carries the parameters of a find (spec §4.4).
type FindOptions struct {
	Projection *bsonval.Document
	Sort       []query.SortEntry
	Limit      int
	Skip       int
}

// Find validates and sanitizes filt, plans, executes, and applies
// sort/skip/limit/projection.
func (s *Store) Find(ctx context.Context, collection string, filt bsonval.Document, opts FindOptions) ([]bsonval.Document, error) {
	if err := validateName(collection); err != nil {
		return nil, err
	}
	if err := filter.Sanitize(filt); err != nil {
		return nil, err
	}

	cm, ok, err := s.loadMeta(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	effectiveLimit := opts.Limit
	if effectiveLimit <= 0 {
		effectiveLimit = query.DefaultSoftCap
	}
	if effectiveLimit > query.HardLimitCeiling {
		effectiveLimit = query.HardLimitCeiling
	}

	plan, err := planner.Select(collection, filt, cm.Indexes, cm.DocumentCount)
	if err != nil {
		return nil, err
	}

	var proj *query.Projection
	if opts.Projection != nil {
		p, err := query.ParseProjection(*opts.Projection)
		if err != nil {
			return nil, err
		}
		proj = &p
	}

	return query.Execute(ctx, s.kv, collection, filt, plan, query.Options{
		Sort:       opts.Sort,
		Skip:       opts.Skip,
		Limit:      effectiveLimit,
		Projection: proj,
	})
}

// FindOne returns the first matching document, if any.
func (s *Store) FindOne(ctx context.Context, collection string, filt bsonval.Document, opts FindOptions) (bsonval.Document, bool, error) {
	opts.Limit = 1
	docs, err := s.Find(ctx, collection, filt, opts)
	if err != nil || len(docs) == 0 {
		return bsonval.Document{}, false, err
	}
	return docs[0], true, nil
}

// CountDocuments returns metadata.documentCount for an empty filter
// (eventual, O(1)), or executes the filter with a 100 000 cap otherwise
// (spec §4.4).
func (s *Store) CountDocuments(ctx context.Context, collection string, filt bsonval.Document) (int64, error) {
	if err := validateName(collection); err != nil {
		return 0, err
	}
	cm, ok, err := s.loadMeta(ctx, collection)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	if filt.Len() == 0 {
		return cm.DocumentCount, nil
	}
	if err := filter.Sanitize(filt); err != nil {
		return 0, err
	}
	plan, err := planner.Select(collection, filt, cm.Indexes, cm.DocumentCount)
	if err != nil {
		return 0, err
	}
	docs, err := query.Execute(ctx, s.kv, collection, filt, plan, query.Options{Limit: CountFilteredCap})
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// UpdateResult reports the outcome of an update.
type UpdateResult struct {
	Acknowledged  bool
	MatchedCount  int64
	ModifiedCount int64
	UpsertedID    string
}

// UpdateOne updates at most one matching document.
func (s *Store) UpdateOne(ctx context.Context, collection string, filt, update bsonval.Document, upsert bool) (UpdateResult, error) {
	return s.update(ctx, collection, filt, update, upsert, 1)
}

// UpdateMany updates up to UpdateManyCap matching documents.
func (s *Store) UpdateMany(ctx context.Context, collection string, filt, update bsonval.Document, upsert bool) (UpdateResult, error) {
	return s.update(ctx, collection, filt, update, upsert, UpdateManyCap)
}

func (s *Store) update(ctx context.Context, collection string, filt, update bsonval.Document, upsert bool, limit int) (UpdateResult, error) {
	if err := validateName(collection); err != nil {
		return UpdateResult{}, err
	}
	if err := filter.Sanitize(filt); err != nil {
		return UpdateResult{}, err
	}
	if err := filter.Sanitize(update); err != nil {
		return UpdateResult{}, err
	}

	release := s.locks.Lock(collection)
	defer release()

	now := s.clock()
	cm, ok, err := s.loadMeta(ctx, collection)
	if err != nil {
		return UpdateResult{}, err
	}
	if !ok {
		if !upsert {
			return UpdateResult{Acknowledged: true}, nil
		}
		cm = meta.NewCollection(collection, now)
	}

	plan, err := planner.Select(collection, filt, cm.Indexes, cm.DocumentCount)
	if err != nil {
		return UpdateResult{}, err
	}
	matches, err := query.Execute(ctx, s.kv, collection, filt, plan, query.Options{Limit: limit})
	if err != nil {
		return UpdateResult{}, err
	}

	result := UpdateResult{Acknowledged: true, MatchedCount: int64(len(matches))}

	for _, oldDoc := range matches {
		idVal, _ := oldDoc.Get("_id")
		newDoc, changed, err := filter.ApplyUpdate(oldDoc, update)
		if err != nil {
			s.saveMeta(ctx, cm)
			return result, err
		}
		if !changed {
			continue
		}
		if err := s.idx.OnUpdate(ctx, collection, cm.Indexes, oldDoc, newDoc, idVal.Str); err != nil {
			s.saveMeta(ctx, cm)
			return result, err
		}
		b, err := bsonval.MarshalDocument(newDoc)
		if err != nil {
			s.saveMeta(ctx, cm)
			return result, dberr.Internal(err, "marshaling updated document")
		}
		if err := s.kv.Put(ctx, keyenc.DocKey(collection, idVal.Str), b); err != nil {
			s.saveMeta(ctx, cm)
			return result, dberr.Internal(err, "writing updated document")
		}
		result.ModifiedCount++
	}

	if result.MatchedCount == 0 && upsert {
		base := filter.BaseDocumentFromFilter(filt)
		seed, err := filter.MergeUpsertUpdate(base, update)
		if err != nil {
			s.saveMeta(ctx, cm)
			return result, err
		}
		// Reuse the insert path's chunk loop directly (insertLocked), not
		// the public Insert: the collection lock this method already holds
		// is not reentrant.
		ins, err := s.insertLocked(ctx, collection, []bsonval.Document{seed}, cm, now)
		if err != nil {
			s.saveMeta(ctx, cm)
			return result, err
		}
		if len(ins.InsertedIDs) > 0 {
			result.UpsertedID = ins.InsertedIDs[0]
		}
		if err := s.saveMeta(ctx, cm); err != nil {
			return result, err
		}
		return result, nil
	}

	if err := s.saveMeta(ctx, cm); err != nil {
		return result, err
	}
	return result, nil
}

// DeleteResult reports the outcome of a delete.
type DeleteResult struct {
	Acknowledged bool
	DeletedCount int64
}

// DeleteOne deletes at most one matching document.
func (s *Store) DeleteOne(ctx context.Context, collection string, filt bsonval.Document) (DeleteResult, error) {
	if err := validateName(collection); err != nil {
		return DeleteResult{}, err
	}
	if err := filter.Sanitize(filt); err != nil {
		return DeleteResult{}, err
	}

	release := s.locks.Lock(collection)
	defer release()

	cm, ok, err := s.loadMeta(ctx, collection)
	if err != nil {
		return DeleteResult{}, err
	}
	if !ok {
		return DeleteResult{Acknowledged: true}, nil
	}

	plan, err := planner.Select(collection, filt, cm.Indexes, cm.DocumentCount)
	if err != nil {
		return DeleteResult{}, err
	}
	matches, err := query.Execute(ctx, s.kv, collection, filt, plan, query.Options{Limit: 1})
	if err != nil {
		return DeleteResult{}, err
	}
	if len(matches) == 0 {
		return DeleteResult{Acknowledged: true}, nil
	}

	doc := matches[0]
	idVal, _ := doc.Get("_id")
	if err := s.idx.OnDelete(ctx, collection, cm.Indexes, doc, idVal.Str); err != nil {
		return DeleteResult{}, err
	}
	if _, err := s.kv.Delete(ctx, keyenc.DocKey(collection, idVal.Str)); err != nil {
		return DeleteResult{}, dberr.Internal(err, "deleting document")
	}
	cm.DocumentCount--
	if err := s.saveMeta(ctx, cm); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
}

// DeleteMany deletes every matching document, in chunks of DeleteManyChunk.
func (s *Store) DeleteMany(ctx context.Context, collection string, filt bsonval.Document) (DeleteResult, error) {
	if err := validateName(collection); err != nil {
		return DeleteResult{}, err
	}
	if err := filter.Sanitize(filt); err != nil {
		return DeleteResult{}, err
	}

	release := s.locks.Lock(collection)
	defer release()

	cm, ok, err := s.loadMeta(ctx, collection)
	if err != nil {
		return DeleteResult{}, err
	}
	if !ok {
		return DeleteResult{Acknowledged: true}, nil
	}

	var total int64
	for {
		plan, err := planner.Select(collection, filt, cm.Indexes, cm.DocumentCount)
		if err != nil {
			cm.DocumentCount -= total
			s.saveMeta(ctx, cm)
			return DeleteResult{}, err
		}
		matches, err := query.Execute(ctx, s.kv, collection, filt, plan, query.Options{Limit: DeleteManyChunk})
		if err != nil {
			cm.DocumentCount -= total
			s.saveMeta(ctx, cm)
			return DeleteResult{}, err
		}
		for _, doc := range matches {
			idVal, _ := doc.Get("_id")
			if err := s.idx.OnDelete(ctx, collection, cm.Indexes, doc, idVal.Str); err != nil {
				cm.DocumentCount -= total
				s.saveMeta(ctx, cm)
				return DeleteResult{DeletedCount: total, Acknowledged: true}, err
			}
			if _, err := s.kv.Delete(ctx, keyenc.DocKey(collection, idVal.Str)); err != nil {
				cm.DocumentCount -= total
				s.saveMeta(ctx, cm)
				return DeleteResult{DeletedCount: total, Acknowledged: true}, dberr.Internal(err, "deleting document")
			}
			total++
		}
		if len(matches) < DeleteManyChunk {
			break
		}
	}

	cm.DocumentCount -= total
	if cm.DocumentCount < 0 {
		cm.DocumentCount = 0
	}
	if err := s.saveMeta(ctx, cm); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{Acknowledged: true, DeletedCount: total}, nil
}

// CreateIndex builds (or returns the existing) index on field.
func (s *Store) CreateIndex(ctx context.Context, collection, field string, unique bool) (meta.IndexDef, error) {
	if err := validateName(collection); err != nil {
		return meta.IndexDef{}, err
	}
	if err := keyenc.ValidateFieldName(field); err != nil {
		return meta.IndexDef{}, dberr.BadValue("%v", err)
	}

	release := s.locks.Lock(collection)
	defer release()

	now := s.clock()
	cm, err := s.getOrCreateMeta(ctx, collection, now)
	if err != nil {
		return meta.IndexDef{}, err
	}
	if ix, ok := cm.FindIndexByField(field); ok {
		return ix, nil
	}

	def, err := s.idx.CreateIndex(ctx, collection, cm.Indexes, field, unique)
	if err != nil {
		return meta.IndexDef{}, err
	}
	cm.AddIndex(def)
	if err := s.saveMeta(ctx, cm); err != nil {
		return meta.IndexDef{}, err
	}
	return def, nil
}

// DropIndex removes a user-created index. Dropping _id_ is rejected.
func (s *Store) DropIndex(ctx context.Context, collection, name string) error {
	if err := validateName(collection); err != nil {
		return err
	}
	if name == meta.IDIndexName {
		return dberr.InvalidLengthErr("the _id_ index cannot be dropped")
	}

	release := s.locks.Lock(collection)
	defer release()

	cm, ok, err := s.loadMeta(ctx, collection)
	if err != nil {
		return err
	}
	if !ok {
		return dberr.NamespaceNotFoundErr(collection)
	}
	ix, ok := cm.FindIndexByName(name)
	if !ok {
		return dberr.IndexNotFoundErr(collection, name)
	}
	if err := s.idx.DropIndex(ctx, collection, ix.Field); err != nil {
		return err
	}
	cm.RemoveIndex(name)
	return s.saveMeta(ctx, cm)
}

// ListIndexes returns every index defined on collection.
func (s *Store) ListIndexes(ctx context.Context, collection string) ([]meta.IndexDef, error) {
	cm, ok, err := s.loadMeta(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dberr.NamespaceNotFoundErr(collection)
	}
	return cm.Indexes, nil
}

// GetStats returns the collection's metadata snapshot.
func (s *Store) GetStats(ctx context.Context, collection string) (*meta.Collection, error) {
	cm, ok, err := s.loadMeta(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dberr.NamespaceNotFoundErr(collection)
	}
	return cm, nil
}

// DropCollection deletes every document and index row for collection, then
// its metadata.
func (s *Store) DropCollection(ctx context.Context, collection string) error {
	if err := validateName(collection); err != nil {
		return err
	}

	release := s.locks.Lock(collection)
	defer release()

	if _, ok, err := s.loadMeta(ctx, collection); err != nil {
		return err
	} else if !ok {
		return nil
	}

	prefix := keyenc.DocPrefix(collection)
	for {
		rows, err := s.kv.Scan(ctx, kv.ScanOptions{Prefix: prefix, Limit: InsertChunk})
		if err != nil {
			return dberr.Internal(err, "scanning documents to drop")
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			if _, err := s.kv.Delete(ctx, row.Key); err != nil {
				return dberr.Internal(err, "deleting document during drop")
			}
		}
		if len(rows) < InsertChunk {
			break
		}
	}

	if err := s.idx.DropAllIndexes(ctx, collection); err != nil {
		return err
	}

	if _, err := s.kv.Delete(ctx, keyenc.MetaKey(collection)); err != nil {
		return dberr.Internal(err, "deleting collection metadata")
	}
	return nil
}

// ListCollections returns every collection with a metadata row.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	prefix := []byte("meta:collection:")
	rows, err := s.kv.Scan(ctx, kv.ScanOptions{Prefix: prefix})
	if err != nil {
		return nil, dberr.Internal(err, "scanning collection metadata")
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		cm, err := meta.Unmarshal(row.Value)
		if err != nil {
			return nil, dberr.Internal(err, "decoding collection metadata")
		}
		names = append(names, cm.Name)
	}
	return names, nil
}

func (s *Store) loadMeta(ctx context.Context, collection string) (*meta.Collection, bool, error) {
	b, found, err := s.kv.Get(ctx, keyenc.MetaKey(collection))
	if err != nil {
		return nil, false, dberr.Internal(err, "loading collection metadata")
	}
	if !found {
		return nil, false, nil
	}
	cm, err := meta.Unmarshal(b)
	if err != nil {
		return nil, false, dberr.Internal(err, "decoding collection metadata")
	}
	return cm, true, nil
}

func (s *Store) getOrCreateMeta(ctx context.Context, collection string, now time.Time) (*meta.Collection, error) {
	cm, ok, err := s.loadMeta(ctx, collection)
	if err != nil {
		return nil, err
	}
	if ok {
		return cm, nil
	}
	return meta.NewCollection(collection, now), nil
}

func (s *Store) saveMeta(ctx context.Context, cm *meta.Collection) error {
	b, err := meta.Marshal(cm)
	if err != nil {
		return dberr.Internal(err, "encoding collection metadata")
	}
	if err := s.kv.Put(ctx, keyenc.MetaKey(cm.Name), b); err != nil {
		return dberr.Internal(err, "writing collection metadata")
	}
	return nil
}

func validateName(collection string) error {
	if err := keyenc.ValidateCollectionName(collection); err != nil {
		return dberr.NamespaceInvalid(collection, err.Error())
	}
	return nil
}

// documentIDFor returns doc's existing _id if present, otherwise a freshly
// allocated one (spec §3).
func documentIDFor(doc bsonval.Document, now time.Time) (string, error) {
	if v, ok := doc.Get("_id"); ok {
		if v.Kind == bsonval.KindString && v.Str != "" {
			return v.Str, nil
		}
	}
	return allocateID(now)
}
