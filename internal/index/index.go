// Package index implements the secondary index manager (spec §4.2): index
// lifecycle (create with retroactive build, drop), the three write hooks
// (onInsert/onUpdate/onDelete), and unique-constraint enforcement. It owns
// no state of its own — everything lives in the KV substrate.
package index

import (
	"context"

	"github.com/ridgedb/ridgedb/internal/bsonval"
	"github.com/ridgedb/ridgedb/internal/dberr"
	"github.com/ridgedb/ridgedb/internal/keyenc"
	"github.com/ridgedb/ridgedb/internal/kv"
	"github.com/ridgedb/ridgedb/internal/logx"
	"github.com/ridgedb/ridgedb/internal/meta"
)

// ScanChunk is the row count used for every chunked scan in this package
// (spec §4.2: "in chunks of 5000 rows").
const ScanChunk = 5000

// Manager maintains index rows under writes and builds/drops indexes.
type Manager struct {
	kv  kv.Store
	log logx.Logger
}

// New returns an index manager over the given KV substrate.
func New(store kv.Store, log logx.Logger) *Manager {
	if log == nil {
		log = logx.Nop()
	}
	return &Manager{kv: store, log: log}
}

// CreateIndex builds an index on field over every existing document in
// collection, enforcing uniqueness if requested. It does not mutate
// metadata; the caller (document store) appends the returned definition.
// If the field is already indexed, the existing definition is returned
// unchanged (spec §4.2 step 1).
func (m *Manager) CreateIndex(ctx context.Context, collection string, existing []meta.IndexDef, field string, unique bool) (meta.IndexDef, error) {
	if ix, ok := findByField(existing, field); ok {
		return ix, nil
	}

	def := meta.IndexDef{Name: meta.IndexName(field), Field: field, Unique: unique}
	seen := make(map[string]string) // encoded value -> first id seen, only populated when unique

	var lastKey []byte
	prefix := keyenc.DocPrefix(collection)
	for {
		opts := kv.ScanOptions{Prefix: prefix, Limit: ScanChunk}
		if lastKey != nil {
			opts.Prefix = nil
			opts.StartKey = append(append([]byte{}, lastKey...), 0x00)
			opts.EndKey = keyenc.DocPrefixEnd(collection)
		}
		rows, err := m.kv.Scan(ctx, opts)
		if err != nil {
			return meta.IndexDef{}, dberr.Internal(err, "scanning documents to build index")
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			lastKey = row.Key
			doc, err := bsonval.UnmarshalDocument(row.Value)
			if err != nil {
				return meta.IndexDef{}, dberr.Internal(err, "decoding document during index build")
			}
			v, present := doc.Get(field)
			if !present || v.IsNullish() {
				continue
			}
			id, ok := documentID(doc)
			if !ok {
				continue
			}
			if unique {
				enc, err := keyenc.EncodeValue(v)
				if err != nil {
					return meta.IndexDef{}, dberr.BadValue("%v", err)
				}
				if prevID, dup := seen[string(enc)]; dup && prevID != id {
					return meta.IndexDef{}, dberr.DuplicateKeyErr(collection, def.Name, field, bsonval.Stringify(v))
				}
				seen[string(enc)] = id
			}
			ixKey, err := keyenc.IndexKey(collection, field, v, id)
			if err != nil {
				return meta.IndexDef{}, dberr.BadValue("%v", err)
			}
			if err := m.kv.Put(ctx, ixKey, []byte{'1'}); err != nil {
				return meta.IndexDef{}, dberr.Internal(err, "writing index row")
			}
		}
		if len(rows) < ScanChunk {
			break
		}
	}

	return def, nil
}

// DropIndex deletes every row for the index on field in collection.
func (m *Manager) DropIndex(ctx context.Context, collection, field string) error {
	prefix := keyenc.IndexPrefix(collection, field)
	return m.deleteByPrefixChunked(ctx, prefix)
}

// DropAllIndexes deletes every index row for collection, across all fields.
func (m *Manager) DropAllIndexes(ctx context.Context, collection string) error {
	prefix := keyenc.IndexCollectionPrefix(collection)
	return m.deleteByPrefixChunked(ctx, prefix)
}

func (m *Manager) deleteByPrefixChunked(ctx context.Context, prefix []byte) error {
	for {
		rows, err := m.kv.Scan(ctx, kv.ScanOptions{Prefix: prefix, Limit: ScanChunk})
		if err != nil {
			return dberr.Internal(err, "scanning index rows to delete")
		}
		if len(rows) == 0 {
			return nil
		}
		for _, row := range rows {
			if _, err := m.kv.Delete(ctx, row.Key); err != nil {
				return dberr.Internal(err, "deleting index row")
			}
		}
		if len(rows) < ScanChunk {
			return nil
		}
	}
}

// plannedWrite is one index row mutation computed ahead of application so
// onInsert/onUpdate can run their uniqueness checks before writing
// anything (spec §4.2 "two phases, guaranteeing no partial index writes").
type plannedWrite struct {
	put    *kv.Pair
	delete []byte
}

// OnInsert maintains index rows for a newly inserted document.
func (m *Manager) OnInsert(ctx context.Context, collection string, indexes []meta.IndexDef, doc bsonval.Document, id string) error {
	var planned []plannedWrite

	for _, ix := range indexes {
		v, present := doc.Get(ix.Field)
		if !present || v.IsNullish() {
			continue
		}
		if ix.Unique {
			if err := m.checkUnique(ctx, collection, ix, v, "", false); err != nil {
				return err
			}
		}
		key, err := keyenc.IndexKey(collection, ix.Field, v, id)
		if err != nil {
			return dberr.BadValue("%v", err)
		}
		planned = append(planned, plannedWrite{put: &kv.Pair{Key: key, Value: []byte{'1'}}})
	}

	return m.applyPlanned(ctx, planned)
}

// OnUpdate maintains index rows when a document's fields change.
func (m *Manager) OnUpdate(ctx context.Context, collection string, indexes []meta.IndexDef, oldDoc, newDoc bsonval.Document, id string) error {
	var planned []plannedWrite

	for _, ix := range indexes {
		oldVal, oldPresent := oldDoc.Get(ix.Field)
		newVal, newPresent := newDoc.Get(ix.Field)
		oldIndexable := oldPresent && !oldVal.IsNullish()
		newIndexable := newPresent && !newVal.IsNullish()

		if oldIndexable && newIndexable && bsonval.Equal(oldVal, newVal) {
			continue
		}

		if newIndexable && ix.Unique {
			if err := m.checkUnique(ctx, collection, ix, newVal, id, true); err != nil {
				return err
			}
		}

		if oldIndexable {
			oldKey, err := keyenc.IndexKey(collection, ix.Field, oldVal, id)
			if err != nil {
				return dberr.BadValue("%v", err)
			}
			planned = append(planned, plannedWrite{delete: oldKey})
		}
		if newIndexable {
			newKey, err := keyenc.IndexKey(collection, ix.Field, newVal, id)
			if err != nil {
				return dberr.BadValue("%v", err)
			}
			planned = append(planned, plannedWrite{put: &kv.Pair{Key: newKey, Value: []byte{'1'}}})
		}
	}

	return m.applyPlanned(ctx, planned)
}

// OnDelete removes every index row for a deleted document. No uniqueness
// check is needed for deletes.
func (m *Manager) OnDelete(ctx context.Context, collection string, indexes []meta.IndexDef, doc bsonval.Document, id string) error {
	for _, ix := range indexes {
		v, present := doc.Get(ix.Field)
		if !present || v.IsNullish() {
			continue
		}
		key, err := keyenc.IndexKey(collection, ix.Field, v, id)
		if err != nil {
			return dberr.BadValue("%v", err)
		}
		if _, err := m.kv.Delete(ctx, key); err != nil {
			return dberr.Internal(err, "deleting index row")
		}
	}
	return nil
}

// applyPlanned applies deletes then puts (spec §4.2 "Phase 2 applies all
// deletes then all puts"), rolling back already-applied puts if a later
// one fails when the substrate has no atomic batch.
func (m *Manager) applyPlanned(ctx context.Context, planned []plannedWrite) error {
	if atomic, ok := m.kv.(kv.Atomic); ok && atomic.AtomicBatch() {
		var puts []kv.Pair
		var deletes [][]byte
		putKeys := make(map[string]bool)
		for _, p := range planned {
			if p.put != nil {
				puts = append(puts, *p.put)
				putKeys[string(p.put.Key)] = true
			}
		}
		// BatchWrite applies puts before deletes, so a key that is both
		// deleted and re-put is left out of the deletes to keep its put.
		for _, p := range planned {
			if p.delete != nil && !putKeys[string(p.delete)] {
				deletes = append(deletes, p.delete)
			}
		}
		if err := m.kv.BatchWrite(ctx, puts, deletes); err != nil {
			return dberr.Internal(err, "batch-writing index rows")
		}
		return nil
	}

	var applied []kv.Pair
	rollback := func() {
		for _, a := range applied {
			if _, err := m.kv.Delete(ctx, a.Key); err != nil {
				m.log.Warn("rollback failed to remove index row %x: %v", a.Key, err)
			}
		}
	}

	for _, p := range planned {
		if p.delete != nil {
			if _, err := m.kv.Delete(ctx, p.delete); err != nil {
				rollback()
				return dberr.Internal(err, "deleting index row")
			}
		}
	}
	for _, p := range planned {
		if p.put != nil {
			if err := m.kv.Put(ctx, p.put.Key, p.put.Value); err != nil {
				rollback()
				return dberr.Internal(err, "writing index row")
			}
			applied = append(applied, *p.put)
		}
	}
	return nil
}

// checkUnique scans idx:<collection>:<field>:<v><US> with a limit of 2
// (spec §4.2): any row other than excludeID (when excludeSelf is set)
// proves a violation.
func (m *Manager) checkUnique(ctx context.Context, collection string, ix meta.IndexDef, v bsonval.Value, excludeID string, excludeSelf bool) error {
	enc, err := keyenc.EncodeValue(v)
	if err != nil {
		return dberr.BadValue("%v", err)
	}
	prefix := append(append([]byte{}, keyenc.IndexPrefix(collection, ix.Field)...), enc...)
	prefix = append(prefix, keyenc.US)

	rows, err := m.kv.Scan(ctx, kv.ScanOptions{Prefix: prefix, Limit: 2})
	if err != nil {
		return dberr.Internal(err, "checking unique constraint")
	}
	for _, row := range rows {
		_, id, ok := keyenc.DecodeIndexKey(row.Key)
		if !ok {
			continue
		}
		if excludeSelf && id == excludeID {
			continue
		}
		return dberr.DuplicateKeyErr(collection, ix.Name, ix.Field, bsonval.Stringify(v))
	}
	return nil
}

func findByField(indexes []meta.IndexDef, field string) (meta.IndexDef, bool) {
	for _, ix := range indexes {
		if ix.Field == field {
			return ix, true
		}
	}
	return meta.IndexDef{}, false
}

func documentID(doc bsonval.Document) (string, bool) {
	v, ok := doc.Get("_id")
	if !ok || v.Kind != bsonval.KindString {
		return "", false
	}
	return v.Str, true
}
