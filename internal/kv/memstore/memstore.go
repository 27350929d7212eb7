// Package memstore implements internal/kv.Store as an ordered in-memory
// map. It is the reference KV substrate: zero configuration, used by
// every unit test in this repository and suitable as the default backend
// for a single-process deployment.
//
// The ordering requirement in spec §6 ("ordered KV substrate") rules out a
// plain Go map, which has no iteration order. Rather than hand-roll a
// balanced tree, this package reaches for github.com/google/btree, the
// same ordered-tree library the dolt storage stack this module also wires
// in (internal/kv/sqlstore) depends on internally — so the in-memory and
// SQL-backed substrates end up resting on siblings from the same corpus.
package memstore

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/ridgedb/ridgedb/internal/kv"
)

type entry struct {
	key   []byte
	value []byte
}

func less(a, b entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Store is a btree-ordered, mutex-guarded in-memory kv.Store.
type Store struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[entry]
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{tree: btree.NewG(32, less)}
}

func (s *Store) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tree.Get(entry{key: key})
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(e.value), true, nil
}

func (s *Store) Put(_ context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.ReplaceOrInsert(entry{key: cloneBytes(key), value: cloneBytes(value)})
	return nil
}

func (s *Store) Delete(_ context.Context, key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.tree.Delete(entry{key: key})
	return existed, nil
}

func (s *Store) Has(_ context.Context, key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tree.Get(entry{key: key})
	return ok, nil
}

func (s *Store) Scan(_ context.Context, opts kv.ScanOptions) ([]kv.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end := opts.StartKey, opts.EndKey
	if opts.Prefix != nil {
		start = opts.Prefix
		end = prefixEnd(opts.Prefix)
	}

	// Collect the [start, end) range in ascending order; reverse afterward
	// if requested. This keeps the traversal logic independent of the
	// generic BTreeG range-iteration API, which the Reverse path would
	// otherwise need to use in a direction-sensitive way.
	var all []kv.Pair
	visit := func(e entry) bool {
		if end != nil && bytes.Compare(e.key, end) >= 0 {
			return false
		}
		all = append(all, kv.Pair{Key: cloneBytes(e.key), Value: cloneBytes(e.value)})
		return true
	}
	if start == nil {
		s.tree.Ascend(func(e entry) bool { return visit(e) })
	} else {
		s.tree.AscendGreaterOrEqual(entry{key: start}, func(e entry) bool { return visit(e) })
	}

	if opts.Reverse {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}
	if opts.Limit > 0 && len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (s *Store) Count(_ context.Context, prefix []byte) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(prefix) == 0 {
		return int64(s.tree.Len()), nil
	}
	end := prefixEnd(prefix)
	var n int64
	s.tree.AscendGreaterOrEqual(entry{key: prefix}, func(e entry) bool {
		if end != nil && bytes.Compare(e.key, end) >= 0 {
			return false
		}
		n++
		return true
	})
	return n, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = btree.NewG(32, less)
	return nil
}

func (s *Store) BatchWrite(_ context.Context, puts []kv.Pair, deletes [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range puts {
		s.tree.ReplaceOrInsert(entry{key: cloneBytes(p.Key), value: cloneBytes(p.Value)})
	}
	for _, d := range deletes {
		s.tree.Delete(entry{key: d})
	}
	return nil
}

// AtomicBatch reports true: BatchWrite holds the store mutex for its whole
// duration, so concurrent readers never observe a partial batch.
func (s *Store) AtomicBatch() bool { return true }

func (s *Store) Close() error { return nil }

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// prefixEnd computes the exclusive upper bound of a prefix scan: the
// prefix with its last non-0xFF byte incremented, dropping any trailing
// 0xFF bytes. A prefix of all 0xFF bytes has no upper bound (nil).
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

var _ kv.Store = (*Store)(nil)
var _ kv.Atomic = (*Store)(nil)
