// Package sqlstore implements internal/kv.Store over database/sql against
// a single two-column table (k BLOB PRIMARY KEY, v BLOB). It is grounded
// directly on the teacher's internal/storage/convex/sqlite.go: open a
// driver, create the table if the database is fresh, and guard every
// operation with a RWMutex because SQLite only tolerates one writer.
//
// Two constructors register the two SQL drivers this module carries:
// NewSQLite opens an embedded, file-backed database via
// github.com/ncruces/go-sqlite3 (the teacher's own driver); NewDolt opens
// a network-attached dolt sql-server via github.com/dolthub/driver, whose
// wire transport is github.com/go-sql-driver/mysql. Both give the core's
// atomic-batch path (spec §4.2, §9 Batching) a real transaction to run
// against instead of only the best-effort ordered-write fallback.
//
// NewSQLite additionally takes an advisory golang.org/x/sys/unix flock on
// a sidecar "<path>.lock" file next to the database so two ridgedb
// processes never open the same SQLite
// file concurrently (SetMaxOpenConns(1) alone only protects against
// concurrent connections within this process). NewDolt retries its
// initial connection with github.com/cenkalti/backoff/v4's exponential
// backoff, grounded on the SCIM example's own backoff.Retry-wrapped DB
// connect, since a freshly-started dolt sql-server is a real "not
// listening yet" transient failure a single ping would not tolerate.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/dolthub/driver"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"golang.org/x/sys/unix"

	"github.com/ridgedb/ridgedb/internal/kv"
)

const createTable = `CREATE TABLE IF NOT EXISTS ridgedb_kv (k BLOB PRIMARY KEY, v BLOB NOT NULL)`

// Store is a database/sql-backed kv.Store.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	driv     string
	lockFile *os.File // non-nil only for file-backed (sqlite) stores
}

// NewSQLite opens (creating if absent) an embedded SQLite database at path.
func NewSQLite(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite directory: %w", err)
		}
	}

	lockFile, err := flockPath(path + ".lock")
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	st, err := open(ctx, db, "sqlite3")
	if err != nil {
		lockFile.Close()
		return nil, err
	}
	st.lockFile = lockFile
	return st, nil
}

// flockPath takes a non-blocking exclusive advisory lock on a sidecar
// file next to the database, returning an error if another process
// already holds it.
func flockPath(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("database already in use by another process: %w", err)
	}
	return f, nil
}

// NewDolt opens a connection to a running `dolt sql-server` over its
// MySQL-wire endpoint, e.g. dsn "root@tcp(127.0.0.1:3306)/ridgedb".
func NewDolt(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("dolt", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening dolt database: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	pingErr := backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(bo, ctx))
	if pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to dolt: %w", pingErr)
	}

	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kv table: %w", err)
	}
	return &Store{db: db, driv: "dolt"}, nil
}

func open(ctx context.Context, db *sql.DB, driv string) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", driv, err)
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kv table: %w", err)
	}
	return &Store{db: db, driv: driv}, nil
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT v FROM ridgedb_kv WHERE k = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get: %w", err)
	}
	return v, true, nil
}

func (s *Store) Put(ctx context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `REPLACE INTO ridgedb_kv (k, v) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM ridgedb_kv WHERE k = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) Has(ctx context.Context, key []byte) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *Store) Scan(ctx context.Context, opts kv.ScanOptions) ([]kv.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end := opts.StartKey, opts.EndKey
	if opts.Prefix != nil {
		start = opts.Prefix
		end = prefixEnd(opts.Prefix)
	}

	order := "ASC"
	if opts.Reverse {
		order = "DESC"
	}
	query := fmt.Sprintf(`SELECT k, v FROM ridgedb_kv WHERE (? IS NULL OR k >= ?) AND (? IS NULL OR k < ?) ORDER BY k %s`, order)
	args := []any{byteArg(start), byteArg(start), byteArg(end), byteArg(end)}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	defer rows.Close()

	var out []kv.Pair
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, kv.Pair{Key: k, Value: v})
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context, prefix []byte) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(prefix) == 0 {
		var n int64
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ridgedb_kv`).Scan(&n)
		return n, err
	}
	end := prefixEnd(prefix)
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ridgedb_kv WHERE k >= ? AND (? IS NULL OR k < ?)`, prefix, byteArg(end), byteArg(end)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM ridgedb_kv`)
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// BatchWrite applies all puts and deletes inside one SQL transaction, the
// atomic path spec §9 asks substrates that support it to offer.
func (s *Store) BatchWrite(ctx context.Context, puts []kv.Pair, deletes [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	for _, p := range puts {
		if _, err := tx.ExecContext(ctx, `REPLACE INTO ridgedb_kv (k, v) VALUES (?, ?)`, p.Key, p.Value); err != nil {
			return fmt.Errorf("batch put: %w", err)
		}
	}
	for _, d := range deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ridgedb_kv WHERE k = ?`, d); err != nil {
			return fmt.Errorf("batch delete: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// AtomicBatch reports true: BatchWrite always runs inside a transaction.
func (s *Store) AtomicBatch() bool { return true }

func (s *Store) Close() error {
	err := s.db.Close()
	if s.lockFile != nil {
		_ = unix.Flock(int(s.lockFile.Fd()), unix.LOCK_UN)
		s.lockFile.Close()
	}
	return err
}

// byteArg turns a nil []byte into an untyped nil so the driver binds SQL
// NULL instead of an empty blob; database/sql does not do this conversion
// for []byte itself the way it does for typed nil pointers.
func byteArg(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}

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
