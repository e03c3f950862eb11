// Package cache stores compiled .mpy bytecode in a SQLite database so
// unchanged sources are not recompiled on every run.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/moffa90/go-pybricks/mpy"
)

// Store is a compile cache backed by SQLite.
type Store struct {
	db *sql.DB

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats counts lookups made through Wrap.
type Stats struct {
	Hits   int64
	Misses int64
}

// Open opens (or creates) the cache database at path and runs the schema
// migration. ":memory:" gives a private in-memory cache.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS modules (
			key        TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			bytecode   BLOB NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key returns the cache key for one compilation. compilerID distinguishes
// compilers and flag sets that produce different bytecode.
func Key(compilerID, filename, source string) string {
	h := sha256.New()
	for _, part := range []string{compilerID, filename, source} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached bytecode for key. The bool is false on a miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var bytecode []byte
	err := s.db.QueryRowContext(ctx, "SELECT bytecode FROM modules WHERE key = ?", key).Scan(&bytecode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache: %w", err)
	}
	return bytecode, true, nil
}

// Put stores bytecode under key, replacing any previous entry.
func (s *Store) Put(ctx context.Context, key, filename string, bytecode []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO modules (key, filename, bytecode, created_at) VALUES (?, ?, ?, ?)",
		key, filename, bytecode, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// Len returns the number of cached modules.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM modules").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Prune deletes entries older than maxAge and returns how many were removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, "DELETE FROM modules WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats returns the hit and miss counts of compilers returned by Wrap.
func (s *Store) Stats() Stats {
	return Stats{Hits: s.hits.Load(), Misses: s.misses.Load()}
}

// Wrap returns a compiler that serves results from the cache and stores
// successful compilations of c. Compile failures are never cached, and a
// broken cache falls back to compiling.
//
// Example:
//
//	store, err := cache.Open(cfg.Cache.Path)
//	compiler := store.Wrap(&mpy.ExecCompiler{}, "mpy-cross 1.22")
//	img, err := mpy.Pack(ctx, compiler, sources)
func (s *Store) Wrap(c mpy.Compiler, compilerID string) mpy.Compiler {
	return mpy.CompilerFunc(func(ctx context.Context, filename, source string) ([]byte, error) {
		key := Key(compilerID, filename, source)

		if bytecode, ok, err := s.Get(ctx, key); err == nil && ok {
			s.hits.Add(1)
			return bytecode, nil
		}
		s.misses.Add(1)

		bytecode, err := c.Compile(ctx, filename, source)
		if err != nil {
			return nil, err
		}
		if len(bytecode) > 0 {
			// a failed write only costs a recompile next time
			_ = s.Put(ctx, key, filename, bytecode)
		}
		return bytecode, nil
	})
}
