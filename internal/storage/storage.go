// Package storage opens and configures the embedded SQLite database that
// backs the engine: pragmas, schema migrations, and the writer/reader
// connection pool split.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/memex/internal/memexerr"
)

// Config configures how the database file is opened.
type Config struct {
	Path           string
	WriterPoolSize int // 1 or 2; defaults to 1
	ReaderPoolSize int // defaults to 8
	CacheSizeMiB   int // defaults to 256
	BusyTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.WriterPoolSize <= 0 {
		c.WriterPoolSize = 1
	}
	if c.WriterPoolSize > 2 {
		c.WriterPoolSize = 2
	}
	if c.ReaderPoolSize <= 0 {
		c.ReaderPoolSize = 8
	}
	if c.CacheSizeMiB <= 0 {
		c.CacheSizeMiB = 256
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 30 * time.Second
	}
	return c
}

// Storage owns the two connection pools — a single (or dual) writer and a
// multi-reader pool — both pointed at the same database file.
type Storage struct {
	writer *sql.DB
	reader *sql.DB
	path   string
}

// Open creates the database directory if needed, opens the writer and
// reader pools, applies pragmas, and runs schema migrations.
func Open(cfg Config) (*Storage, error) {
	cfg = cfg.withDefaults()

	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, memexerr.Wrap(memexerr.IO, "create db dir", err)
		}
	}

	busyMs := cfg.BusyTimeout.Milliseconds()
	cacheKiB := -cfg.CacheSizeMiB * 1024 // negative cache_size means KiB

	dsn := fmt.Sprintf(
		"%s?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=synchronous(normal)&_pragma=busy_timeout(%d)&_pragma=cache_size(%d)&_pragma=temp_store(memory)",
		cfg.Path, busyMs, cacheKiB,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "open writer pool", err)
	}
	writer.SetMaxOpenConns(cfg.WriterPoolSize)
	writer.SetMaxIdleConns(cfg.WriterPoolSize)

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		writer.Close()
		return nil, memexerr.Wrap(memexerr.IO, "open reader pool", err)
	}
	reader.SetMaxOpenConns(cfg.ReaderPoolSize)
	reader.SetMaxIdleConns(cfg.ReaderPoolSize)

	s := &Storage{writer: writer, reader: reader, path: cfg.Path}

	if err := s.migrate(); err != nil {
		writer.Close()
		reader.Close()
		return nil, memexerr.Wrap(memexerr.IO, "migrate", err)
	}

	return s, nil
}

// Writer returns the single-writer connection pool. All mutating queries go
// through this handle so writes are totally ordered.
func (s *Storage) Writer() *sql.DB { return s.writer }

// Reader returns the multi-reader connection pool for SELECT-only queries.
func (s *Storage) Reader() *sql.DB { return s.reader }

// Path returns the database file path this Storage was opened against.
func (s *Storage) Path() string { return s.path }

// Close closes both pools.
func (s *Storage) Close() error {
	werr := s.writer.Close()
	rerr := s.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Ping health-checks both pools, used before handing a handle out as valid.
func (s *Storage) Ping(ctx context.Context) error {
	if err := s.writer.PingContext(ctx); err != nil {
		return memexerr.Wrap(memexerr.Busy, "writer pool unavailable", err)
	}
	if err := s.reader.PingContext(ctx); err != nil {
		return memexerr.Wrap(memexerr.Busy, "reader pool unavailable", err)
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Storage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.reader.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, memexerr.Wrap(memexerr.IO, "read schema version", err)
	}
	return version, nil
}
