package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(Config{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDBFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "memex.db")

	s, err := Open(Config{Path: dbPath})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected the database file to be created")
	}
}

func TestSchemaVersionAppliedOnce(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	v, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("expected schema version %d, got %d", len(migrations), v)
	}
}

func TestReopenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memex.db")

	s1, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	s2, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	if _, err := s2.writer.Exec(`INSERT INTO memories (id, user_id, session_id, content, importance, created_at, updated_at) VALUES ('m1','u','s','c',0.5,'2026-01-01T00:00:00Z','2026-01-01T00:00:00Z')`); err != nil {
		t.Fatalf("schema should still be usable after reopen: %v", err)
	}
}

func TestPoolSizesRespected(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Config{Path: filepath.Join(dir, "test.db"), WriterPoolSize: 1, ReaderPoolSize: 4})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	defer s.Close()

	if s.Writer() == nil || s.Reader() == nil {
		t.Fatal("expected both pools to be non-nil")
	}
}

func TestPing(t *testing.T) {
	s := newTestStorage(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestFTSTriggersMaintainIndex(t *testing.T) {
	s := newTestStorage(t)

	if _, err := s.writer.Exec(`INSERT INTO memories (id, user_id, session_id, content, importance, created_at, updated_at) VALUES ('m1','u','s','hello world',0.5,'2026-01-01T00:00:00Z','2026-01-01T00:00:00Z')`); err != nil {
		t.Fatalf("insert memory: %v", err)
	}

	var rowid int
	if err := s.reader.QueryRow(`SELECT rowid FROM memories_fts WHERE memories_fts MATCH 'hello'`).Scan(&rowid); err != nil {
		t.Fatalf("expected the insert trigger to populate memories_fts: %v", err)
	}

	if _, err := s.writer.Exec(`DELETE FROM memories WHERE id = 'm1'`); err != nil {
		t.Fatalf("delete memory: %v", err)
	}

	var n int
	if err := s.reader.QueryRow(`SELECT COUNT(*) FROM memories_fts WHERE memories_fts MATCH 'hello'`).Scan(&n); err != nil {
		t.Fatalf("count fts rows: %v", err)
	}
	if n != 0 {
		t.Errorf("expected the delete trigger to remove the fts row, got %d remaining", n)
	}
}
