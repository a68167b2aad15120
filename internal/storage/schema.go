package storage

import "fmt"

// migration is one forward-only, idempotent schema step.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
		CREATE TABLE IF NOT EXISTS memories (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			session_id       TEXT NOT NULL,
			content          TEXT NOT NULL,
			importance       REAL NOT NULL DEFAULT 0.5 CHECK (importance >= 0.0 AND importance <= 1.0),
			ttl_hours        INTEGER,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL,
			expires_at       TEXT,
			metadata_json    TEXT,
			tags_json        TEXT,
			access_count     INTEGER NOT NULL DEFAULT 0,
			last_accessed_at TEXT,
			is_compressed    INTEGER NOT NULL DEFAULT 0,
			original_length  INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_memories_user_created_importance ON memories(user_id, created_at DESC, importance DESC);
		CREATE INDEX IF NOT EXISTS idx_memories_user_session ON memories(user_id, session_id);
		CREATE INDEX IF NOT EXISTS idx_memories_expires ON memories(expires_at);

		CREATE TABLE IF NOT EXISTS sessions (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			name             TEXT,
			metadata_json    TEXT,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL,
			last_activity_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

		CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
			content,
			tags,
			content=memories,
			content_rowid=rowid
		);

		CREATE TABLE IF NOT EXISTS decay_runs (
			id                   TEXT PRIMARY KEY,
			started_at           TEXT NOT NULL,
			completed_at         TEXT,
			memories_expired     INTEGER NOT NULL DEFAULT 0,
			memories_evicted     INTEGER NOT NULL DEFAULT 0,
			memories_compressed  INTEGER NOT NULL DEFAULT 0,
			status               TEXT NOT NULL DEFAULT 'running',
			error_message        TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_decay_runs_started ON decay_runs(started_at DESC);

		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		);
		`,
	},
}

// ftsTriggers keeps memories_fts consistent with memories. They are kept
// out of the versioned migrations and, being IF NOT EXISTS-guarded, are
// re-applied after the migrations on every open.
const ftsTriggers = `
CREATE TRIGGER IF NOT EXISTS memories_fts_ai AFTER INSERT ON memories BEGIN
	INSERT INTO memories_fts(rowid, content, tags) VALUES (new.rowid, new.content, new.tags_json);
END;
CREATE TRIGGER IF NOT EXISTS memories_fts_ad AFTER DELETE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, content, tags) VALUES('delete', old.rowid, old.content, old.tags_json);
END;
CREATE TRIGGER IF NOT EXISTS memories_fts_au AFTER UPDATE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, content, tags) VALUES('delete', old.rowid, old.content, old.tags_json);
	INSERT INTO memories_fts(rowid, content, tags) VALUES (new.rowid, new.content, new.tags_json);
END;
`

// migrate applies every migration newer than the current schema version,
// each inside its own transaction on the writer pool, using an idempotent
// CREATE-IF-NOT-EXISTS idiom throughout.
func (s *Storage) migrate() error {
	if _, err := s.writer.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("bootstrap schema_migrations: %w", err)
	}

	var current int
	if err := s.writer.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.writer.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}

	if _, err := s.writer.Exec(ftsTriggers); err != nil {
		return fmt.Errorf("install fts triggers: %w", err)
	}

	return nil
}
