package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rcliao/memex/internal/memexerr"
	"github.com/rcliao/memex/internal/model"
)

// SessionRepo is the repository for the sessions table.
type SessionRepo struct{}

func NewSessionRepo() *SessionRepo { return &SessionRepo{} }

const sessionColumns = `id, user_id, name, metadata_json, created_at, updated_at, last_activity_at`

// Create inserts a new session row.
func (r *SessionRepo) Create(ctx context.Context, db execer, s *model.Session) error {
	metaJSON, err := marshalMetadata(s.Metadata)
	if err != nil {
		return memexerr.Wrap(memexerr.Invalid, "encode session metadata", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, name, metadata_json, created_at, updated_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, nullIfEmpty(s.Name), metaJSON,
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt), formatTime(s.LastActivityAt),
	)
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "insert session", err)
	}
	return nil
}

// Exists reports whether a session id is already present.
func (r *SessionRepo) Exists(ctx context.Context, db execer, id string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, memexerr.Wrap(memexerr.IO, "check session exists", err)
	}
	return n > 0, nil
}

// Get fetches a session by id.
func (r *SessionRepo) Get(ctx context.Context, db execer, id string) (*model.Session, error) {
	row := db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, memexerr.Newf(memexerr.NotFound, "session %s not found", id)
	}
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "get session", err)
	}
	return s, nil
}

// ListByUser returns a user's sessions, most recently active first.
func (r *SessionRepo) ListByUser(ctx context.Context, db execer, userID string, limit, offset int) ([]model.Session, int, error) {
	if limit <= 0 {
		limit = model.DefaultLimit
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY last_activity_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, memexerr.Wrap(memexerr.IO, "list sessions by user", err)
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, memexerr.Wrap(memexerr.IO, "scan session row", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, memexerr.Wrap(memexerr.IO, "iterate session rows", err)
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, memexerr.Wrap(memexerr.IO, "count sessions by user", err)
	}
	return out, total, nil
}

// UpdateActivity bumps a session's last_activity_at and updated_at.
func (r *SessionRepo) UpdateActivity(ctx context.Context, db execer, id string, now time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(now), formatTime(now), id)
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "update session activity", err)
	}
	return nil
}

// Delete removes a session row only. Its memories are not touched here;
// a cascading delete is done by the caller running
// MemoryRepo.DeleteBySession in the same transaction.
func (r *SessionRepo) Delete(ctx context.Context, db execer, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "delete session", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return memexerr.Newf(memexerr.NotFound, "session %s not found", id)
	}
	return nil
}

// Search returns sessions for a user whose memories' FTS index matches any
// of the given keywords.
func (r *SessionRepo) Search(ctx context.Context, db execer, userID string, keywords []string) ([]model.Session, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT `+qualifiedSessionColumns()+`
		FROM sessions s
		JOIN memories m ON m.session_id = s.id
		JOIN memories_fts ON m.rowid = memories_fts.rowid
		WHERE s.user_id = ? AND memories_fts MATCH ?
		ORDER BY s.last_activity_at DESC`,
		userID, joinKeywords(keywords))
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "search sessions", err)
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, memexerr.Wrap(memexerr.IO, "scan searched session", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func qualifiedSessionColumns() string {
	cols := []string{"id", "user_id", "name", "metadata_json", "created_at", "updated_at", "last_activity_at"}
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += "s." + c
	}
	return out
}

func joinKeywords(keywords []string) string {
	out := ""
	for i, k := range keywords {
		if i > 0 {
			out += " OR "
		}
		out += k
	}
	return out
}

func scanSession(row scanner) (*model.Session, error) {
	var s model.Session
	var name, metaJSON sql.NullString
	var createdAt, updatedAt, lastActivity string

	err := row.Scan(&s.ID, &s.UserID, &name, &metaJSON, &createdAt, &updatedAt, &lastActivity)
	if err != nil {
		return nil, err
	}
	if name.Valid {
		s.Name = name.String
	}
	if metaJSON.Valid && metaJSON.String != "" {
		json.Unmarshal([]byte(metaJSON.String), &s.Metadata)
	}
	s.CreatedAt, _ = parseTime(createdAt)
	s.UpdatedAt, _ = parseTime(updatedAt)
	s.LastActivityAt, _ = parseTime(lastActivity)
	return &s, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
