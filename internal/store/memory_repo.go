// Package store is the repository layer: per-entity CRUD with invariant
// enforcement and index-aware queries. All SQL lives here; callers above
// only see typed operations over model.Memory and model.Session.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rcliao/memex/internal/memexerr"
	"github.com/rcliao/memex/internal/model"
)

// MemoryRepo is the repository for the memories table.
type MemoryRepo struct{}

// NewMemoryRepo constructs a MemoryRepo. It holds no state; every method
// takes the executor (a *sql.DB pool or an in-flight *sql.Tx) explicitly so
// the engine controls transaction boundaries.
func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

const memoryColumns = `id, user_id, session_id, content, importance, ttl_hours,
	created_at, updated_at, expires_at, metadata_json, tags_json,
	access_count, last_accessed_at, is_compressed, original_length`

// Insert stores a new memory row. Callers must have already assigned
// m.ID, m.CreatedAt, m.UpdatedAt, and m.ExpiresAt.
func (r *MemoryRepo) Insert(ctx context.Context, db execer, m *model.Memory) error {
	metaJSON, err := marshalMetadata(m.Metadata)
	if err != nil {
		return memexerr.Wrap(memexerr.Invalid, "encode metadata", err)
	}
	tagsJSON, err := marshalTags(m.Tags)
	if err != nil {
		return memexerr.Wrap(memexerr.Invalid, "encode tags", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO memories (id, user_id, session_id, content, importance, ttl_hours,
			created_at, updated_at, expires_at, metadata_json, tags_json,
			access_count, last_accessed_at, is_compressed, original_length)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, 0, NULL)`,
		m.ID, m.UserID, m.SessionID, m.Content, m.Importance, m.TTLHours,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt), formatTimePtr(m.ExpiresAt),
		metaJSON, tagsJSON,
	)
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "insert memory", err)
	}
	return nil
}

// Get fetches a memory by id.
func (r *MemoryRepo) Get(ctx context.Context, db execer, id string) (*model.Memory, error) {
	row := db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, memexerr.Newf(memexerr.NotFound, "memory %s not found", id)
	}
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "get memory", err)
	}
	return m, nil
}

// MemoryPatch carries update_memory's optional partial fields. A nil
// Content or Importance means "leave unchanged". Metadata, Tags and
// TTLHours are applied only when their matching *Set flag is true; a nil
// value with the flag set clears the field.
type MemoryPatch struct {
	Content     *string
	Importance  *float64
	Metadata    map[string]any
	MetadataSet bool
	Tags        []string
	TagsSet     bool
	TTLHours    *int
	TTLHoursSet bool
}

// Update applies a partial update, recomputing expires_at if content
// relevant to it changed, and bumping updated_at. Returns the updated row.
func (r *MemoryRepo) Update(ctx context.Context, db execer, id string, patch MemoryPatch, now time.Time) (*model.Memory, error) {
	existing, err := r.Get(ctx, db, id)
	if err != nil {
		return nil, err
	}

	if patch.Content != nil {
		existing.Content = *patch.Content
	}
	if patch.Importance != nil {
		existing.Importance = *patch.Importance
	}
	if patch.MetadataSet {
		existing.Metadata = patch.Metadata
	}
	if patch.TagsSet {
		existing.Tags = patch.Tags
	}
	if patch.TTLHoursSet {
		existing.TTLHours = patch.TTLHours
		existing.ExpiresAt = model.ExpiresAt(existing.CreatedAt, patch.TTLHours)
	}
	existing.UpdatedAt = now

	metaJSON, err := marshalMetadata(existing.Metadata)
	if err != nil {
		return nil, memexerr.Wrap(memexerr.Invalid, "encode metadata", err)
	}
	tagsJSON, err := marshalTags(existing.Tags)
	if err != nil {
		return nil, memexerr.Wrap(memexerr.Invalid, "encode tags", err)
	}

	_, err = db.ExecContext(ctx, `
		UPDATE memories SET content = ?, importance = ?, ttl_hours = ?, expires_at = ?,
			metadata_json = ?, tags_json = ?, updated_at = ?
		WHERE id = ?`,
		existing.Content, existing.Importance, existing.TTLHours, formatTimePtr(existing.ExpiresAt),
		metaJSON, tagsJSON, formatTime(existing.UpdatedAt), id,
	)
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "update memory", err)
	}
	return existing, nil
}

// Delete removes a memory by id. Returns NotFound if it did not exist.
func (r *MemoryRepo) Delete(ctx context.Context, db execer, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "delete memory", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return memexerr.Newf(memexerr.NotFound, "memory %s not found", id)
	}
	return nil
}

// DeleteBySession removes every memory belonging to a session. Used by
// cascading session delete.
func (r *MemoryRepo) DeleteBySession(ctx context.Context, db execer, sessionID string) (int, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM memories WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, memexerr.Wrap(memexerr.IO, "delete memories by session", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CountByUser returns the authoritative, uncached memory count for a user.
// Quota enforcement always reads this inside the same transaction as the
// insert it is guarding.
func (r *MemoryRepo) CountByUser(ctx context.Context, db execer, userID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, memexerr.Wrap(memexerr.IO, "count memories by user", err)
	}
	return n, nil
}

// ListByFilter compiles f into one query. withTotal additionally issues a
// COUNT(*) with the same predicates (minus ORDER/LIMIT) to populate
// total_count; callers that don't need pagination metadata can skip it.
func (r *MemoryRepo) ListByFilter(ctx context.Context, db execer, f model.QueryFilter, withTotal bool) (data []model.Memory, totalCount int, hasNext bool, err error) {
	f = f.WithDefaults()
	cf := compileFilter(f)

	from := "memories m"
	if cf.joinFTS {
		from = "memories m JOIN memories_fts ON m.rowid = memories_fts.rowid"
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT ? OFFSET ?`,
		qualifiedColumns(), from, cf.where, cf.orderBy)
	args := append(append([]any{}, cf.args...), f.Limit+1, f.Offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, false, memexerr.Wrap(memexerr.IO, "list memories", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, 0, false, memexerr.Wrap(memexerr.IO, "scan memory row", err)
		}
		data = append(data, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, false, memexerr.Wrap(memexerr.IO, "iterate memory rows", err)
	}

	if len(data) > f.Limit {
		hasNext = true
		data = data[:f.Limit]
	}

	if withTotal {
		countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, from, cf.where)
		if err := db.QueryRowContext(ctx, countQuery, cf.args...).Scan(&totalCount); err != nil {
			return nil, 0, false, memexerr.Wrap(memexerr.IO, "count filtered memories", err)
		}
	} else {
		totalCount = f.Offset + len(data)
		if hasNext {
			totalCount++
		}
	}

	return data, totalCount, hasNext, nil
}

// MarkAccessed applies access bookkeeping for a batch of ids, one UPDATE
// per entry, all inside a single call. An id listed twice is counted twice;
// deduplication of repeated hits happens earlier, in the engine's access
// queue. It is always best-effort:
// callers ignore the error rather than failing the read it is bookkeeping
// for.
func (r *MemoryRepo) MarkAccessed(ctx context.Context, db execer, ids []string, now time.Time) error {
	ts := formatTime(now)
	for _, id := range ids {
		if _, err := db.ExecContext(ctx,
			`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`,
			ts, id); err != nil {
			return memexerr.Wrap(memexerr.IO, "mark accessed", err)
		}
	}
	return nil
}

// CountExpired counts memories whose expires_at has already passed,
// without deleting them. The read-only counterpart of PurgeExpired used by
// analyze_decay.
func (r *MemoryRepo) CountExpired(ctx context.Context, db execer, now time.Time) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE expires_at IS NOT NULL AND expires_at <= ?`, formatTime(now)).Scan(&n)
	if err != nil {
		return 0, memexerr.Wrap(memexerr.IO, "count expired memories", err)
	}
	return n, nil
}

// PurgeExpired deletes every memory whose expires_at has passed. This is
// decay Pass 1.
func (r *MemoryRepo) PurgeExpired(ctx context.Context, db execer, now time.Time) (int, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM memories WHERE expires_at IS NOT NULL AND expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, memexerr.Wrap(memexerr.IO, "purge expired memories", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// UsersOverQuota returns the user ids whose memory count exceeds limit.
func (r *MemoryRepo) UsersOverQuota(ctx context.Context, db execer, limit int) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT user_id FROM memories GROUP BY user_id HAVING COUNT(*) > ?`, limit)
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "find users over quota", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, memexerr.Wrap(memexerr.IO, "scan user id", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// EvictExcessForUser deletes a user's lowest-value rows down to limit,
// ordered: expired-within-24h first, then ascending importance, then
// ascending last_accessed_at, then ascending created_at. This is decay
// Pass 2.
func (r *MemoryRepo) EvictExcessForUser(ctx context.Context, db execer, userID string, limit int, now time.Time) (int, error) {
	count, err := r.CountByUser(ctx, db, userID)
	if err != nil {
		return 0, err
	}
	excess := count - limit
	if excess <= 0 {
		return 0, nil
	}

	soon := now.Add(24 * time.Hour)
	rows, err := db.QueryContext(ctx, `
		SELECT id FROM memories
		WHERE user_id = ?
		ORDER BY
			CASE WHEN expires_at IS NOT NULL AND expires_at <= ? THEN 0 ELSE 1 END,
			importance ASC,
			COALESCE(last_accessed_at, '') ASC,
			created_at ASC
		LIMIT ?`, userID, formatTime(soon), excess)
	if err != nil {
		return 0, memexerr.Wrap(memexerr.IO, "select eviction candidates", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, memexerr.Wrap(memexerr.IO, "scan eviction candidate", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, memexerr.Wrap(memexerr.IO, "iterate eviction candidates", err)
	}

	evicted := 0
	for _, id := range ids {
		if err := r.Delete(ctx, db, id); err != nil && memexerr.KindOf(err) != memexerr.NotFound {
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}

// LowestImportance returns the id of a user's least important memory,
// breaking ties by oldest last access (never-accessed first), then oldest
// created_at. Expiry is not considered: an expired or near-expiry memory
// is not preferred over a less important one. Used by auto-eviction on
// quota breach during save.
func (r *MemoryRepo) LowestImportance(ctx context.Context, db execer, userID string) (string, bool, error) {
	var id string
	err := db.QueryRowContext(ctx, `
		SELECT id FROM memories WHERE user_id = ?
		ORDER BY importance ASC, COALESCE(last_accessed_at, '') ASC, created_at ASC
		LIMIT 1`, userID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, memexerr.Wrap(memexerr.IO, "find lowest importance memory", err)
	}
	return id, true, nil
}

// SweepLowImportance deletes memories older than cutoff with importance
// below threshold and zero accesses. This is decay Pass 3.
func (r *MemoryRepo) SweepLowImportance(ctx context.Context, db execer, cutoff time.Time, threshold float64) (int, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM memories
		WHERE created_at < ? AND importance < ? AND access_count = 0`,
		formatTime(cutoff), threshold)
	if err != nil {
		return 0, memexerr.Wrap(memexerr.IO, "sweep low-importance memories", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CandidatesForCompression returns ids, content, and lengths for memories
// older than cutoff with importance below maxImportance that are not
// already compressed. Used by decay Pass 4.
func (r *MemoryRepo) CandidatesForCompression(ctx context.Context, db execer, cutoff time.Time, maxImportance float64) ([]model.Memory, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+memoryColumns+` FROM memories
		WHERE created_at < ? AND importance < ? AND is_compressed = 0`,
		formatTime(cutoff), maxImportance)
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "select compression candidates", err)
	}
	defer rows.Close()

	var out []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, memexerr.Wrap(memexerr.IO, "scan compression candidate", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Compress replaces a memory's content with a truncated summary, recording
// the original byte length in the original_length column and setting
// is_compressed.
func (r *MemoryRepo) Compress(ctx context.Context, db execer, id, truncated string, originalLen int) error {
	_, err := db.ExecContext(ctx, `
		UPDATE memories SET content = ?, is_compressed = 1, original_length = ? WHERE id = ?`,
		truncated, originalLen, id)
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "compress memory", err)
	}
	return nil
}

// ExportAll returns every memory for a user, ordered deterministically.
// Supplements the operation table's export_user_memories.
func (r *MemoryRepo) ExportAll(ctx context.Context, db execer, userID string) ([]model.Memory, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE user_id = ? ORDER BY session_id, created_at, id`, userID)
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "export memories", err)
	}
	defer rows.Close()

	var out []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, memexerr.Wrap(memexerr.IO, "scan exported memory", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func qualifiedColumns() string {
	cols := []string{
		"id", "user_id", "session_id", "content", "importance", "ttl_hours",
		"created_at", "updated_at", "expires_at", "metadata_json", "tags_json",
		"access_count", "last_accessed_at", "is_compressed", "original_length",
	}
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += "m." + c
	}
	return out
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (*model.Memory, error) {
	var m model.Memory
	var ttlHours sql.NullInt64
	var createdAt, updatedAt string
	var expiresAt, lastAccessedAt sql.NullString
	var metaJSON, tagsJSON sql.NullString
	var isCompressed int
	var originalLength sql.NullInt64

	err := row.Scan(
		&m.ID, &m.UserID, &m.SessionID, &m.Content, &m.Importance, &ttlHours,
		&createdAt, &updatedAt, &expiresAt, &metaJSON, &tagsJSON,
		&m.AccessCount, &lastAccessedAt, &isCompressed, &originalLength,
	)
	if err != nil {
		return nil, err
	}

	if ttlHours.Valid {
		v := int(ttlHours.Int64)
		m.TTLHours = &v
	}
	m.CreatedAt, _ = parseTime(createdAt)
	m.UpdatedAt, _ = parseTime(updatedAt)
	if expiresAt.Valid {
		t, _ := parseTime(expiresAt.String)
		m.ExpiresAt = &t
	}
	if lastAccessedAt.Valid {
		t, _ := parseTime(lastAccessedAt.String)
		m.LastAccessedAt = &t
	}
	if metaJSON.Valid && metaJSON.String != "" {
		json.Unmarshal([]byte(metaJSON.String), &m.Metadata)
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		json.Unmarshal([]byte(tagsJSON.String), &m.Tags)
	}
	m.IsCompressed = isCompressed != 0
	if originalLength.Valid {
		v := int(originalLength.Int64)
		m.OriginalLength = &v
	}

	return &m, nil
}

func marshalMetadata(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func marshalTags(tags []string) (any, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
