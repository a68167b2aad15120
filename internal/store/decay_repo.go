package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rcliao/memex/internal/memexerr"
)

// DecayRun is one persisted row of the decay audit trail: a run id and
// per-pass counts, so repeated decay runs stay auditable.
type DecayRun struct {
	ID                  string
	StartedAt           time.Time
	CompletedAt         *time.Time
	MemoriesExpired     int
	MemoriesEvicted     int
	MemoriesCompressed  int
	Status              string
	ErrorMessage        *string
}

// DecayRepo is the repository for the decay_runs audit table.
type DecayRepo struct{}

func NewDecayRepo() *DecayRepo { return &DecayRepo{} }

// StartRun inserts a new decay_runs row in the "running" state.
func (r *DecayRepo) StartRun(ctx context.Context, db execer, id string, startedAt time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO decay_runs (id, started_at, status) VALUES (?, ?, 'running')`,
		id, formatTime(startedAt))
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "start decay run", err)
	}
	return nil
}

// CompleteRun records a successful run's pass counts and completion time.
func (r *DecayRepo) CompleteRun(ctx context.Context, db execer, id string, completedAt time.Time, expired, evicted, compressed int) error {
	_, err := db.ExecContext(ctx, `
		UPDATE decay_runs SET completed_at = ?, memories_expired = ?, memories_evicted = ?,
			memories_compressed = ?, status = 'completed'
		WHERE id = ?`,
		formatTime(completedAt), expired, evicted, compressed, id)
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "complete decay run", err)
	}
	return nil
}

// FailRun records that a run aborted, with the error that caused it.
func (r *DecayRepo) FailRun(ctx context.Context, db execer, id string, completedAt time.Time, cause string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE decay_runs SET completed_at = ?, status = 'failed', error_message = ? WHERE id = ?`,
		formatTime(completedAt), cause, id)
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "fail decay run", err)
	}
	return nil
}

// LastRun returns the most recently started run, or nil if none exist yet.
func (r *DecayRepo) LastRun(ctx context.Context, db execer) (*DecayRun, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, started_at, completed_at, memories_expired, memories_evicted, memories_compressed, status, error_message
		FROM decay_runs ORDER BY started_at DESC LIMIT 1`)
	run, err := scanDecayRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "read last decay run", err)
	}
	return run, nil
}

func scanDecayRun(row scanner) (*DecayRun, error) {
	var run DecayRun
	var startedAt string
	var completedAt, errMsg sql.NullString

	err := row.Scan(&run.ID, &startedAt, &completedAt, &run.MemoriesExpired,
		&run.MemoriesEvicted, &run.MemoriesCompressed, &run.Status, &errMsg)
	if err != nil {
		return nil, err
	}
	run.StartedAt, _ = parseTime(startedAt)
	if completedAt.Valid {
		t, _ := parseTime(completedAt.String)
		run.CompletedAt = &t
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	return &run, nil
}
