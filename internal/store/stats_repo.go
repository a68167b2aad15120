package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rcliao/memex/internal/memexerr"
)

// Stats is a snapshot of engine-wide aggregates.
type Stats struct {
	TotalMemories   int     `json:"total_memories"`
	TotalSessions   int     `json:"total_sessions"`
	TotalUsers      int     `json:"total_users"`
	SumImportance   float64 `json:"sum_importance"`
	AvgImportance   float64 `json:"avg_importance"`
	CompressedCount int     `json:"compressed_count"`
}

// UserStats is a snapshot of one user's aggregates.
type UserStats struct {
	UserID        string  `json:"user_id"`
	MemoryCount   int     `json:"memory_count"`
	SessionCount  int     `json:"session_count"`
	SumImportance float64 `json:"sum_importance"`
	AvgImportance float64 `json:"avg_importance"`
}

// StatsRepo computes aggregates with single aggregate queries, never by
// loading rows into the engine to sum in Go.
type StatsRepo struct{}

func NewStatsRepo() *StatsRepo { return &StatsRepo{} }

// Global computes engine-wide stats.
func (r *StatsRepo) Global(ctx context.Context, db execer) (*Stats, error) {
	var s Stats
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT user_id), COALESCE(SUM(importance), 0), COALESCE(AVG(importance), 0),
			   COALESCE(SUM(CASE WHEN is_compressed = 1 THEN 1 ELSE 0 END), 0)
		FROM memories`).Scan(&s.TotalMemories, &s.TotalUsers, &s.SumImportance, &s.AvgImportance, &s.CompressedCount)
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "compute global memory stats", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&s.TotalSessions); err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "compute session count", err)
	}
	return &s, nil
}

// ForUser computes per-user stats.
func (r *StatsRepo) ForUser(ctx context.Context, db execer, userID string) (*UserStats, error) {
	s := &UserStats{UserID: userID}
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(importance), 0), COALESCE(AVG(importance), 0)
		FROM memories WHERE user_id = ?`, userID).Scan(&s.MemoryCount, &s.SumImportance, &s.AvgImportance)
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "compute user memory stats", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE user_id = ?`, userID).Scan(&s.SessionCount); err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "compute user session count", err)
	}
	return s, nil
}

// SessionAnalytics reports a user's session count, average memories per
// session and most active session, used by get_session_analytics.
type SessionAnalytics struct {
	UserID                string  `json:"user_id"`
	SessionCount          int     `json:"session_count"`
	AvgMemoriesPerSession float64 `json:"avg_memories_per_session"`
	MostActiveSession     string  `json:"most_active_session,omitempty"`
}

// SessionAnalytics computes the per-user session/memory distribution.
func (r *StatsRepo) SessionAnalytics(ctx context.Context, db execer, userID string) (*SessionAnalytics, error) {
	a := &SessionAnalytics{UserID: userID}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE user_id = ?`, userID).Scan(&a.SessionCount); err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "count user sessions", err)
	}
	if a.SessionCount == 0 {
		return a, nil
	}

	var totalMemories int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE user_id = ?`, userID).Scan(&totalMemories); err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "count user memories", err)
	}
	a.AvgMemoriesPerSession = float64(totalMemories) / float64(a.SessionCount)

	err := db.QueryRowContext(ctx, `
		SELECT session_id FROM memories WHERE user_id = ?
		GROUP BY session_id ORDER BY COUNT(*) DESC LIMIT 1`, userID).Scan(&a.MostActiveSession)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, memexerr.Wrap(memexerr.IO, "find most active session", err)
	}
	return a, nil
}
