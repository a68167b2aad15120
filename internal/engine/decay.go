package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/memex/internal/model"
)

// DecayStats is decay's response shape: what a completed run actually did.
type DecayStats struct {
	RunID               string `json:"run_id"`
	MemoriesExpired     int    `json:"memories_expired"`
	MemoriesEvicted     int    `json:"memories_evicted"`
	MemoriesCompressed  int    `json:"memories_compressed"`
	ElapsedMS           int64  `json:"elapsed_ms"`
}

// DecayPlan is analyze_decay's response shape: what a run would do,
// computed by the same selection logic as Decay but without mutating.
type DecayPlan struct {
	WouldExpire   int        `json:"would_expire"`
	WouldEvict    int        `json:"would_evict"`
	WouldCompress int        `json:"would_compress"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
}

// Decay runs all four passes — TTL expiry, importance-based eviction,
// low-importance sweep, and optional compression — inside one writer
// transaction, and persists a decay_runs audit row.
func (e *Engine) Decay(ctx context.Context) (*DecayStats, error) {
	if err := e.checkValid(); err != nil {
		return nil, err
	}

	cfg := e.Config()
	policy := e.decayPolicy()
	runID := uuid.New().String()
	start := e.clockNow()

	if err := e.withWriteTx(ctx, func(tx *sql.Tx) error {
		return e.decayRepo.StartRun(ctx, tx, runID, start)
	}); err != nil {
		return nil, err
	}

	stats := &DecayStats{RunID: runID}
	err := e.withWriteTx(ctx, func(tx *sql.Tx) error {
		now := e.clockNow()

		expired, err := e.memRepo.PurgeExpired(ctx, tx, now)
		if err != nil {
			return err
		}
		stats.MemoriesExpired = expired

		evicted, err := e.decayEvictOverQuota(ctx, tx, cfg.MaxMemoriesPerUser, now)
		if err != nil {
			return err
		}
		stats.MemoriesEvicted = evicted

		sweepCutoff := now.Add(-time.Duration(cfg.DefaultMemoryTTLHours) * time.Hour)
		swept, err := e.memRepo.SweepLowImportance(ctx, tx, sweepCutoff, cfg.ImportanceThreshold)
		if err != nil {
			return err
		}
		stats.MemoriesEvicted += swept

		if cfg.EnableCompression {
			compressed, err := e.decayCompress(ctx, tx, policy, now)
			if err != nil {
				return err
			}
			stats.MemoriesCompressed = compressed
		}
		return nil
	})

	completed := e.clockNow()
	elapsed := completed.Sub(start)
	stats.ElapsedMS = elapsed.Milliseconds()

	if err != nil {
		_ = e.withWriteTx(ctx, func(tx *sql.Tx) error {
			return e.decayRepo.FailRun(ctx, tx, runID, completed, err.Error())
		})
		return nil, err
	}

	if err := e.withWriteTx(ctx, func(tx *sql.Tx) error {
		return e.decayRepo.CompleteRun(ctx, tx, runID, completed, stats.MemoriesExpired, stats.MemoriesEvicted, stats.MemoriesCompressed)
	}); err != nil {
		return nil, err
	}
	return stats, nil
}

// decayEvictOverQuota is decay Pass 2: for every user whose memory count
// exceeds limit, evict the excess rows: those expiring within 24h first,
// then lowest importance, then oldest last access, then oldest created_at.
func (e *Engine) decayEvictOverQuota(ctx context.Context, tx *sql.Tx, limit int, now time.Time) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	users, err := e.memRepo.UsersOverQuota(ctx, tx, limit)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, u := range users {
		n, err := e.memRepo.EvictExcessForUser(ctx, tx, u, limit, now)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// decayCompress is decay Pass 4: replace the content of old,
// low-importance, not-yet-compressed memories with a deterministic
// truncation, preserving the original length.
func (e *Engine) decayCompress(ctx context.Context, tx *sql.Tx, policy CompressionConfig, now time.Time) (int, error) {
	cutoff := now.AddDate(0, 0, -policy.MinAgeDays)
	candidates, err := e.memRepo.CandidatesForCompression(ctx, tx, cutoff, policy.MaxImportance)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range candidates {
		if len(m.Content) <= policy.TruncatedMaxLen {
			continue
		}
		originalLen := len(m.Content)
		truncated := truncateBytes(m.Content, policy.TruncatedMaxLen) + "…"
		if err := e.memRepo.Compress(ctx, tx, m.ID, truncated, originalLen); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// truncateBytes truncates s to at most n bytes without splitting a
// multi-byte rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	b := []byte(s)[:n]
	for len(b) > 0 && !isRuneStart(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	return string(b)
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// AnalyzeDecay runs the same selection logic as Decay read-only: it reports
// what would be removed or compressed without mutating any row.
func (e *Engine) AnalyzeDecay(ctx context.Context) (*DecayPlan, error) {
	if err := e.checkValid(); err != nil {
		return nil, err
	}
	cfg := e.Config()
	policy := e.decayPolicy()
	now := e.clockNow()
	reader := e.storage.Reader()

	plan := &DecayPlan{}

	lastRun, err := e.decayRepo.LastRun(ctx, reader)
	if err != nil {
		return nil, err
	}
	if lastRun != nil {
		plan.LastRunAt = &lastRun.StartedAt
		plan.LastRunStatus = lastRun.Status
	}

	expired, err := e.memRepo.CountExpired(ctx, reader, now)
	if err != nil {
		return nil, err
	}
	plan.WouldExpire = expired

	users, err := e.memRepo.UsersOverQuota(ctx, reader, cfg.MaxMemoriesPerUser)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		count, err := e.memRepo.CountByUser(ctx, reader, u)
		if err != nil {
			return nil, err
		}
		if excess := count - cfg.MaxMemoriesPerUser; excess > 0 {
			plan.WouldEvict += excess
		}
	}

	// Sampled against at most MaxLimit rows (all users, any importance,
	// created before the cutoff), so would_evict undercounts the Pass 3
	// sweep once more than MaxLimit memories predate the cutoff; Decay
	// itself has no such cap, it sweeps by SQL predicate.
	sweepCutoff := now.Add(-time.Duration(cfg.DefaultMemoryTTLHours) * time.Hour)
	swept, _, _, err := e.memRepo.ListByFilter(ctx, reader, model.QueryFilter{
		DateTo: &sweepCutoff,
		Limit:  model.MaxLimit,
	}, false)
	if err != nil {
		return nil, err
	}
	for _, m := range swept {
		if m.Importance < cfg.ImportanceThreshold && m.AccessCount == 0 {
			plan.WouldEvict++
		}
	}

	if cfg.EnableCompression {
		cutoff := now.AddDate(0, 0, -policy.MinAgeDays)
		candidates, err := e.memRepo.CandidatesForCompression(ctx, reader, cutoff, policy.MaxImportance)
		if err != nil {
			return nil, err
		}
		for _, m := range candidates {
			if len(m.Content) > policy.TruncatedMaxLen {
				plan.WouldCompress++
			}
		}
	}

	return plan, nil
}
