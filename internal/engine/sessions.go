package engine

import (
	"context"
	"database/sql"
	"sort"

	"github.com/rcliao/memex/internal/memexerr"
	"github.com/rcliao/memex/internal/model"
)

// CreateSession explicitly creates a session row. Sessions are also
// created implicitly by the first save() against an unknown session id;
// this operation exists for callers that want one up front (e.g. to set a
// name before the first memory lands).
func (e *Engine) CreateSession(ctx context.Context, userID, id, name string) (*model.Session, error) {
	if err := e.checkValid(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, memexerr.New(memexerr.Invalid, "user_id is required")
	}
	if id == "" {
		id = e.idGen.New()
	}

	now := e.clockNow()
	s := &model.Session{
		ID: id, UserID: userID, Name: name,
		CreatedAt: now, UpdatedAt: now, LastActivityAt: now,
	}
	err := e.withWriteTx(ctx, func(tx *sql.Tx) error {
		exists, err := e.sessRepo.Exists(ctx, tx, id)
		if err != nil {
			return err
		}
		if exists {
			return memexerr.Newf(memexerr.Invalid, "session %s already exists", id)
		}
		return e.sessRepo.Create(ctx, tx, s)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetUserSessions lists a user's sessions, most recently active first.
func (e *Engine) GetUserSessions(ctx context.Context, userID string, limit, offset int) (model.PageResponse[model.Session], error) {
	var zero model.PageResponse[model.Session]
	if err := e.checkValid(); err != nil {
		return zero, err
	}
	if userID == "" {
		return zero, memexerr.New(memexerr.Invalid, "user_id is required")
	}
	if limit <= 0 {
		limit = model.DefaultLimit
	}
	if offset < 0 {
		return zero, memexerr.New(memexerr.Invalid, "offset must not be negative")
	}

	sessions, total, err := e.sessRepo.ListByUser(ctx, e.storage.Reader(), userID, limit, offset)
	if err != nil {
		return zero, err
	}
	return model.NewPageResponse(sessions, total, limit, offset), nil
}

// SummarizeSession computes the derived-on-demand view of a session's
// contents: counts, importance aggregates, timestamp extremes, the top-K
// most important excerpts, and a keyword histogram. Returns nil if the
// session has no memories.
func (e *Engine) SummarizeSession(ctx context.Context, sessionID string) (*model.SessionSummary, error) {
	if err := e.checkValid(); err != nil {
		return nil, err
	}

	memories, _, _, err := e.memRepo.ListByFilter(ctx, e.storage.Reader(), model.QueryFilter{
		SessionID: sessionID,
		Limit:     model.MaxLimit,
	}, false)
	if err != nil {
		return nil, err
	}
	if len(memories) == 0 {
		return nil, nil
	}

	summary := &model.SessionSummary{
		SessionID:        sessionID,
		MemoryCount:      len(memories),
		KeywordHistogram: map[string]int{},
	}

	earliest, latest := memories[0].CreatedAt, memories[0].CreatedAt
	for _, m := range memories {
		summary.AggregateImportance += m.Importance
		if m.CreatedAt.Before(earliest) {
			earliest = m.CreatedAt
		}
		if m.CreatedAt.After(latest) {
			latest = m.CreatedAt
		}
		for _, word := range tokenize(m.Content) {
			summary.KeywordHistogram[word]++
		}
	}
	summary.AverageImportance = summary.AggregateImportance / float64(len(memories))
	summary.EarliestCreatedAt = &earliest
	summary.LatestCreatedAt = &latest

	ranked := append([]model.Memory(nil), memories...)
	sortByImportanceDesc(ranked)
	k := topKSessionExcerpts
	if len(ranked) < k {
		k = len(ranked)
	}
	summary.TopMemories = make([]model.Excerpt, 0, k)
	for _, m := range ranked[:k] {
		summary.TopMemories = append(summary.TopMemories, model.Excerpt{
			MemoryID:   m.ID,
			Content:    truncate(m.Content, model.ExcerptMaxChars),
			Importance: m.Importance,
		})
	}

	return summary, nil
}

const topKSessionExcerpts = 10

// SearchSessions returns a user's sessions whose memories' FTS index
// matches any of the given keywords.
func (e *Engine) SearchSessions(ctx context.Context, userID string, keywords []string) ([]model.Session, error) {
	if err := e.checkValid(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, memexerr.New(memexerr.Invalid, "user_id is required")
	}
	return e.sessRepo.Search(ctx, e.storage.Reader(), userID, keywords)
}

// DeleteSession removes a session. When cascade is true every memory in
// the session is deleted first, in the same transaction, so the delete is
// all-or-nothing.
func (e *Engine) DeleteSession(ctx context.Context, id string, cascade bool) error {
	if err := e.checkValid(); err != nil {
		return err
	}
	return e.withWriteTx(ctx, func(tx *sql.Tx) error {
		if cascade {
			if _, err := e.memRepo.DeleteBySession(ctx, tx, id); err != nil {
				return err
			}
		}
		return e.sessRepo.Delete(ctx, tx, id)
	})
}

// sortByImportanceDesc orders memories by importance descending, tied by
// created_at descending then id descending — the same determinism rule
// list_by_filter uses, so top-K excerpts are stable across repeated calls.
func sortByImportanceDesc(memories []model.Memory) {
	sort.Slice(memories, func(i, j int) bool {
		a, b := memories[i], memories[j]
		if a.Importance != b.Importance {
			return a.Importance > b.Importance
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

func truncate(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars])
}
