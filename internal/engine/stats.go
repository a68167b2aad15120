package engine

import (
	"context"

	"github.com/rcliao/memex/internal/model"
	"github.com/rcliao/memex/internal/store"
)

// GetStats computes engine-wide aggregates with single aggregate queries.
func (e *Engine) GetStats(ctx context.Context) (*store.Stats, error) {
	if err := e.checkValid(); err != nil {
		return nil, err
	}
	return e.statsRepo.Global(ctx, e.storage.Reader())
}

// GetUserStats computes one user's aggregates.
func (e *Engine) GetUserStats(ctx context.Context, userID string) (*store.UserStats, error) {
	if err := e.checkValid(); err != nil {
		return nil, err
	}
	return e.statsRepo.ForUser(ctx, e.storage.Reader(), userID)
}

// GetSessionAnalytics reports a user's session count, average memories per
// session and most active session.
func (e *Engine) GetSessionAnalytics(ctx context.Context, userID string) (*store.SessionAnalytics, error) {
	if err := e.checkValid(); err != nil {
		return nil, err
	}
	return e.statsRepo.SessionAnalytics(ctx, e.storage.Reader(), userID)
}

// ExportUserMemories returns every memory belonging to a user, ordered
// deterministically by session then creation time — a non-paginated dump,
// distinct from Recall/Search which always paginate.
func (e *Engine) ExportUserMemories(ctx context.Context, userID string) ([]model.Memory, error) {
	if err := e.checkValid(); err != nil {
		return nil, err
	}
	return e.memRepo.ExportAll(ctx, e.storage.Reader(), userID)
}
