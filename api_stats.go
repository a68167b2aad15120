package memex

import "encoding/json"

// GetStats returns engine-wide aggregates, JSON-encoded.
func GetStats(h Handle) ([]byte, error) {
	entry, err := reg.get(h)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout()
	defer cancel()
	stats, err := entry.engine.GetStats(ctx)
	if err != nil {
		return nil, entry.recordError(err)
	}
	entry.recordError(nil)
	return json.Marshal(stats)
}

// GetUserStats returns one user's aggregates, JSON-encoded.
func GetUserStats(h Handle, userID string) ([]byte, error) {
	entry, err := reg.get(h)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout()
	defer cancel()
	stats, err := entry.engine.GetUserStats(ctx, userID)
	if err != nil {
		return nil, entry.recordError(err)
	}
	entry.recordError(nil)
	return json.Marshal(stats)
}

// GetSessionAnalytics returns a user's session/memory distribution,
// JSON-encoded.
func GetSessionAnalytics(h Handle, userID string) ([]byte, error) {
	entry, err := reg.get(h)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout()
	defer cancel()
	analytics, err := entry.engine.GetSessionAnalytics(ctx, userID)
	if err != nil {
		return nil, entry.recordError(err)
	}
	entry.recordError(nil)
	return json.Marshal(analytics)
}

// ExportUserMemories returns every active memory for a user, ordered
// deterministically, JSON-encoded.
func ExportUserMemories(h Handle, userID string) ([]byte, error) {
	entry, err := reg.get(h)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout()
	defer cancel()
	memories, err := entry.engine.ExportUserMemories(ctx, userID)
	if err != nil {
		return nil, entry.recordError(err)
	}
	entry.recordError(nil)
	return json.Marshal(memories)
}
