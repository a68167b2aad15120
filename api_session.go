package memex

import (
	"encoding/json"

	"github.com/rcliao/memex/internal/memexerr"
)

// CreateSession creates a session for userID, optionally named, JSON-encoded.
func CreateSession(h Handle, userID, name string) ([]byte, error) {
	entry, err := reg.get(h)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout()
	defer cancel()
	s, err := entry.engine.CreateSession(ctx, userID, "", name)
	if err != nil {
		return nil, entry.recordError(err)
	}
	entry.recordError(nil)
	return json.Marshal(s)
}

// GetUserSessions lists userID's sessions, most recently active first,
// JSON-encoded as a PageResponse.
func GetUserSessions(h Handle, userID string, limit, offset int) ([]byte, error) {
	entry, err := reg.get(h)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout()
	defer cancel()
	page, err := entry.engine.GetUserSessions(ctx, userID, limit, offset)
	if err != nil {
		return nil, entry.recordError(err)
	}
	entry.recordError(nil)
	return json.Marshal(page)
}

// SummarizeSession computes a session's derived summary, JSON-encoded.
// Returns the JSON literal "null" if the session has no memories.
func SummarizeSession(h Handle, sessionID string) ([]byte, error) {
	entry, err := reg.get(h)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout()
	defer cancel()
	summary, err := entry.engine.SummarizeSession(ctx, sessionID)
	if err != nil {
		return nil, entry.recordError(err)
	}
	entry.recordError(nil)
	return json.Marshal(summary)
}

// SearchSessions decodes keywordsJSON as a JSON array of strings and
// returns the matching sessions, JSON-encoded.
func SearchSessions(h Handle, userID string, keywordsJSON []byte) ([]byte, error) {
	entry, err := reg.get(h)
	if err != nil {
		return nil, err
	}
	var keywords []string
	if len(keywordsJSON) > 0 {
		if err := json.Unmarshal(keywordsJSON, &keywords); err != nil {
			return nil, entry.recordError(memexerr.Wrap(memexerr.Invalid, "decode keywords_json", err))
		}
	}

	ctx, cancel := withTimeout()
	defer cancel()
	sessions, err := entry.engine.SearchSessions(ctx, userID, keywords)
	if err != nil {
		return nil, entry.recordError(err)
	}
	entry.recordError(nil)
	return json.Marshal(sessions)
}

// DeleteSession removes a session, cascading to its memories when cascade
// is true.
func DeleteSession(h Handle, sessionID string, cascade bool) (bool, error) {
	entry, err := reg.get(h)
	if err != nil {
		return false, err
	}
	ctx, cancel := withTimeout()
	defer cancel()
	err = entry.engine.DeleteSession(ctx, sessionID, cascade)
	if err != nil {
		return false, entry.recordError(err)
	}
	entry.recordError(nil)
	return true, nil
}
