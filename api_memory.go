package memex

import (
	"encoding/json"

	"github.com/rcliao/memex/internal/engine"
	"github.com/rcliao/memex/internal/memexerr"
	"github.com/rcliao/memex/internal/model"
)

// memoryWire is the JSON shape save_batch's elements decode into. save's
// metadata argument is decoded separately, into a plain map.
type memoryWire struct {
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Content    string         `json:"content"`
	Importance float64        `json:"importance"`
	TTLHours   *int           `json:"ttl_hours,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
}

func decodeMetadata(metadataJSON []byte) (map[string]any, error) {
	if len(metadataJSON) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(metadataJSON, &m); err != nil {
		return nil, memexerr.Wrap(memexerr.Invalid, "decode metadata_json", err)
	}
	return m, nil
}

// Save stores one memory and returns its id.
func Save(h Handle, userID, sessionID, content string, importance float64, ttlHours *int, metadataJSON []byte) (string, error) {
	entry, err := reg.get(h)
	if err != nil {
		return "", err
	}
	meta, err := decodeMetadata(metadataJSON)
	if err != nil {
		return "", entry.recordError(err)
	}

	ctx, cancel := withTimeout()
	defer cancel()
	id, err := entry.engine.Save(ctx, engine.SaveInput{
		UserID: userID, SessionID: sessionID, Content: content,
		Importance: importance, TTLHours: ttlHours, Metadata: meta,
	})
	return id, entry.recordError(err)
}

// SaveBatch decodes memoriesJSON as a JSON array of memory objects and
// inserts them either atomically or independently depending on
// failOnError. Returns the batch response JSON-encoded.
func SaveBatch(h Handle, memoriesJSON []byte, failOnError bool) ([]byte, error) {
	entry, err := reg.get(h)
	if err != nil {
		return nil, err
	}

	var wire []memoryWire
	if err := json.Unmarshal(memoriesJSON, &wire); err != nil {
		return nil, entry.recordError(memexerr.Wrap(memexerr.Invalid, "decode memories_json", err))
	}

	inputs := make([]engine.SaveInput, len(wire))
	for i, w := range wire {
		inputs[i] = engine.SaveInput{
			UserID: w.UserID, SessionID: w.SessionID, Content: w.Content,
			Importance: w.Importance, TTLHours: w.TTLHours, Metadata: w.Metadata, Tags: w.Tags,
		}
	}

	ctx, cancel := withTimeout()
	defer cancel()
	resp, err := entry.engine.SaveBatch(ctx, inputs, failOnError)
	if err != nil {
		return nil, entry.recordError(err)
	}
	entry.recordError(nil)
	return json.Marshal(resp)
}

// Recall decodes filterJSON as a QueryFilter and returns the matching page,
// JSON-encoded.
func Recall(h Handle, filterJSON []byte) ([]byte, error) {
	entry, err := reg.get(h)
	if err != nil {
		return nil, err
	}

	var filter model.QueryFilter
	if len(filterJSON) > 0 {
		if err := json.Unmarshal(filterJSON, &filter); err != nil {
			return nil, entry.recordError(memexerr.Wrap(memexerr.Invalid, "decode filter_json", err))
		}
	}

	ctx, cancel := withTimeout()
	defer cancel()
	page, err := entry.engine.Recall(ctx, filter)
	if err != nil {
		return nil, entry.recordError(err)
	}
	entry.recordError(nil)
	return json.Marshal(page)
}

// Search is recall with keywords=[query] and user_id set.
func Search(h Handle, userID, query string, limit, offset int) ([]byte, error) {
	entry, err := reg.get(h)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout()
	defer cancel()
	page, err := entry.engine.Search(ctx, userID, query, limit, offset)
	if err != nil {
		return nil, entry.recordError(err)
	}
	entry.recordError(nil)
	return json.Marshal(page)
}

// GetMemory fetches a single memory by id, JSON-encoded.
func GetMemory(h Handle, id string) ([]byte, error) {
	entry, err := reg.get(h)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout()
	defer cancel()
	m, err := entry.engine.GetMemory(ctx, id)
	if err != nil {
		return nil, entry.recordError(err)
	}
	entry.recordError(nil)
	return json.Marshal(m)
}

// decodePatch decodes patchJSON into an UpdateInput. It decodes into raw
// JSON per key first so presence (the key was sent) can be told apart from
// absence, which an UpdateInput pointer/Set-flag pair alone cannot express.
func decodePatch(patchJSON []byte) (engine.UpdateInput, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(patchJSON, &raw); err != nil {
		return engine.UpdateInput{}, memexerr.Wrap(memexerr.Invalid, "decode patch", err)
	}

	var in engine.UpdateInput
	if v, ok := raw["content"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return in, memexerr.Wrap(memexerr.Invalid, "decode patch.content", err)
		}
		in.Content = &s
	}
	if v, ok := raw["importance"]; ok {
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return in, memexerr.Wrap(memexerr.Invalid, "decode patch.importance", err)
		}
		in.Importance = &f
	}
	if v, ok := raw["metadata"]; ok {
		in.MetadataSet = true
		if !isJSONNull(v) {
			if err := json.Unmarshal(v, &in.Metadata); err != nil {
				return in, memexerr.Wrap(memexerr.Invalid, "decode patch.metadata", err)
			}
		}
	}
	if v, ok := raw["tags"]; ok {
		in.TagsSet = true
		if !isJSONNull(v) {
			if err := json.Unmarshal(v, &in.Tags); err != nil {
				return in, memexerr.Wrap(memexerr.Invalid, "decode patch.tags", err)
			}
		}
	}
	if v, ok := raw["ttl_hours"]; ok {
		in.TTLHoursSet = true
		if !isJSONNull(v) {
			var ttl int
			if err := json.Unmarshal(v, &ttl); err != nil {
				return in, memexerr.Wrap(memexerr.Invalid, "decode patch.ttl_hours", err)
			}
			in.TTLHours = &ttl
		}
	}
	return in, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

// UpdateMemory applies a partial update and returns the updated memory,
// JSON-encoded.
func UpdateMemory(h Handle, id string, patchJSON []byte) ([]byte, error) {
	entry, err := reg.get(h)
	if err != nil {
		return nil, err
	}
	in, err := decodePatch(patchJSON)
	if err != nil {
		return nil, entry.recordError(err)
	}

	ctx, cancel := withTimeout()
	defer cancel()
	m, err := entry.engine.UpdateMemory(ctx, id, in)
	if err != nil {
		return nil, entry.recordError(err)
	}
	entry.recordError(nil)
	return json.Marshal(m)
}

// DeleteMemory removes a memory by id.
func DeleteMemory(h Handle, id string) (bool, error) {
	entry, err := reg.get(h)
	if err != nil {
		return false, err
	}
	ctx, cancel := withTimeout()
	defer cancel()
	err = entry.engine.DeleteMemory(ctx, id)
	if err != nil {
		return false, entry.recordError(err)
	}
	entry.recordError(nil)
	return true, nil
}
