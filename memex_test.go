package memex

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandle(t *testing.T) Handle {
	t.Helper()
	cfg := map[string]any{"database_path": filepath.Join(t.TempDir(), "test.db")}
	cfgJSON, err := json.Marshal(cfg)
	require.NoError(t, err)
	h, err := Init(cfgJSON)
	require.NoError(t, err)
	t.Cleanup(func() { Destroy(h) })
	return h
}

func TestInitDestroy(t *testing.T) {
	h := newTestHandle(t)
	require.True(t, IsValid(h))
	Destroy(h)
	assert.False(t, IsValid(h))
}

func TestInitRejectsMalformedConfig(t *testing.T) {
	_, err := Init([]byte(`{not json`))
	require.Error(t, err)
}

func TestSaveAndGetMemory(t *testing.T) {
	h := newTestHandle(t)
	id, err := Save(h, "alice", "s1", "remember this", 0.6, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	raw, err := GetMemory(h, id)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "remember this", m["content"])
}

func TestSaveWithMetadataJSON(t *testing.T) {
	h := newTestHandle(t)
	meta, err := json.Marshal(map[string]any{"topic": "billing"})
	require.NoError(t, err)
	id, err := Save(h, "alice", "s1", "invoice question", 0.4, nil, meta)
	require.NoError(t, err)

	raw, err := GetMemory(h, id)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	metadata, ok := m["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "billing", metadata["topic"])
}

func TestSaveBatchAtomicAndBestEffort(t *testing.T) {
	h := newTestHandle(t)
	memories, err := json.Marshal([]map[string]any{
		{"user_id": "alice", "session_id": "s1", "content": "one", "importance": 0.5},
		{"user_id": "alice", "session_id": "s1", "content": "", "importance": 0.5},
	})
	require.NoError(t, err)

	_, err = SaveBatch(h, memories, true)
	require.Error(t, err, "the atomic batch must fail on an invalid row")

	raw, err := SaveBatch(h, memories, false)
	require.NoError(t, err)
	var resp struct {
		SuccessCount int `json:"success_count"`
		FailureCount int `json:"failure_count"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, 1, resp.SuccessCount)
	assert.Equal(t, 1, resp.FailureCount)
}

func TestRecallAndSearch(t *testing.T) {
	h := newTestHandle(t)
	_, err := Save(h, "alice", "s1", "discussing the release checklist", 0.5, nil, nil)
	require.NoError(t, err)

	filterJSON, err := json.Marshal(map[string]any{"user_id": "alice"})
	require.NoError(t, err)
	raw, err := Recall(h, filterJSON)
	require.NoError(t, err)
	var page struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &page))
	assert.Len(t, page.Data, 1)

	raw, err = Search(h, "alice", "checklist", 10, 0)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &page))
	assert.Len(t, page.Data, 1)
}

func TestUpdateMemoryPatch(t *testing.T) {
	h := newTestHandle(t)
	id, err := Save(h, "alice", "s1", "original content", 0.5, nil, nil)
	require.NoError(t, err)

	patch, err := json.Marshal(map[string]any{"importance": 0.9})
	require.NoError(t, err)
	raw, err := UpdateMemory(h, id, patch)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, 0.9, m["importance"])
	assert.Equal(t, "original content", m["content"])
}

func TestDeleteMemory(t *testing.T) {
	h := newTestHandle(t)
	id, err := Save(h, "alice", "s1", "to delete", 0.5, nil, nil)
	require.NoError(t, err)
	ok, err := DeleteMemory(h, id)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = GetMemory(h, id)
	assert.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	h := newTestHandle(t)
	raw, err := CreateSession(h, "alice", "planning")
	require.NoError(t, err)
	var s struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &s))
	require.NotEmpty(t, s.ID)

	_, err = Save(h, "alice", s.ID, "some content", 0.5, nil, nil)
	require.NoError(t, err)

	raw, err = SummarizeSession(h, s.ID)
	require.NoError(t, err)
	var summary struct {
		MemoryCount int `json:"memory_count"`
	}
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, 1, summary.MemoryCount)

	ok, err := DeleteSession(h, s.ID, true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDecayAndAnalyze(t *testing.T) {
	h := newTestHandle(t)
	_, err := Save(h, "alice", "s1", "some content", 0.5, nil, nil)
	require.NoError(t, err)

	_, err = DecayAnalyze(h)
	require.NoError(t, err)
	_, err = Decay(h)
	require.NoError(t, err)

	policy, err := json.Marshal(map[string]any{"min_age_days": 1, "max_importance": 0.2, "truncated_max_len": 50})
	require.NoError(t, err)
	ok, err := UpdateDecayPolicy(h, policy)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetLastErrorTracksMostRecentOperation(t *testing.T) {
	h := newTestHandle(t)
	assert.Equal(t, 0, GetLastError(h))

	_, err := Save(h, "", "s1", "content", 0.5, nil, nil)
	require.Error(t, err)
	require.NotEqual(t, 0, GetLastError(h))
	assert.NotEmpty(t, ErrorMessage(GetLastError(h)))

	_, err = Save(h, "alice", "s1", "content", 0.5, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, GetLastError(h))
}

func TestStatsAndExport(t *testing.T) {
	h := newTestHandle(t)
	_, err := Save(h, "alice", "s1", "one", 0.5, nil, nil)
	require.NoError(t, err)
	_, err = Save(h, "alice", "s1", "two", 0.7, nil, nil)
	require.NoError(t, err)

	_, err = GetStats(h)
	require.NoError(t, err)
	_, err = GetUserStats(h, "alice")
	require.NoError(t, err)
	_, err = GetSessionAnalytics(h, "alice")
	require.NoError(t, err)

	raw, err := ExportUserMemories(h, "alice")
	require.NoError(t, err)
	var memories []map[string]any
	require.NoError(t, json.Unmarshal(raw, &memories))
	assert.Len(t, memories, 2)
}

func TestVersionIsNonEmpty(t *testing.T) {
	assert.NotEmpty(t, Version())
}

func TestUnknownHandleIsInvalid(t *testing.T) {
	assert.False(t, IsValid(Handle(999999)))
}
