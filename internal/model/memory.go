// Package model defines the core memory and session data types shared by
// the storage, repository, and engine layers.
package model

import "time"

// Memory is the atomic unit of stored text.
type Memory struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	SessionID      string         `json:"session_id"`
	Content        string         `json:"content"`
	Importance     float64        `json:"importance"`
	TTLHours       *int           `json:"ttl_hours,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	AccessCount    int            `json:"access_count"`
	LastAccessedAt *time.Time     `json:"last_accessed_at,omitempty"`
	IsCompressed   bool           `json:"is_compressed,omitempty"`
	OriginalLength *int           `json:"original_length,omitempty"`
}

// Session groups memories belonging to one user.
type Session struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Name           string         `json:"name,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
}

// SessionSummary is the derived-on-demand view of a session's contents.
type SessionSummary struct {
	SessionID           string         `json:"session_id"`
	MemoryCount         int            `json:"memory_count"`
	AggregateImportance float64        `json:"aggregate_importance"`
	AverageImportance   float64        `json:"average_importance"`
	EarliestCreatedAt   *time.Time     `json:"earliest_created_at,omitempty"`
	LatestCreatedAt     *time.Time     `json:"latest_created_at,omitempty"`
	TopMemories         []Excerpt      `json:"top_memories"`
	KeywordHistogram    map[string]int `json:"keyword_histogram"`
}

// Excerpt is a truncated preview of a memory used in summaries.
type Excerpt struct {
	MemoryID   string  `json:"memory_id"`
	Content    string  `json:"content"`
	Importance float64 `json:"importance"`
}

// ExcerptMaxChars is how much of a memory's content a summary excerpt keeps.
const ExcerptMaxChars = 120

// MaxContentBytes bounds memory content length (~64 KiB).
const MaxContentBytes = 64 * 1024

// MaxMetadataBytes bounds the serialized size of a memory's metadata map.
// It is checked on save and save_batch; update_memory does not check it.
const MaxMetadataBytes = 8 * 1024

// NormalizedTTLHours treats zero and negative TTLs as "no TTL".
func NormalizedTTLHours(ttl *int) *int {
	if ttl == nil || *ttl <= 0 {
		return nil
	}
	return ttl
}

// ExpiresAt derives expires_at from created_at and ttl_hours.
func ExpiresAt(createdAt time.Time, ttlHours *int) *time.Time {
	ttlHours = NormalizedTTLHours(ttlHours)
	if ttlHours == nil {
		return nil
	}
	t := createdAt.Add(time.Duration(*ttlHours) * time.Hour)
	return &t
}
