package model

import "time"

// DefaultLimit and MaxLimit bound QueryFilter.Limit.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// QueryFilter is the transient shape recall() and search() compile into SQL.
// It is never persisted.
type QueryFilter struct {
	UserID        string            `json:"user_id,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
	Keywords      []string          `json:"keywords,omitempty"`
	DateFrom      *time.Time        `json:"date_from,omitempty"`
	DateTo        *time.Time        `json:"date_to,omitempty"`
	MinImportance *float64          `json:"min_importance,omitempty"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
	Limit         int               `json:"limit,omitempty"`
	Offset        int               `json:"offset,omitempty"`
}

// WithDefaults returns a copy of f with Limit defaulted. It does not clamp
// Limit to MaxLimit.
func (f QueryFilter) WithDefaults() QueryFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	return f
}

// PageResponse is the transient paginated result shape returned by recall,
// search, and list operations.
type PageResponse[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPageResponse computes page/per_page/total_pages/has_next/has_prev from
// a result page, its limit/offset, and the pre-pagination total count.
func NewPageResponse[T any](data []T, totalCount, limit, offset int) PageResponse[T] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	page := offset/limit + 1
	totalPages := 0
	if totalCount > 0 {
		totalPages = (totalCount + limit - 1) / limit
	}
	return PageResponse[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    limit,
		TotalPages: totalPages,
		HasNext:    offset+len(data) < totalCount,
		HasPrev:    offset > 0,
	}
}
