package model

import "testing"

func TestQueryFilterWithDefaults(t *testing.T) {
	f := QueryFilter{}.WithDefaults()
	if f.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, f.Limit)
	}

	f2 := QueryFilter{Limit: 10}.WithDefaults()
	if f2.Limit != 10 {
		t.Errorf("expected limit 10 to survive, got %d", f2.Limit)
	}
}

func TestNewPageResponse(t *testing.T) {
	data := []int{1, 2, 3}
	page := NewPageResponse(data, 25, 10, 0)

	if page.Page != 1 {
		t.Errorf("expected page 1, got %d", page.Page)
	}
	if page.TotalPages != 3 {
		t.Errorf("expected 3 total pages, got %d", page.TotalPages)
	}
	if !page.HasNext {
		t.Error("expected has_next true")
	}
	if page.HasPrev {
		t.Error("expected has_prev false on first page")
	}
}

func TestNewPageResponseLastPage(t *testing.T) {
	data := []int{1, 2, 3, 4, 5}
	page := NewPageResponse(data, 25, 10, 20)

	if page.Page != 3 {
		t.Errorf("expected page 3, got %d", page.Page)
	}
	if page.HasNext {
		t.Error("expected has_next false on last page")
	}
	if !page.HasPrev {
		t.Error("expected has_prev true past the first page")
	}
}

func TestNewPageResponseEmpty(t *testing.T) {
	page := NewPageResponse([]int{}, 0, 50, 0)
	if page.TotalPages != 0 {
		t.Errorf("expected 0 total pages for empty result, got %d", page.TotalPages)
	}
	if page.HasNext || page.HasPrev {
		t.Error("expected no next/prev page on an empty result")
	}
}
