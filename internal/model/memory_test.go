package model

import (
	"testing"
	"time"
)

func TestNormalizedTTLHours(t *testing.T) {
	zero, neg, pos := 0, -5, 24

	if got := NormalizedTTLHours(nil); got != nil {
		t.Errorf("expected nil to stay nil, got %v", got)
	}
	if got := NormalizedTTLHours(&zero); got != nil {
		t.Errorf("expected ttl_hours=0 to normalize to nil, got %v", got)
	}
	if got := NormalizedTTLHours(&neg); got != nil {
		t.Errorf("expected negative ttl_hours to normalize to nil, got %v", got)
	}
	if got := NormalizedTTLHours(&pos); got == nil || *got != 24 {
		t.Errorf("expected positive ttl_hours to survive unchanged, got %v", got)
	}
}

func TestExpiresAt(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if got := ExpiresAt(created, nil); got != nil {
		t.Errorf("expected nil ttl to yield nil expires_at, got %v", got)
	}

	ttl := 48
	got := ExpiresAt(created, &ttl)
	if got == nil {
		t.Fatal("expected non-nil expires_at")
	}
	want := created.Add(48 * time.Hour)
	if !got.Equal(want) {
		t.Errorf("expected expires_at %v, got %v", want, *got)
	}
}
