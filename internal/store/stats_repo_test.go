package store

import (
	"context"
	"testing"
	"time"
)

func TestStatsGlobal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	memRepo := NewMemoryRepo()
	sessRepo := NewSessionRepo()
	statsRepo := NewStatsRepo()
	now := time.Now().UTC()

	sessRepo.Create(ctx, db.Writer(), newSession("s1", "alice", "", now))
	memRepo.Insert(ctx, db.Writer(), newMemory("m1", "alice", "s1", "a", 0.8, now))
	memRepo.Insert(ctx, db.Writer(), newMemory("m2", "bob", "s1", "b", 0.2, now))

	stats, err := statsRepo.Global(ctx, db.Reader())
	if err != nil {
		t.Fatalf("global stats: %v", err)
	}
	if stats.TotalMemories != 2 {
		t.Errorf("expected 2 memories, got %d", stats.TotalMemories)
	}
	if stats.TotalUsers != 2 {
		t.Errorf("expected 2 distinct users, got %d", stats.TotalUsers)
	}
	if stats.AvgImportance != 0.5 {
		t.Errorf("expected avg importance 0.5, got %v", stats.AvgImportance)
	}
}

func TestStatsForUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	memRepo := NewMemoryRepo()
	sessRepo := NewSessionRepo()
	statsRepo := NewStatsRepo()
	now := time.Now().UTC()

	sessRepo.Create(ctx, db.Writer(), newSession("s1", "alice", "", now))
	memRepo.Insert(ctx, db.Writer(), newMemory("m1", "alice", "s1", "a", 0.6, now))
	memRepo.Insert(ctx, db.Writer(), newMemory("m2", "alice", "s1", "b", 0.4, now))

	stats, err := statsRepo.ForUser(ctx, db.Reader(), "alice")
	if err != nil {
		t.Fatalf("user stats: %v", err)
	}
	if stats.MemoryCount != 2 {
		t.Errorf("expected 2 memories, got %d", stats.MemoryCount)
	}
	if stats.SessionCount != 1 {
		t.Errorf("expected 1 session, got %d", stats.SessionCount)
	}
}

func TestSessionAnalyticsEmpty(t *testing.T) {
	db := newTestDB(t)
	statsRepo := NewStatsRepo()

	a, err := statsRepo.SessionAnalytics(context.Background(), db.Reader(), "ghost")
	if err != nil {
		t.Fatalf("session analytics: %v", err)
	}
	if a.SessionCount != 0 {
		t.Errorf("expected 0 sessions for a user with none, got %d", a.SessionCount)
	}
}

func TestSessionAnalyticsMostActive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	memRepo := NewMemoryRepo()
	sessRepo := NewSessionRepo()
	statsRepo := NewStatsRepo()
	now := time.Now().UTC()

	sessRepo.Create(ctx, db.Writer(), newSession("s1", "alice", "", now))
	sessRepo.Create(ctx, db.Writer(), newSession("s2", "alice", "", now))
	memRepo.Insert(ctx, db.Writer(), newMemory("m1", "alice", "s1", "a", 0.5, now))
	memRepo.Insert(ctx, db.Writer(), newMemory("m2", "alice", "s1", "b", 0.5, now))
	memRepo.Insert(ctx, db.Writer(), newMemory("m3", "alice", "s2", "c", 0.5, now))

	a, err := statsRepo.SessionAnalytics(ctx, db.Reader(), "alice")
	if err != nil {
		t.Fatalf("session analytics: %v", err)
	}
	if a.MostActiveSession != "s1" {
		t.Errorf("expected s1 to be the most active session, got %s", a.MostActiveSession)
	}
}
