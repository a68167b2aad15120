package store

import (
	"context"
	"testing"
	"time"

	"github.com/rcliao/memex/internal/memexerr"
	"github.com/rcliao/memex/internal/model"
)

func newSession(id, userID, name string, now time.Time) *model.Session {
	return &model.Session{ID: id, UserID: userID, Name: name, CreatedAt: now, UpdatedAt: now, LastActivityAt: now}
}

func TestSessionCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepo()
	now := time.Now().UTC().Truncate(time.Second)

	if err := repo.Create(ctx, db.Writer(), newSession("s1", "alice", "Project X", now)); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Get(ctx, db.Reader(), "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Project X" {
		t.Errorf("expected name Project X, got %q", got.Name)
	}
}

func TestSessionExists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepo()
	now := time.Now().UTC()

	exists, err := repo.Exists(ctx, db.Reader(), "s1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("expected s1 not to exist yet")
	}

	repo.Create(ctx, db.Writer(), newSession("s1", "alice", "", now))

	exists, err = repo.Exists(ctx, db.Reader(), "s1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("expected s1 to exist after create")
	}
}

func TestSessionListByUserOrdering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepo()
	now := time.Now().UTC()

	repo.Create(ctx, db.Writer(), newSession("s1", "alice", "", now.Add(-time.Hour)))
	repo.Create(ctx, db.Writer(), newSession("s2", "alice", "", now))
	repo.Create(ctx, db.Writer(), newSession("s3", "bob", "", now))

	sessions, total, err := repo.ListByUser(ctx, db.Reader(), "alice", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 sessions for alice, got %d", total)
	}
	if sessions[0].ID != "s2" {
		t.Errorf("expected most recently active session first, got %s", sessions[0].ID)
	}
}

func TestSessionUpdateActivity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepo()
	now := time.Now().UTC()

	repo.Create(ctx, db.Writer(), newSession("s1", "alice", "", now))
	later := now.Add(time.Hour)
	if err := repo.UpdateActivity(ctx, db.Writer(), "s1", later); err != nil {
		t.Fatalf("update activity: %v", err)
	}

	got, err := repo.Get(ctx, db.Reader(), "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.LastActivityAt.Equal(later) {
		t.Errorf("expected last_activity_at %v, got %v", later, got.LastActivityAt)
	}
}

func TestSessionDeleteNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepo()
	err := repo.Delete(context.Background(), db.Writer(), "missing")
	if memexerr.KindOf(err) != memexerr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestSessionSearchByMemoryKeyword(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	sessRepo := NewSessionRepo()
	memRepo := NewMemoryRepo()
	now := time.Now().UTC()

	sessRepo.Create(ctx, db.Writer(), newSession("s1", "alice", "", now))
	sessRepo.Create(ctx, db.Writer(), newSession("s2", "alice", "", now))
	memRepo.Insert(ctx, db.Writer(), newMemory("m1", "alice", "s1", "discussing API design", 0.5, now))
	memRepo.Insert(ctx, db.Writer(), newMemory("m2", "alice", "s2", "grocery list", 0.5, now))

	sessions, err := sessRepo.Search(ctx, db.Reader(), "alice", []string{"API"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s1" {
		t.Fatalf("expected only s1 to match, got %+v", sessions)
	}
}
