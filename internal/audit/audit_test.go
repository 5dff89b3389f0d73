package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"casedesk.io/internal/identity"
)

type stubStore struct {
	entries   []Entry
	appendErr error
	deleted   int64
	deleteErr error
	before    time.Time
}

func (s *stubStore) Append(_ context.Context, e *Entry) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.entries = append(s.entries, *e)
	return nil
}

func (s *stubStore) List(_ context.Context, _ Query) ([]Entry, error) {
	return s.entries, nil
}

func (s *stubStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.before = before
	return s.deleted, s.deleteErr
}

func TestRecordFixesRetentionAtWriteTime(t *testing.T) {
	store := &stubStore{}
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := NewRecorder(store,
		WithRetentionYears(2),
		WithClock(func() time.Time { return now }),
	)

	actor := identity.Actor{UserID: 7, Username: "jdoe"}
	rec.Record(context.Background(), actor, "Update", "Case", "15", map[string]string{"status": "Closed"})

	if len(store.entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(store.entries))
	}
	e := store.entries[0]
	want := now.Add(2 * 365 * 24 * time.Hour)
	if !e.RetentionUntil.Equal(want) {
		t.Fatalf("retention horizon: want %v, got %v", want, e.RetentionUntil)
	}
	if e.UserID == nil || *e.UserID != 7 {
		t.Fatalf("user id not recorded: %+v", e.UserID)
	}
	if e.Snapshot == "" {
		t.Fatal("snapshot missing")
	}
	if e.ID == "" {
		t.Fatal("entry id missing")
	}
}

func TestRecordSwallowsStoreFailure(t *testing.T) {
	store := &stubStore{appendErr: errors.New("db down")}
	rec := NewRecorder(store)

	// Must not panic and must not surface the error.
	rec.Record(context.Background(), identity.Actor{Username: "jdoe", UserID: 1}, "Create", "Case", "1", nil)
	if len(store.entries) != 0 {
		t.Fatal("nothing should have been stored")
	}
}

func TestRecordDevActorHasNoUserID(t *testing.T) {
	store := &stubStore{}
	rec := NewRecorder(store)

	rec.Record(context.Background(), identity.Actor{Username: "dev"}, "Create", "Case", "1", nil)
	if len(store.entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(store.entries))
	}
	if store.entries[0].UserID != nil {
		t.Fatal("dev actor must not carry a user id")
	}
}

func TestRecordListWritesAggregateRow(t *testing.T) {
	store := &stubStore{}
	rec := NewRecorder(store)

	rec.RecordList(context.Background(), identity.Actor{UserID: 1, Username: "jdoe"}, "Case", 42)
	if len(store.entries) != 1 {
		t.Fatalf("expected a single aggregate row, got %d", len(store.entries))
	}
	e := store.entries[0]
	if e.Action != "List" || e.EntityType != "Case" {
		t.Fatalf("unexpected row: %+v", e)
	}
	if e.Snapshot != `{"resultCount":42}` {
		t.Fatalf("unexpected snapshot: %s", e.Snapshot)
	}
}

func TestSweepExpiredUsesCurrentInstant(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	store := &stubStore{deleted: 12}
	rec := NewRecorder(store, WithClock(func() time.Time { return now }))

	deleted, err := rec.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if deleted != 12 {
		t.Fatalf("expected 12 deleted, got %d", deleted)
	}
	if !store.before.Equal(now) {
		t.Fatalf("sweep cutoff: want %v, got %v", now, store.before)
	}
}
