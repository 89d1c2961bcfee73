package sessionstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := Record{
		Username:  "alice",
		UserID:    "user-1",
		SessionID: "sess-1",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Save(ctx, "fp-1", rec); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	got, err := store.Load(ctx, "fp-1")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if got.Username != "alice" || got.SessionID != "sess-1" {
		t.Errorf("Load() = %+v, want saved record", got)
	}

	// The record is overwritten wholesale.
	rec.SessionID = "sess-2"
	if err := store.Save(ctx, "fp-1", rec); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}
	got, err = store.Load(ctx, "fp-1")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if got.SessionID != "sess-2" {
		t.Errorf("Load() session id = %q, want sess-2", got.SessionID)
	}
}

func TestMemoryStoreIsolatesClients(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Save(ctx, "fp-a", Record{Username: "alice"})
	_ = store.Save(ctx, "fp-b", Record{Username: "bob"})

	a, err := store.Load(ctx, "fp-a")
	if err != nil || a.Username != "alice" {
		t.Errorf("Load(fp-a) = %+v, %v", a, err)
	}
	b, err := store.Load(ctx, "fp-b")
	if err != nil || b.Username != "bob" {
		t.Errorf("Load(fp-b) = %+v, %v", b, err)
	}

	if err := store.Clear(ctx, "fp-a"); err != nil {
		t.Fatalf("Clear() unexpected error: %v", err)
	}
	if _, err := store.Load(ctx, "fp-a"); !errors.Is(err, ErrNotFound) {
		t.Error("cleared record still loads")
	}
	if _, err := store.Load(ctx, "fp-b"); err != nil {
		t.Errorf("unrelated record cleared too: %v", err)
	}
}

func TestMemoryStoreClearAbsent(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Clear(context.Background(), "ghost"); err != nil {
		t.Errorf("Clear() on absent key error = %v, want nil", err)
	}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Load(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}
