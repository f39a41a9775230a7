package cache

import (
	"context"
	"errors"
	"testing"
)

func newTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(Config{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close failed: %v", err)
		}
	})
	return store
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	store := newTestBadger(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.SetWithTTL(ctx, "issues:grid:0:0", []byte(`["i1"]`), 300); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got, err := store.Get(ctx, "issues:grid:0:0")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(got) != `["i1"]` {
		t.Fatalf("unexpected value %s", got)
	}
}

func TestBadgerStore_Delete(t *testing.T) {
	store := newTestBadger(t)
	ctx := context.Background()

	if err := store.SetWithTTL(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBadgerStore_DeletePrefix(t *testing.T) {
	store := newTestBadger(t)
	ctx := context.Background()

	entries := map[string]string{
		"issues:grid:0:0":  `["i1"]`,
		"issues:grid:1:1":  `[]`,
		"issue:summary:i1": `{"id":"i1"}`,
	}
	for key, value := range entries {
		if err := store.SetWithTTL(ctx, key, []byte(value), 0); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	if err := store.DeletePrefix(ctx, "issues:"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := store.Get(ctx, "issues:grid:0:0"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected the grid entries evicted, got %v", err)
	}
	if _, err := store.Get(ctx, "issue:summary:i1"); err != nil {
		t.Fatalf("expected the summary entry to survive, got %v", err)
	}
}
