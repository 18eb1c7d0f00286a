package draft

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "drafts.sqlite"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("got %q, want v1", got)
	}

	// Set replaces the previous snapshot.
	if err := store.Set(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("second set failed: %v", err)
	}
	got, err = store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get after replace failed: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("got %q, want v2", got)
	}
}

func TestSQLiteStoreAbsentKey(t *testing.T) {
	store := openTestSQLite(t)

	got, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get errored on absent key: %v", err)
	}
	if got != nil {
		t.Errorf("absent key returned %q, want nil", got)
	}
}

func TestSQLiteStoreRemove(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Remove(ctx, "k"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get after remove: %v", err)
	}
	if got != nil {
		t.Errorf("removed key still present: %q", got)
	}

	// Removing an absent key is fine.
	if err := store.Remove(ctx, "k"); err != nil {
		t.Errorf("remove of absent key errored: %v", err)
	}
}
