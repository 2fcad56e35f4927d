package testsupport

import (
	"context"
	"testing"

	"arkimedes/internal/anvl"
	"arkimedes/internal/arkdb"
	"arkimedes/internal/config"
)

// MustOpenStore opens an arkdb.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *arkdb.Store {
	t.Helper()

	store, err := arkdb.Open(cfg)
	if err != nil {
		t.Fatalf("arkdb.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Seed upserts records given as alternating key/value strings.
func Seed(t testing.TB, store *arkdb.Store, records ...[]string) {
	t.Helper()

	for _, kv := range records {
		rec, err := anvl.FromStrings(kv...)
		if err != nil {
			t.Fatalf("build record: %v", err)
		}
		if _, err := store.Upsert(context.Background(), rec); err != nil {
			t.Fatalf("store.Upsert: %v", err)
		}
	}
}
