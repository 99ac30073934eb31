package testsupport

import (
	"context"
	"testing"

	"fieldsync/internal/config"
	"fieldsync/internal/logging"
	"fieldsync/internal/persist"
	"fieldsync/internal/store"
)

// MustOpenStore opens a SQLite-backed store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	adapter, err := persist.OpenSQLite(context.Background(), cfg.StateDBPath(), cfg.LockPath())
	if err != nil {
		t.Fatalf("persist.OpenSQLite: %v", err)
	}
	st := store.Open(context.Background(), adapter, logging.NewNop())
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// NewMemoryStore returns a store over an in-memory adapter and the adapter
// itself so tests can inspect saved snapshots or inject failures.
func NewMemoryStore(t testing.TB, opts ...store.Option) (*store.Store, *persist.Memory) {
	t.Helper()

	mem := persist.NewMemory()
	return store.Open(context.Background(), mem, logging.NewNop(), opts...), mem
}
