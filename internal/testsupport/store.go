package testsupport

import (
	"context"
	"testing"

	"uhfremux/internal/config"
	"uhfremux/internal/queue"
	"uhfremux/internal/recordings"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AdmitJob creates a job for tests using the provided store.
func AdmitJob(t testing.TB, store *queue.Store, originalPath, outputPath string, rec *recordings.Recording) int64 {
	t.Helper()

	id, err := store.Admit(context.Background(), originalPath, outputPath, rec)
	if err != nil {
		t.Fatalf("store.Admit: %v", err)
	}
	return id
}
