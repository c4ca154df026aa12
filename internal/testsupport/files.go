package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"uhfremux/internal/config"
	"uhfremux/internal/recordings"
)

// WriteSnapshot writes a recorder snapshot document containing the given
// recordings, keyed by id, to the configured snapshot path.
func WriteSnapshot(t testing.TB, cfg *config.Config, recs ...*recordings.Recording) string {
	t.Helper()

	byID := make(map[string]*recordings.Recording, len(recs))
	for _, rec := range recs {
		byID[rec.ID] = rec
	}
	payload, err := json.Marshal(map[string]any{"recordings": byID})
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	path := cfg.SnapshotPath()
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	return path
}

// WriteWatchFile drops an empty transport-stream file into the watch
// directory and returns its path.
func WriteWatchFile(t testing.TB, cfg *config.Config, name string) string {
	t.Helper()

	path := filepath.Join(cfg.Paths.WatchDir, name)
	if err := os.WriteFile(path, []byte("ts"), 0o644); err != nil {
		t.Fatalf("write watch file: %v", err)
	}
	return path
}
