package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"uhfremux/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Ownership fixups are disabled by pointing uid/gid at the current user.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WatchDir = filepath.Join(base, "recordings")
	cfg.Paths.DestinationDir = filepath.Join(base, "remux")
	cfg.Paths.SnapshotDir = filepath.Join(base, "data")
	cfg.Remux.UID = os.Getuid()
	cfg.Remux.GID = os.Getgid()

	for _, dir := range []string{cfg.Paths.WatchDir, cfg.Paths.DestinationDir, cfg.Paths.SnapshotDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithPlex fills in a complete Plex configuration on the test config.
func WithPlex(url, token, library string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Plex.URL = url
		cfg.Plex.Token = token
		cfg.Plex.Library = library
	}
}

// WithInterval overrides the scan interval on the test config.
func WithInterval(minutes int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Remux.ScanInterval = minutes
	}
}
