package monitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"uhfremux/internal/config"
	"uhfremux/internal/logging"
	"uhfremux/internal/recordings"
	"uhfremux/internal/testsupport"
)

type fakeReader struct {
	byPath map[string]*recordings.Recording
}

func (f *fakeReader) Lookup(ctx context.Context, path string) (*recordings.Recording, bool, error) {
	rec, ok := f.byPath[path]
	return rec, ok, nil
}

type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	processed map[string]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{processed: map[string]int64{}}
}

func (f *fakeStore) IsProcessed(ctx context.Context, originalPath string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.processed[originalPath]
	return ok, nil
}

func (f *fakeStore) Admit(ctx context.Context, originalPath, outputPath string, rec *recordings.Recording) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.processed[originalPath]; ok {
		return id, nil
	}
	f.nextID++
	f.processed[originalPath] = f.nextID
	return f.nextID, nil
}

func (f *fakeStore) admissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processed)
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	outputs []string
	succeed bool
}

func (f *fakeRunner) Run(ctx context.Context, jobID int64, inputPath, outputPath string, rec *recordings.Recording) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.outputs = append(f.outputs, outputPath)
	return f.succeed
}

type fakeSyncer struct {
	mu      sync.Mutex
	calls   int
	folders []string
}

func (f *fakeSyncer) Sync(ctx context.Context, jobID int64, outputPath, plexFolder string, rec *recordings.Recording) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.folders = append(f.folders, plexFolder)
	return true
}

type monitorFixture struct {
	cfg    *config.Config
	reader *fakeReader
	store  *fakeStore
	runner *fakeRunner
	syncer *fakeSyncer
	mon    *Monitor
	logger *slog.Logger
}

func newFixture(t *testing.T, dryRun bool, recs ...*recordings.Recording) *monitorFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	byPath := map[string]*recordings.Recording{}
	for _, rec := range recs {
		byPath[rec.FilePath] = rec
	}
	f := &monitorFixture{
		cfg:    cfg,
		reader: &fakeReader{byPath: byPath},
		store:  newFakeStore(),
		runner: &fakeRunner{succeed: true},
		syncer: &fakeSyncer{},
		logger: logging.NewNop(),
	}
	f.mon = New(cfg, f.reader, f.store, f.runner, f.syncer, f.logger, dryRun)
	return f
}

func watchRecording(cfg *config.Config, name, description, status string) *recordings.Recording {
	return &recordings.Recording{
		ID:              "rec-" + name,
		Name:            name,
		Description:     description,
		FilePath:        filepath.Join(cfg.Paths.WatchDir, name+".ts"),
		Status:          recordings.Status(status),
		StartTime:       "2025-04-22T14:00:00Z",
		DurationSeconds: 5400,
		CreatedAt:       "2025-04-22T14:00:00Z",
	}
}

func TestProcessFileHappyPath(t *testing.T) {
	f := newFixture(t, false)
	rec := watchRecording(f.cfg, "news", "Channel One", "completed")
	f.reader.byPath[rec.FilePath] = rec

	f.mon.processFile(context.Background(), f.logger, rec.FilePath)

	if f.runner.calls != 1 {
		t.Fatalf("runner calls = %d", f.runner.calls)
	}
	wantOutput := filepath.Join(f.cfg.Paths.DestinationDir, "Channel One", "news_2025-04-22_14:00-15:30.mkv")
	if f.runner.outputs[0] != wantOutput {
		t.Fatalf("output = %q, want %q", f.runner.outputs[0], wantOutput)
	}
	if f.syncer.calls != 1 {
		t.Fatalf("syncer calls = %d", f.syncer.calls)
	}
	wantFolder := filepath.Join(f.cfg.Paths.PlexFolder, "Channel One")
	if f.syncer.folders[0] != wantFolder {
		t.Fatalf("plex folder = %q, want %q", f.syncer.folders[0], wantFolder)
	}

	// The output folder exists before the remux starts.
	if _, err := os.Stat(filepath.Join(f.cfg.Paths.DestinationDir, "Channel One")); err != nil {
		t.Fatalf("output folder missing: %v", err)
	}
}

func TestProcessFileSkipsActiveRecording(t *testing.T) {
	f := newFixture(t, false)
	rec := watchRecording(f.cfg, "live", "Channel One", "recording")
	f.reader.byPath[rec.FilePath] = rec

	f.mon.processFile(context.Background(), f.logger, rec.FilePath)

	if f.store.admissions() != 0 {
		t.Fatal("active recording was admitted")
	}
	if f.runner.calls != 0 {
		t.Fatal("active recording was remuxed")
	}
}

func TestProcessFileCancelledGate(t *testing.T) {
	f := newFixture(t, false)
	f.cfg.Remux.IncludeCancelled = false
	rec := watchRecording(f.cfg, "aborted", "Channel One", "cancelled")
	f.reader.byPath[rec.FilePath] = rec

	f.mon.processFile(context.Background(), f.logger, rec.FilePath)
	if f.store.admissions() != 0 || f.runner.calls != 0 {
		t.Fatal("cancelled recording processed despite exclusion")
	}

	f.cfg.Remux.IncludeCancelled = true
	f.mon.processFile(context.Background(), f.logger, rec.FilePath)
	if f.store.admissions() != 1 || f.runner.calls != 1 {
		t.Fatal("cancelled recording not processed when included")
	}
}

func TestProcessFileSkipsUnknownFile(t *testing.T) {
	f := newFixture(t, false)
	path := filepath.Join(f.cfg.Paths.WatchDir, "mystery.ts")

	f.mon.processFile(context.Background(), f.logger, path)
	if f.store.admissions() != 0 || f.runner.calls != 0 {
		t.Fatal("file without snapshot entry was processed")
	}
}

func TestProcessFileSkipsAlreadyProcessed(t *testing.T) {
	f := newFixture(t, false)
	rec := watchRecording(f.cfg, "news", "Channel One", "completed")
	f.reader.byPath[rec.FilePath] = rec

	f.mon.processFile(context.Background(), f.logger, rec.FilePath)
	f.mon.processFile(context.Background(), f.logger, rec.FilePath)

	if f.runner.calls != 1 {
		t.Fatalf("runner calls = %d, want 1", f.runner.calls)
	}
}

func TestProcessFileDryRunAdmitsWithoutRunning(t *testing.T) {
	f := newFixture(t, true)
	rec := watchRecording(f.cfg, "news", "Channel One", "completed")
	f.reader.byPath[rec.FilePath] = rec

	f.mon.processFile(context.Background(), f.logger, rec.FilePath)

	if f.store.admissions() != 1 {
		t.Fatal("dry run should still record the admission")
	}
	if f.runner.calls != 0 || f.syncer.calls != 0 {
		t.Fatal("dry run invoked the remux or sync path")
	}
}

func TestProcessFileSkipsSyncAfterFailedRemux(t *testing.T) {
	f := newFixture(t, false)
	f.runner.succeed = false
	rec := watchRecording(f.cfg, "news", "Channel One", "completed")
	f.reader.byPath[rec.FilePath] = rec

	f.mon.processFile(context.Background(), f.logger, rec.FilePath)

	if f.runner.calls != 1 {
		t.Fatalf("runner calls = %d", f.runner.calls)
	}
	if f.syncer.calls != 0 {
		t.Fatal("sync ran after a failed remux")
	}
}

func TestShouldScan(t *testing.T) {
	cases := []struct {
		interval int
		minute   int
		want     bool
	}{
		{5, 0, true},
		{5, 15, true},
		{5, 17, false},
		{1, 59, true},
		{45, 45, true},
		{45, 44, false},
		{45, 0, true},
		{7, 0, false}, // unsupported interval never scans
		{0, 0, false},
	}
	for _, tc := range cases {
		f := newFixture(t, false)
		f.cfg.Remux.ScanInterval = tc.interval
		now := time.Date(2025, 4, 22, 14, tc.minute, 0, 0, time.UTC)
		if got := f.mon.ShouldScan(now); got != tc.want {
			t.Errorf("ShouldScan(interval=%d, minute=%d) = %v, want %v", tc.interval, tc.minute, got, tc.want)
		}
	}
}

func TestCycleProcessesOnlyTSFiles(t *testing.T) {
	f := newFixture(t, false)
	f.cfg.Remux.ScanInterval = 1
	rec := watchRecording(f.cfg, "news", "Channel One", "completed")
	f.reader.byPath[rec.FilePath] = rec

	testsupport.WriteWatchFile(t, f.cfg, "news.ts")
	testsupport.WriteWatchFile(t, f.cfg, "notes.txt")
	if err := os.MkdirAll(filepath.Join(f.cfg.Paths.WatchDir, "sub.ts"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := f.mon.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if f.runner.calls != 1 {
		t.Fatalf("runner calls = %d, want 1", f.runner.calls)
	}
}
