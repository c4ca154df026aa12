package monitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"uhfremux/internal/config"
	"uhfremux/internal/logging"
	"uhfremux/internal/recordings"
)

// validIntervals are the scan intervals the minute gate accepts. A scan only
// fires when the wall-clock minute is a multiple of the configured interval.
var validIntervals = map[int]bool{
	1: true, 2: true, 5: true, 10: true, 15: true,
	20: true, 30: true, 45: true, 55: true,
}

type snapshotReader interface {
	Lookup(ctx context.Context, path string) (*recordings.Recording, bool, error)
}

type jobStore interface {
	IsProcessed(ctx context.Context, originalPath string) (bool, error)
	Admit(ctx context.Context, originalPath, outputPath string, rec *recordings.Recording) (int64, error)
}

type remuxRunner interface {
	Run(ctx context.Context, jobID int64, inputPath, outputPath string, rec *recordings.Recording) bool
}

type librarySyncer interface {
	Sync(ctx context.Context, jobID int64, outputPath, plexFolder string, rec *recordings.Recording) bool
}

// Monitor is the top-level discovery loop. It scans the watch directory on
// the configured minute gate, filters candidates against the recording
// snapshot and the job ledger, and fans out per-file processing.
type Monitor struct {
	cfg    *config.Config
	reader snapshotReader
	store  jobStore
	runner remuxRunner
	syncer librarySyncer
	logger *slog.Logger
	dryRun bool

	now          func() time.Time
	tickInterval time.Duration
	errorBackoff time.Duration
}

// New constructs a Monitor. syncer may be nil when library sync is disabled.
func New(cfg *config.Config, reader snapshotReader, store jobStore, runner remuxRunner, syncer librarySyncer, logger *slog.Logger, dryRun bool) *Monitor {
	return &Monitor{
		cfg:          cfg,
		reader:       reader,
		store:        store,
		runner:       runner,
		syncer:       syncer,
		logger:       logging.NewComponentLogger(logger, "monitor"),
		dryRun:       dryRun,
		now:          time.Now,
		tickInterval: time.Minute,
		errorBackoff: time.Second,
	}
}

// Run drives the discovery loop until ctx is cancelled. A failed cycle is
// logged and retried after a short backoff; no per-file error ever escapes
// into the loop's control flow.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("watching for finished recordings",
		logging.String("dir", m.cfg.Paths.WatchDir),
		logging.Int("interval_minutes", m.cfg.Remux.ScanInterval))

	for {
		delay := m.tickInterval
		if err := m.cycle(ctx); err != nil {
			m.logger.Error("scan cycle failed", logging.Error(err))
			delay = m.errorBackoff
		}
		if err := wait(ctx, delay); err != nil {
			return err
		}
	}
}

func (m *Monitor) cycle(ctx context.Context) error {
	if !m.ShouldScan(m.now()) {
		return nil
	}

	scanID := uuid.NewString()
	logger := m.logger.With(logging.String("scan_id", scanID))

	candidates, err := m.listCandidates()
	if err != nil {
		return err
	}
	logger.Debug("scanned watch directory", logging.Int("candidates", len(candidates)))

	var wg sync.WaitGroup
	for _, path := range candidates {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			m.processFile(ctx, logger, path)
		}(path)
	}
	wg.Wait()
	return nil
}

// ShouldScan reports whether a scan fires at the given time: the configured
// interval must be one of the supported values and evenly divide the
// current minute.
func (m *Monitor) ShouldScan(now time.Time) bool {
	interval := m.cfg.Remux.ScanInterval
	return validIntervals[interval] && now.Minute()%interval == 0
}

func (m *Monitor) listCandidates() ([]string, error) {
	entries, err := os.ReadDir(m.cfg.Paths.WatchDir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".ts") {
			continue
		}
		paths = append(paths, filepath.Join(m.cfg.Paths.WatchDir, entry.Name()))
	}
	return paths, nil
}

// processFile runs the full per-file decision chain. Every exit path is a
// logged outcome; errors stay contained to this file's processing.
func (m *Monitor) processFile(ctx context.Context, logger *slog.Logger, path string) {
	fileLogger := logger.With(logging.String("file", filepath.Base(path)))

	processed, err := m.store.IsProcessed(ctx, path)
	if err != nil {
		fileLogger.Error("failed to check job ledger", logging.Error(err))
		return
	}
	if processed {
		fileLogger.Debug("skipping already processed file")
		return
	}

	rec, found, err := m.reader.Lookup(ctx, path)
	if err != nil {
		fileLogger.Warn("failed to read recording snapshot", logging.Error(err))
		return
	}
	if !found {
		fileLogger.Warn("no recording info found for file")
		return
	}

	if !m.cfg.Remux.IncludeCancelled && rec.IsCancelled() {
		fileLogger.Info("skipping cancelled recording")
		return
	}
	if rec.IsActive() {
		fileLogger.Info("skipping active recording")
		return
	}

	folder, filename := OutputName(rec)
	outputFolder := filepath.Join(m.cfg.Paths.DestinationDir, folder)
	outputPath := filepath.Join(outputFolder, filename)
	plexFolder := filepath.Join(m.cfg.Paths.PlexFolder, folder)

	if err := os.MkdirAll(outputFolder, 0o755); err != nil {
		fileLogger.Error("failed to create output folder", logging.Error(err))
		return
	}

	jobID, err := m.store.Admit(ctx, path, outputPath, rec)
	if err != nil {
		fileLogger.Error("failed to admit job", logging.Error(err))
		return
	}
	jobLogger := fileLogger.With(logging.Int64("job_id", jobID))

	if m.dryRun {
		jobLogger.Info("dry run: would remux",
			logging.String("output", filepath.Join(folder, filename)))
		return
	}

	if !m.runner.Run(ctx, jobID, path, outputPath, rec) {
		return
	}
	if m.syncer != nil {
		m.syncer.Sync(ctx, jobID, outputPath, plexFolder, rec)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
