package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"uhfremux/internal/config"
	"uhfremux/internal/logging"
	"uhfremux/internal/monitor"
	"uhfremux/internal/queue"
)

// Daemon owns the discovery loop's lifecycle and enforces single-instance
// execution via a lock file next to the job ledger.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	monitor *monitor.Monitor

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	wg      sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, mon *monitor.Monitor, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || mon == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, monitor, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.DestinationDir, "uhfremuxd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		monitor:  mon,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, reports leftover pending jobs, and
// launches the discovery loop in the background.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another uhfremuxd instance is already running")
	}

	d.reportPending(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(d.done)
		if err := d.monitor.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("monitor stopped unexpectedly", logging.Error(err))
		}
	}()

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

// reportPending surfaces jobs admitted but never started by a previous run.
// They are not re-driven automatically; the ledger keeps them visible for
// manual intervention.
func (d *Daemon) reportPending(ctx context.Context) {
	pending, err := d.store.PendingJobs(ctx)
	if err != nil {
		d.logger.Warn("failed to read pending jobs", logging.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}
	d.logger.Warn("found jobs left pending by a previous run", logging.Int("count", len(pending)))
	for _, job := range pending {
		d.logger.Info("pending job",
			logging.Int64("job_id", job.ID),
			logging.String("file", filepath.Base(job.OriginalPath)))
	}
}

// Wait blocks until the discovery loop exits.
func (d *Daemon) Wait() {
	if d.done != nil {
		<-d.done
	}
}

// Stop cancels the discovery loop and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Running reports whether the discovery loop is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LockPath returns the instance lock file location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Close stops the daemon and releases the job store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
