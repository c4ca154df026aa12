package remux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"

	"uhfremux/internal/config"
	"uhfremux/internal/logging"
	"uhfremux/internal/media/ffprobe"
	"uhfremux/internal/queue"
	"uhfremux/internal/recordings"
)

var commandContext = exec.CommandContext

// toolError carries the typed result of a failed external tool invocation.
type toolError struct {
	ExitCode int
	Stderr   string
}

func (e *toolError) Error() string {
	diag := strings.TrimSpace(e.Stderr)
	if diag == "" {
		diag = "no diagnostic output"
	}
	return fmt.Sprintf("ffmpeg exited with code %d: %s", e.ExitCode, diag)
}

// Executor drives ffmpeg stream-copy remuxes under a bounded concurrency gate.
type Executor struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	sem    *semaphore.Weighted
	dryRun bool
	now    func() time.Time

	inspect func(ctx context.Context, binary, path string) (ffprobe.Result, error)
}

// NewExecutor constructs an Executor gated at cfg.Remux.MaxJobs concurrent
// ffmpeg processes.
func NewExecutor(cfg *config.Config, store *queue.Store, logger *slog.Logger, dryRun bool) *Executor {
	maxJobs := cfg.Remux.MaxJobs
	if maxJobs <= 0 {
		maxJobs = 1
	}
	return &Executor{
		cfg:     cfg,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "remux"),
		sem:     semaphore.NewWeighted(int64(maxJobs)),
		dryRun:  dryRun,
		now:     time.Now,
		inspect: ffprobe.Inspect,
	}
}

// Run remuxes inputPath to outputPath under the concurrency gate, tracking
// progress on the job. The boolean result tells the caller whether library
// sync should follow; all failure detail lands on the job record.
func (e *Executor) Run(ctx context.Context, jobID int64, inputPath, outputPath string, rec *recordings.Recording) bool {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		e.logger.Warn("remux slot acquisition aborted", logging.Int64("job_id", jobID), logging.Error(err))
		return false
	}
	defer e.sem.Release(1)

	logger := e.logger.With(logging.Int64("job_id", jobID), logging.String("file", filepath.Base(inputPath)))

	if err := e.store.TransitionRemux(ctx, jobID, queue.RemuxStarted, ""); err != nil {
		logger.Error("failed to mark job started", logging.Error(err))
		return false
	}

	var runErr error
	if e.dryRun {
		logger.Info("dry run: would execute ffmpeg", logging.String("output", outputPath))
	} else {
		logger.Info("starting remux", logging.String("output", filepath.Base(outputPath)))
		e.checkFreeSpace(inputPath, outputPath, logger)
		runErr = e.executeFFmpeg(ctx, inputPath, outputPath, rec)
	}

	if runErr != nil {
		logger.Error("remux failed", logging.Error(runErr))
		if err := e.store.TransitionRemux(ctx, jobID, queue.RemuxFailed, runErr.Error()); err != nil {
			logger.Error("failed to mark job failed", logging.Error(err))
		}
		return false
	}

	if !e.dryRun {
		e.applyOwnership(outputPath, logger)

		if duration := e.probeDuration(ctx, outputPath, logger); duration > 0 {
			if err := e.store.RecordRemuxDuration(ctx, jobID, duration); err != nil {
				logger.Warn("failed to record remux duration", logging.Error(err))
			}
		} else {
			logger.Warn("could not determine remux duration, skipping ledger update",
				logging.String("output", filepath.Base(outputPath)))
		}
	}

	if err := e.store.TransitionRemux(ctx, jobID, queue.RemuxCompleted, ""); err != nil {
		logger.Error("failed to mark job completed", logging.Error(err))
		return false
	}

	logger.Info("remux completed", logging.String("output", filepath.Base(outputPath)))
	return true
}

func (e *Executor) executeFFmpeg(ctx context.Context, inputPath, outputPath string, rec *recordings.Recording) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	args := remuxArgs(inputPath, outputPath, rec, e.now())
	cmd := commandContext(ctx, e.cfg.FFmpegBinary(), args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &toolError{ExitCode: exitCode, Stderr: string(output)}
	}
	return nil
}

// checkFreeSpace warns when the destination filesystem looks too small for
// the remuxed copy. The remux proceeds regardless; ffmpeg reports the
// definitive failure if space actually runs out.
func (e *Executor) checkFreeSpace(inputPath, outputPath string, logger *slog.Logger) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(filepath.Dir(outputPath), &stat); err != nil {
		return
	}
	free := int64(stat.Bavail) * stat.Bsize
	if free < info.Size() {
		logger.Warn("destination filesystem may lack space for remux",
			logging.Int64("input_bytes", info.Size()),
			logging.Int64("free_bytes", free))
	}
}

// applyOwnership aligns the output file and its parent folder with the
// configured media uid/gid. Failures are logged, never fatal.
func (e *Executor) applyOwnership(outputPath string, logger *slog.Logger) {
	uid, gid := e.cfg.Remux.UID, e.cfg.Remux.GID
	if err := os.Chown(outputPath, uid, gid); err != nil {
		logger.Warn("failed to change output ownership", logging.Error(err))
	}
	if err := os.Chown(filepath.Dir(outputPath), uid, gid); err != nil {
		logger.Warn("failed to change output folder ownership", logging.Error(err))
	}
}

func (e *Executor) probeDuration(ctx context.Context, outputPath string, logger *slog.Logger) float64 {
	result, err := e.inspect(ctx, e.cfg.FFprobeBinary(), outputPath)
	if err != nil {
		logger.Warn("ffprobe failed", logging.Error(err))
		return 0
	}
	return result.DurationSeconds()
}
