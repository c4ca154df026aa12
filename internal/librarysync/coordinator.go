package librarysync

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"uhfremux/internal/config"
	"uhfremux/internal/logging"
	"uhfremux/internal/queue"
	"uhfremux/internal/recordings"
	"uhfremux/internal/services/plex"
)

const sourceAttribution = "Source: UHF-Server (https://www.uhfapp.com/)"

// Coordinator drives the post-remux library sync: acceptance threshold,
// targeted section refresh, catalog match, and metadata patch. It shares the
// job store with the rest of the pipeline and caches the resolved library
// section for its lifetime.
type Coordinator struct {
	cfg    *config.Config
	store  *queue.Store
	svc    plex.Service
	logger *slog.Logger
	dryRun bool

	mu        sync.Mutex
	sectionID string

	pollInterval time.Duration
	settleDelay  time.Duration
}

// NewCoordinator constructs a Coordinator. svc may be nil when the Plex
// integration is not configured; Sync then records a skip for every job.
func NewCoordinator(cfg *config.Config, store *queue.Store, svc plex.Service, logger *slog.Logger, dryRun bool) *Coordinator {
	return &Coordinator{
		cfg:          cfg,
		store:        store,
		svc:          svc,
		logger:       logging.NewComponentLogger(logger, "librarysync"),
		dryRun:       dryRun,
		pollInterval: 2 * time.Second,
		settleDelay:  3 * time.Second,
	}
}

// Sync runs the full library-sync sequence for a completed remux. plexFolder
// is the output folder as the Plex server sees it. The boolean result mirrors
// whether the library now knows about the file; every outcome also lands on
// the job's plex status.
func (c *Coordinator) Sync(ctx context.Context, jobID int64, outputPath, plexFolder string, rec *recordings.Recording) bool {
	logger := c.logger.With(logging.Int64("job_id", jobID), logging.String("file", filepath.Base(outputPath)))

	if c.svc == nil {
		logger.Info("plex integration not configured, skipping library sync")
		c.markStatus(ctx, jobID, queue.PlexSkipped, "plex integration not configured", logger)
		return false
	}

	job, err := c.store.GetByID(ctx, jobID)
	if err != nil {
		logger.Error("failed to load job for library sync", logging.Error(err))
		c.markStatus(ctx, jobID, queue.PlexFailed, err.Error(), logger)
		return false
	}

	if reason, skip := c.belowThreshold(job); skip {
		logger.Info("skipping library sync", logging.String("reason", reason))
		c.markStatus(ctx, jobID, queue.PlexSkipped, reason, logger)
		return false
	}

	if c.dryRun {
		logger.Info("dry run: would refresh plex library", logging.String("folder", plexFolder))
		return true
	}

	sectionID, err := c.resolveSection(ctx)
	if err != nil {
		logger.Error("failed to resolve plex library section", logging.Error(err))
		c.markStatus(ctx, jobID, queue.PlexFailed, err.Error(), logger)
		return false
	}

	c.waitForIdleScanner(ctx, sectionID, logger)

	if err := c.svc.RefreshPath(ctx, sectionID, plexFolder); err != nil {
		logger.Error("plex refresh failed", logging.Error(err))
		c.markStatus(ctx, jobID, queue.PlexFailed, err.Error(), logger)
		return false
	}
	logger.Info("plex refresh issued", logging.String("folder", plexFolder))

	if err := sleep(ctx, c.settleDelay); err != nil {
		c.markStatus(ctx, jobID, queue.PlexFailed, err.Error(), logger)
		return false
	}

	plexFile := filepath.Join(plexFolder, filepath.Base(outputPath))
	ratingKey, err := c.svc.FindItemByFile(ctx, sectionID, plexFile)
	if err != nil {
		logger.Error("remuxed file not found in plex after refresh", logging.Error(err))
		c.markStatus(ctx, jobID, queue.PlexFailed, err.Error(), logger)
		return false
	}

	if err := c.svc.UpdateItemMetadata(ctx, ratingKey, metadataFields(rec, job)); err != nil {
		// The item is indexed; a patch failure is cosmetic.
		logger.Warn("plex metadata update failed", logging.Error(err))
	} else {
		logger.Info("plex metadata updated", logging.String("rating_key", ratingKey))
	}

	c.markStatus(ctx, jobID, queue.PlexCompleted, "", logger)
	return true
}

// belowThreshold applies the acceptance gate: a remux much shorter than the
// scheduled recording is a truncated capture and is kept out of the library
// unless cancelled recordings were admitted on purpose.
func (c *Coordinator) belowThreshold(job *queue.Job) (string, bool) {
	if c.cfg.Remux.IncludeCancelled {
		return "", false
	}
	if job.RecordingDuration <= 0 || job.RemuxDuration <= 0 {
		return "", false
	}
	percent := job.RemuxDuration / job.RecordingDuration * 100
	if percent >= float64(c.cfg.Remux.ThresholdPercent) {
		return "", false
	}
	return fmt.Sprintf("remux duration %.1f%% of recording, below %d%% threshold",
		percent, c.cfg.Remux.ThresholdPercent), true
}

func (c *Coordinator) resolveSection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sectionID != "" {
		return c.sectionID, nil
	}
	sectionID, err := c.svc.FindSection(ctx, c.cfg.Plex.Library)
	if err != nil {
		return "", err
	}
	c.logger.Info("resolved plex library section",
		logging.String("library", c.cfg.Plex.Library),
		logging.String("section", sectionID))
	c.sectionID = sectionID
	return sectionID, nil
}

// waitForIdleScanner polls the section's scanning flag so the refresh lands
// on a quiet scanner. Poll errors and timeouts are soft: the refresh request
// itself is idempotent and safe to issue during a scan.
func (c *Coordinator) waitForIdleScanner(ctx context.Context, sectionID string, logger *slog.Logger) {
	attempts := c.cfg.Plex.ScanWaitAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		scanning, err := c.svc.SectionScanning(ctx, sectionID)
		if err != nil {
			logger.Warn("could not determine plex scanning status", logging.Error(err))
			return
		}
		if !scanning {
			return
		}
		logger.Debug("plex is scanning, waiting",
			logging.Int("attempt", attempt), logging.Int("limit", attempts))
		if err := sleep(ctx, c.pollInterval); err != nil {
			return
		}
	}
	logger.Warn("timed out waiting for plex to finish scanning", logging.Int("attempts", attempts))
}

func (c *Coordinator) markStatus(ctx context.Context, jobID int64, status queue.PlexStatus, reason string, logger *slog.Logger) {
	if err := c.store.TransitionPlex(ctx, jobID, status, reason); err != nil {
		logger.Error("failed to record plex status", logging.String("status", string(status)), logging.Error(err))
	}
}

// metadataFields builds the patch payload for a newly indexed item. Every
// field is locked so the server's own metadata agents do not overwrite it.
func metadataFields(rec *recordings.Recording, job *queue.Job) url.Values {
	sortDate := "Unknown Date"
	availableDate := ""
	window := "unknown"
	if start, end, err := rec.Window(); err == nil {
		sortDate = recordings.FormatCompact(start)
		availableDate = start.Format("2006-01-02")
		window = start.Format("2006-01-02 15:04") + " - " + end.Format("15:04")
	}

	fields := url.Values{}
	fields.Set("type", "1")
	fields.Set("title.value", rec.Name)
	fields.Set("title.locked", "1")
	fields.Set("titleSort.value", sortDate+"_"+rec.Name)
	fields.Set("titleSort.locked", "1")
	fields.Set("originalTitle.value", filepath.Base(rec.FilePath))
	fields.Set("originalTitle.locked", "1")
	fields.Set("studio.value", rec.Description)
	fields.Set("studio.locked", "1")
	fields.Set("summary.value", buildSummary(rec, job, window))
	fields.Set("summary.locked", "1")
	if availableDate != "" {
		fields.Set("originallyAvailableAt.value", availableDate)
		fields.Set("originallyAvailableAt.locked", "1")
	}
	return fields
}

// buildSummary renders the human-readable item summary: name, studio, the
// recording window, broadcast versus recorded minutes, and the source
// attribution.
func buildSummary(rec *recordings.Recording, job *queue.Job, window string) string {
	parts := []string{rec.Name}
	if strings.TrimSpace(rec.Description) != "" {
		parts = append(parts, rec.Description)
	}
	parts = append(parts, "Recorded: "+window)
	broadcastMin := float64(rec.DurationSeconds) / 60
	recordedMin := job.RemuxDuration / 60
	parts = append(parts, fmt.Sprintf("Broadcast %.0f min, recorded %.0f min", broadcastMin, recordedMin))
	parts = append(parts, sourceAttribution)
	return strings.Join(parts, " | ")
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
