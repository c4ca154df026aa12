package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"uhfremux/internal/config"
	"uhfremux/internal/recordings"
)

// ErrInvalidTransition is returned when a status change violates the state machine.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrJobNotFound is returned when no job exists for the given identifier.
var ErrJobNotFound = errors.New("job not found")

// Store manages the remux job ledger backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database and applies the schema.
// The database file's ownership is aligned with the configured uid/gid on a
// best-effort basis so the media user can inspect it.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.JobStorePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Best-effort: the recorder stack runs everything as the media user.
	_ = os.Chown(dbPath, cfg.Remux.UID, cfg.Remux.GID)
	_ = os.Chmod(dbPath, 0o660)

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) applySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_info LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_info (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("unsupported job store schema version %d (want %d)", version, schemaVersion)
	}
	return nil
}

// Admit returns the job ID for originalPath, creating a pending job with
// denormalized recording fields when none exists. Admission is idempotent:
// the original path is the dedup key and at most one job exists per path.
func (s *Store) Admit(ctx context.Context, originalPath, outputPath string, rec *recordings.Recording) (int64, error) {
	if originalPath == "" {
		return 0, errors.New("original path required")
	}

	var existing int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM remux_jobs WHERE original_path = ?`, originalPath).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup job: %w", err)
	}

	var (
		name, description, createdAt string
		duration                     float64
	)
	if rec != nil {
		name = rec.Name
		description = rec.Description
		createdAt = rec.CreatedAt
		duration = float64(rec.DurationSeconds)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO remux_jobs (
            original_path, output_path, recording_name, recording_description,
            recording_created_at, recording_duration, remux_status,
            plex_update_status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		originalPath,
		outputPath,
		nullableString(name),
		nullableString(description),
		nullableString(createdAt),
		duration,
		RemuxPending,
		PlexPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		// A concurrent admission may have won the unique-index race.
		var raced int64
		if scanErr := s.db.QueryRowContext(ctx, `SELECT id FROM remux_jobs WHERE original_path = ?`, originalPath).Scan(&raced); scanErr == nil {
			return raced, nil
		}
		return 0, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM remux_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// IsProcessed reports whether a job already exists for originalPath. The
// discovery loop uses this as a pre-admission fast path that avoids reading
// the recording snapshot.
func (s *Store) IsProcessed(ctx context.Context, originalPath string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM remux_jobs WHERE original_path = ?`, originalPath).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check processed: %w", err)
	}
	return true, nil
}

// TransitionRemux applies a validated remux status change, stamping the
// matching timestamp. The update is conditional on the expected current
// status so concurrent writers cannot double-apply a transition.
func (s *Store) TransitionRemux(ctx context.Context, id int64, to RemuxStatus, errorMessage string) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransitionRemux(job.RemuxStatus, to) {
		return fmt.Errorf("%w: remux %s -> %s (job %d)", ErrInvalidTransition, job.RemuxStatus, to, id)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var (
		res sql.Result
	)
	switch to {
	case RemuxStarted:
		res, err = s.db.ExecContext(
			ctx,
			`UPDATE remux_jobs SET remux_status = ?, remux_started_at = ?, updated_at = ?
             WHERE id = ? AND remux_status = ?`,
			to, now, now, id, job.RemuxStatus,
		)
	case RemuxCompleted, RemuxFailed:
		res, err = s.db.ExecContext(
			ctx,
			`UPDATE remux_jobs SET remux_status = ?, remux_completed_at = ?,
                 error_message = COALESCE(NULLIF(?, ''), error_message), updated_at = ?
             WHERE id = ? AND remux_status = ?`,
			to, now, errorMessage, now, id, job.RemuxStatus,
		)
	default:
		return fmt.Errorf("%w: remux %s -> %s (job %d)", ErrInvalidTransition, job.RemuxStatus, to, id)
	}
	if err != nil {
		return fmt.Errorf("transition remux: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: remux %s -> %s raced (job %d)", ErrInvalidTransition, job.RemuxStatus, to, id)
	}
	return nil
}

// RecordRemuxDuration stores the probed output duration in seconds. Callers
// skip the call entirely when probing failed or produced a non-positive
// value; the field is written once.
func (s *Store) RecordRemuxDuration(ctx context.Context, id int64, seconds float64) error {
	if seconds <= 0 {
		return fmt.Errorf("remux duration must be positive, got %v", seconds)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE remux_jobs SET remux_duration = ?, updated_at = ? WHERE id = ? AND remux_duration = 0`,
		seconds, now, id,
	)
	if err != nil {
		return fmt.Errorf("record remux duration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("remux duration already recorded (job %d)", id)
	}
	return nil
}

// TransitionPlex applies a validated library-sync status change. The plex
// machine only moves once the remux machine has completed; the completion
// timestamp is stamped regardless of which terminal status is reached, skips
// are outcomes too.
func (s *Store) TransitionPlex(ctx context.Context, id int64, to PlexStatus, errorMessage string) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.RemuxStatus != RemuxCompleted {
		return fmt.Errorf("%w: plex %s -> %s before remux completion (job %d)", ErrInvalidTransition, job.PlexStatus, to, id)
	}
	if !CanTransitionPlex(job.PlexStatus, to) {
		return fmt.Errorf("%w: plex %s -> %s (job %d)", ErrInvalidTransition, job.PlexStatus, to, id)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE remux_jobs SET plex_update_status = ?, plex_update_completed_at = ?,
             error_message = COALESCE(NULLIF(?, ''), error_message), updated_at = ?
         WHERE id = ? AND plex_update_status = ?`,
		to, now, errorMessage, now, id, job.PlexStatus,
	)
	if err != nil {
		return fmt.Errorf("transition plex: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: plex %s -> %s raced (job %d)", ErrInvalidTransition, job.PlexStatus, to, id)
	}
	return nil
}

// PendingJobs returns jobs whose remux machine has not started, oldest
// first. Used for restart-time reconciliation and inspection.
func (s *Store) PendingJobs(ctx context.Context) ([]*Job, error) {
	return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM remux_jobs WHERE remux_status = ? ORDER BY created_at`, RemuxPending)
}

// List returns every job in the ledger, oldest first.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM remux_jobs ORDER BY created_at`)
}

// Stats returns a count of jobs grouped by remux status.
func (s *Store) Stats(ctx context.Context) (map[RemuxStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT remux_status, COUNT(1) FROM remux_jobs GROUP BY remux_status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[RemuxStatus]int)
	for rows.Next() {
		var status RemuxStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

const jobColumns = "id, original_path, output_path, recording_name, recording_description, recording_created_at, recording_duration, remux_status, remux_started_at, remux_completed_at, remux_duration, plex_update_status, plex_update_completed_at, error_message, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id                   int64
		originalPath         string
		outputPath           string
		recordingName        sql.NullString
		recordingDescription sql.NullString
		recordingCreatedAt   sql.NullString
		recordingDuration    sql.NullFloat64
		remuxStatus          string
		remuxStartedRaw      sql.NullString
		remuxCompletedRaw    sql.NullString
		remuxDuration        sql.NullFloat64
		plexStatus           string
		plexCompletedRaw     sql.NullString
		errorMessage         sql.NullString
		createdRaw           string
		updatedRaw           string
	)

	if err := scanner.Scan(
		&id,
		&originalPath,
		&outputPath,
		&recordingName,
		&recordingDescription,
		&recordingCreatedAt,
		&recordingDuration,
		&remuxStatus,
		&remuxStartedRaw,
		&remuxCompletedRaw,
		&remuxDuration,
		&plexStatus,
		&plexCompletedRaw,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                   id,
		OriginalPath:         originalPath,
		OutputPath:           outputPath,
		RecordingName:        recordingName.String,
		RecordingDescription: recordingDescription.String,
		RecordingCreatedAt:   recordingCreatedAt.String,
		RecordingDuration:    recordingDuration.Float64,
		RemuxStatus:          RemuxStatus(remuxStatus),
		RemuxDuration:        remuxDuration.Float64,
		PlexStatus:           PlexStatus(plexStatus),
		ErrorMessage:         errorMessage.String,
	}
	job.RemuxStartedAt = parseNullableTime(remuxStartedRaw)
	job.RemuxCompletedAt = parseNullableTime(remuxCompletedRaw)
	job.PlexCompletedAt = parseNullableTime(plexCompletedRaw)
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
