package queue

// Schema changes bump schemaVersion; the table is created on first open and
// a version mismatch fails fast rather than guessing at a migration.
const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS remux_jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    original_path TEXT NOT NULL UNIQUE,
    output_path TEXT NOT NULL,
    recording_name TEXT,
    recording_description TEXT,
    recording_created_at TEXT,
    recording_duration REAL NOT NULL DEFAULT 0,
    remux_status TEXT NOT NULL,
    remux_started_at TEXT,
    remux_completed_at TEXT,
    remux_duration REAL NOT NULL DEFAULT 0,
    plex_update_status TEXT NOT NULL,
    plex_update_completed_at TEXT,
    error_message TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_remux_jobs_remux_status ON remux_jobs(remux_status);

CREATE TABLE IF NOT EXISTS schema_info (
    version INTEGER NOT NULL
);
`
