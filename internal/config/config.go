package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file-name configuration.
type Paths struct {
	// WatchDir is scanned for finished .ts recordings.
	WatchDir string `toml:"watch_dir"`
	// DestinationDir receives remuxed .mkv output, one folder per recording.
	DestinationDir string `toml:"destination_dir"`
	// SnapshotDir holds the recorder's read-only snapshot document.
	SnapshotDir string `toml:"snapshot_dir"`
	// SnapshotFile is the snapshot document name inside SnapshotDir.
	SnapshotFile string `toml:"snapshot_file"`
	// JobStoreFile is the SQLite job ledger name inside DestinationDir.
	JobStoreFile string `toml:"job_store_file"`
	// PlexFolder is the path prefix under which the Plex server sees
	// DestinationDir. Refresh requests are issued against this mapping.
	PlexFolder string `toml:"plex_folder"`
}

// Remux contains scheduling and execution settings for the remux pipeline.
type Remux struct {
	// ScanInterval gates the discovery loop: a scan only runs when the
	// current wall-clock minute is a multiple of this value and the value
	// is one of the supported intervals.
	ScanInterval int `toml:"scan_interval"`
	// MaxJobs caps concurrently running ffmpeg processes.
	MaxJobs int `toml:"max_jobs"`
	// UID and GID are applied to remuxed files and their parent folders.
	UID int `toml:"uid"`
	GID int `toml:"gid"`
	// ThresholdPercent is the minimum remuxed/recorded duration ratio, in
	// percent, below which library sync is skipped.
	ThresholdPercent int `toml:"threshold_percent"`
	// IncludeCancelled admits recordings the recorder marked cancelled.
	IncludeCancelled bool `toml:"include_cancelled"`
}

// Plex contains configuration for the Plex Media Server integration.
type Plex struct {
	URL     string `toml:"url"`
	Token   string `toml:"token"`
	Library string `toml:"library"`
	// ScanWaitAttempts bounds the scan-status poll loop (one poll every 2s).
	ScanWaitAttempts int `toml:"scan_wait_attempts"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for uhfremux.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Remux   Remux   `toml:"remux"`
	Plex    Plex    `toml:"plex"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/uhfremux/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. Environment
// variables exported by the recorder's container images override file values.
// The returned config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("uhfremux.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// applyEnvOverrides maps the environment surface of the recorder deployments
// onto the config struct. Unset variables leave file/default values alone.
func (c *Config) applyEnvOverrides() error {
	stringVars := map[string]*string{
		"WATCH_FOLDER":       &c.Paths.WatchDir,
		"DESTINATION_FOLDER": &c.Paths.DestinationDir,
		"DB_PATH":            &c.Paths.SnapshotDir,
		"DB_FILE":            &c.Paths.SnapshotFile,
		"REMUX_FILE":         &c.Paths.JobStoreFile,
		"PLEX_FOLDER":        &c.Paths.PlexFolder,
		"PLEX_URL":           &c.Plex.URL,
		"PLEX_TOKEN":         &c.Plex.Token,
		"PLEX_LIBRARY":       &c.Plex.Library,
		"LOG_FORMAT":         &c.Logging.Format,
		"LOG_LEVEL":          &c.Logging.Level,
	}
	for name, target := range stringVars {
		if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
		}
	}

	intVars := map[string]*int{
		"INTERVAL":        &c.Remux.ScanInterval,
		"MAX_JOBS":        &c.Remux.MaxJobs,
		"PUID":            &c.Remux.UID,
		"PGID":            &c.Remux.GID,
		"THRESHOLD":       &c.Remux.ThresholdPercent,
		"PLEX_SCAN_COUNT": &c.Plex.ScanWaitAttempts,
	}
	for name, target := range intVars {
		value, ok := os.LookupEnv(name)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("environment variable %s: %w", name, err)
		}
		*target = parsed
	}

	if value, ok := os.LookupEnv("INCLUDE_CANCELLED"); ok && strings.TrimSpace(value) != "" {
		c.Remux.IncludeCancelled = parseBool(value)
	}

	return nil
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y":
		return true
	default:
		return false
	}
}

func (c *Config) normalize() error {
	for _, field := range []*string{
		&c.Paths.WatchDir,
		&c.Paths.DestinationDir,
		&c.Paths.SnapshotDir,
		&c.Paths.PlexFolder,
	} {
		if strings.TrimSpace(*field) == "" {
			continue
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	c.Plex.URL = strings.TrimRight(strings.TrimSpace(c.Plex.URL), "/")
	return nil
}

// SnapshotPath returns the absolute path of the recorder snapshot document.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.Paths.SnapshotDir, c.Paths.SnapshotFile)
}

// JobStorePath returns the absolute path of the SQLite job ledger.
func (c *Config) JobStorePath() string {
	return filepath.Join(c.Paths.DestinationDir, c.Paths.JobStoreFile)
}

// PlexConfigured reports whether all settings required for library sync are present.
func (c *Config) PlexConfigured() bool {
	return c.Plex.URL != "" && c.Plex.Token != "" && c.Plex.Library != ""
}

// EnsureDirectories creates the destination directory required for operation.
// The watch directory is produced by the recorder and is not created here.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.DestinationDir, 0o755); err != nil {
		return fmt.Errorf("create destination directory %q: %w", c.Paths.DestinationDir, err)
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for remuxing.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
