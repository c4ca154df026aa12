package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRemux(); err != nil {
		return err
	}
	if err := c.validatePlex(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	required := map[string]string{
		"paths.watch_dir (WATCH_FOLDER)":             c.Paths.WatchDir,
		"paths.destination_dir (DESTINATION_FOLDER)": c.Paths.DestinationDir,
		"paths.snapshot_dir (DB_PATH)":               c.Paths.SnapshotDir,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", name)
		}
	}
	if strings.TrimSpace(c.Paths.SnapshotFile) == "" {
		return errors.New("paths.snapshot_file must be set")
	}
	if strings.TrimSpace(c.Paths.JobStoreFile) == "" {
		return errors.New("paths.job_store_file must be set")
	}
	return nil
}

func (c *Config) validateRemux() error {
	if c.Remux.ScanInterval <= 0 {
		return errors.New("remux.scan_interval must be positive")
	}
	if c.Remux.MaxJobs <= 0 {
		return errors.New("remux.max_jobs must be positive")
	}
	if c.Remux.ThresholdPercent < 0 || c.Remux.ThresholdPercent > 100 {
		return errors.New("remux.threshold_percent must be between 0 and 100")
	}
	return nil
}

func (c *Config) validatePlex() error {
	if c.Plex.ScanWaitAttempts <= 0 {
		return errors.New("plex.scan_wait_attempts must be positive")
	}
	// Partial Plex settings disable the integration rather than failing
	// startup; the daemon logs the degradation at boot.
	return nil
}
