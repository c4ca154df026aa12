package config

const (
	defaultWatchDir         = "/recordings"
	defaultDestinationDir   = "/remux"
	defaultSnapshotDir      = "/data"
	defaultSnapshotFile     = "db.json"
	defaultJobStoreFile     = "remux.db"
	defaultPlexFolder       = "/media/videos/uhf-server"
	defaultScanInterval     = 5
	defaultMaxJobs          = 2
	defaultUID              = 1000
	defaultGID              = 1000
	defaultThresholdPercent = 30
	defaultScanWaitAttempts = 30
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir:       defaultWatchDir,
			DestinationDir: defaultDestinationDir,
			SnapshotDir:    defaultSnapshotDir,
			SnapshotFile:   defaultSnapshotFile,
			JobStoreFile:   defaultJobStoreFile,
			PlexFolder:     defaultPlexFolder,
		},
		Remux: Remux{
			ScanInterval:     defaultScanInterval,
			MaxJobs:          defaultMaxJobs,
			UID:              defaultUID,
			GID:              defaultGID,
			ThresholdPercent: defaultThresholdPercent,
			IncludeCancelled: true,
		},
		Plex: Plex{
			ScanWaitAttempts: defaultScanWaitAttempts,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
