package config

import "time"

const (
	defaultWatchDir    = "~/fiomax/hotfolder"
	defaultDownloadDir = "~/fiomax/approved"
	defaultLogDir      = "~/.local/share/fiomax/logs"

	defaultBaseURL = "https://api.frame.io/v4"

	defaultUploadWorkers   = 5
	defaultHighWaterMark   = 100
	defaultDebounceSeconds = 2

	defaultPollIntervalSeconds = 60
	defaultRequestsPerMinute   = 10

	defaultNtfyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultShutdownGraceSeconds = 30
	defaultMinFreeSpaceGiB      = 1
)

var (
	defaultStatusFields   = []string{"Status"}
	defaultApprovedValues = []string{"Approved", "Final", "Ready", "Complete"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir:    defaultWatchDir,
			DownloadDir: defaultDownloadDir,
			LogDir:      defaultLogDir,
		},
		FrameIO: FrameIO{
			BaseURL: defaultBaseURL,
		},
		Upload: Upload{
			Workers:         defaultUploadWorkers,
			HighWaterMark:   defaultHighWaterMark,
			DebounceSeconds: defaultDebounceSeconds,
		},
		Monitor: Monitor{
			PollIntervalSeconds: defaultPollIntervalSeconds,
			StatusFields:        append([]string(nil), defaultStatusFields...),
			ApprovedValues:      append([]string(nil), defaultApprovedValues...),
		},
		API: API{
			RequestsPerMinute: defaultRequestsPerMinute,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Daemon: Daemon{
			ShutdownGraceSeconds: defaultShutdownGraceSeconds,
			MinFreeSpaceGiB:      defaultMinFreeSpaceGiB,
		},
	}
}

// DebounceWindow returns the hot-folder debounce window as a duration.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Upload.DebounceSeconds) * time.Second
}

// PollInterval returns the approval poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Monitor.PollIntervalSeconds) * time.Second
}

// ShutdownGrace returns the worker drain grace period as a duration.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Daemon.ShutdownGraceSeconds) * time.Second
}
