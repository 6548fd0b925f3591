package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFrameIO()
	c.normalizeUpload()
	c.normalizeMonitor()
	c.normalizeAPI()
	c.normalizeLogging()
	c.normalizeDaemon()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WatchDir, err = expandPath(c.Paths.WatchDir); err != nil {
		return fmt.Errorf("paths.watch_dir: %w", err)
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFrameIO() {
	c.FrameIO.BaseURL = strings.TrimRight(strings.TrimSpace(c.FrameIO.BaseURL), "/")
	if c.FrameIO.BaseURL == "" {
		c.FrameIO.BaseURL = defaultBaseURL
	}
	if c.FrameIO.Token == "" {
		if value, ok := os.LookupEnv("FRAMEIO_TOKEN"); ok {
			c.FrameIO.Token = value
		}
	}
	c.FrameIO.Token = strings.TrimSpace(c.FrameIO.Token)
	c.FrameIO.AccountID = strings.TrimSpace(c.FrameIO.AccountID)
	c.FrameIO.TargetFolderID = strings.TrimSpace(c.FrameIO.TargetFolderID)
	c.FrameIO.MonitorFolderID = strings.TrimSpace(c.FrameIO.MonitorFolderID)
}

func (c *Config) normalizeUpload() {
	if c.Upload.Workers <= 0 {
		c.Upload.Workers = defaultUploadWorkers
	}
	if c.Upload.HighWaterMark <= 0 {
		c.Upload.HighWaterMark = defaultHighWaterMark
	}
	if c.Upload.DebounceSeconds <= 0 {
		c.Upload.DebounceSeconds = defaultDebounceSeconds
	}
}

func (c *Config) normalizeMonitor() {
	if c.Monitor.PollIntervalSeconds <= 0 {
		c.Monitor.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	c.Monitor.StatusFields = trimmed(c.Monitor.StatusFields)
	if len(c.Monitor.StatusFields) == 0 {
		c.Monitor.StatusFields = append([]string(nil), defaultStatusFields...)
	}
	c.Monitor.ApprovedValues = trimmed(c.Monitor.ApprovedValues)
	if len(c.Monitor.ApprovedValues) == 0 {
		c.Monitor.ApprovedValues = append([]string(nil), defaultApprovedValues...)
	}
}

func (c *Config) normalizeAPI() {
	if c.API.RequestsPerMinute <= 0 {
		c.API.RequestsPerMinute = defaultRequestsPerMinute
	}
}

func (c *Config) normalizeLogging() {
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeDaemon() {
	if c.Daemon.ShutdownGraceSeconds <= 0 {
		c.Daemon.ShutdownGraceSeconds = defaultShutdownGraceSeconds
	}
	if c.Daemon.MinFreeSpaceGiB < 0 {
		c.Daemon.MinFreeSpaceGiB = defaultMinFreeSpaceGiB
	}
}

func trimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
