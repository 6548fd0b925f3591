package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directory configuration.
type Paths struct {
	WatchDir    string `toml:"watch_dir"`
	DownloadDir string `toml:"download_dir"`
	LogDir      string `toml:"log_dir"`
}

// FrameIO contains connection and folder targeting for the remote service.
type FrameIO struct {
	BaseURL         string `toml:"base_url"`
	Token           string `toml:"token"`
	AccountID       string `toml:"account_id"`
	TargetFolderID  string `toml:"target_folder_id"`
	MonitorFolderID string `toml:"monitor_folder_id"`
}

// Upload contains worker-pool and hot-folder tuning.
type Upload struct {
	Workers         int  `toml:"workers"`
	ExtractMetadata bool `toml:"extract_metadata"`
	HighWaterMark   int  `toml:"high_water_mark"`
	DebounceSeconds int  `toml:"debounce_seconds"`
}

// Monitor contains approval-polling configuration.
type Monitor struct {
	PollIntervalSeconds int      `toml:"poll_interval_seconds"`
	StatusFields        []string `toml:"status_fields"`
	ApprovedValues      []string `toml:"approved_values"`
}

// API contains outbound request throttling.
type API struct {
	RequestsPerMinute int `toml:"requests_per_minute"`
}

// Metadata maps local extraction tokens to remote field definition ids.
type Metadata struct {
	Mappings map[string]string `toml:"mappings"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Daemon contains runtime behavior settings.
type Daemon struct {
	ShutdownGraceSeconds int `toml:"shutdown_grace_seconds"`
	MinFreeSpaceGiB      int `toml:"min_free_space_gib"`
}

// Config encapsulates all configuration values for the daemon and CLI.
//
// Sections by subsystem:
//   - Paths: watched hot folder, download destination, log directory
//   - FrameIO: remote endpoint, credentials, folder ids
//   - Upload: worker count, debounce window, metadata extraction toggle
//   - Monitor: poll interval and approval predicate inputs
//   - API: shared requests-per-minute ceiling
//   - Metadata: extraction token to field definition id mappings
//   - Notifications: ntfy topic and timeout
//   - Logging: format and level
//   - Daemon: shutdown grace period and free-space floor
type Config struct {
	Paths         Paths         `toml:"paths"`
	FrameIO       FrameIO       `toml:"frameio"`
	Upload        Upload        `toml:"upload"`
	Monitor       Monitor       `toml:"monitor"`
	API           API           `toml:"api"`
	Metadata      Metadata      `toml:"metadata"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Daemon        Daemon        `toml:"daemon"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/fiomax/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the embedded sample configuration to path, creating
// parent directories as needed.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath expands a leading ~ and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return value
// is the resolved path; the third reports whether the file existed.
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
		if _, err := os.Stat(expanded); err != nil {
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
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WatchDir, c.Paths.DownloadDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StatePath returns the location of the monitor state database.
func (c *Config) StatePath() string {
	return filepath.Join(c.Paths.LogDir, "state.db")
}

// SocketPath returns the location of the daemon control socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "fiomax.sock")
}
