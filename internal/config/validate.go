package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFrameIO(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.WatchDir == "" {
		return errors.New("paths.watch_dir must be set")
	}
	if c.Paths.DownloadDir == "" {
		return errors.New("paths.download_dir must be set")
	}
	if c.Paths.WatchDir == c.Paths.DownloadDir {
		return errors.New("paths.watch_dir and paths.download_dir must differ")
	}
	return nil
}

func (c *Config) validateFrameIO() error {
	if c.FrameIO.Token == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/fiomax/config.toml"
		}
		return fmt.Errorf("frameio.token is required. Set FRAMEIO_TOKEN env var or edit %s (create with 'fiomax config init')", defaultPath)
	}
	if c.FrameIO.AccountID == "" {
		return errors.New("frameio.account_id must be set")
	}
	if c.FrameIO.TargetFolderID == "" && c.FrameIO.MonitorFolderID == "" {
		return errors.New("at least one of frameio.target_folder_id or frameio.monitor_folder_id must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
