package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LukeVan/frame-io-max-activation/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set token, account_id, and at least one folder id before running fiomax.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Show the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if flag := cmd.Flags().Lookup("config"); flag != nil {
				path = flag.Value.String()
			}
			cfg, resolvedPath, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolvedPath)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults shown")
			}

			rows := [][]string{
				{"paths.watch_dir", cfg.Paths.WatchDir},
				{"paths.download_dir", cfg.Paths.DownloadDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"frameio.base_url", cfg.FrameIO.BaseURL},
				{"frameio.token", redact(cfg.FrameIO.Token)},
				{"frameio.account_id", cfg.FrameIO.AccountID},
				{"frameio.target_folder_id", cfg.FrameIO.TargetFolderID},
				{"frameio.monitor_folder_id", cfg.FrameIO.MonitorFolderID},
				{"upload.workers", strconv.Itoa(cfg.Upload.Workers)},
				{"upload.extract_metadata", yesNo(cfg.Upload.ExtractMetadata)},
				{"upload.high_water_mark", strconv.Itoa(cfg.Upload.HighWaterMark)},
				{"upload.debounce_seconds", strconv.Itoa(cfg.Upload.DebounceSeconds)},
				{"monitor.poll_interval_seconds", strconv.Itoa(cfg.Monitor.PollIntervalSeconds)},
				{"monitor.status_fields", strings.Join(cfg.Monitor.StatusFields, ", ")},
				{"monitor.approved_values", strings.Join(cfg.Monitor.ApprovedValues, ", ")},
				{"api.requests_per_minute", strconv.Itoa(cfg.API.RequestsPerMinute)},
				{"notifications.ntfy_topic", cfg.Notifications.NtfyTopic},
				{"logging.format", cfg.Logging.Format},
				{"logging.level", cfg.Logging.Level},
				{"daemon.shutdown_grace_seconds", strconv.Itoa(cfg.Daemon.ShutdownGraceSeconds)},
				{"daemon.min_free_space_gib", strconv.Itoa(cfg.Daemon.MinFreeSpaceGiB)},
			}
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, rows))
			return nil
		},
	}
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "[set]"
}
