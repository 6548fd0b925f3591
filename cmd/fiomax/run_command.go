package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/LukeVan/frame-io-max-activation/internal/daemon"
	"github.com/LukeVan/frame-io-max-activation/internal/logging"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the fiomax daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			level := cfg.Logging.Level
			if logLevel != "" {
				level = logLevel
			}
			logPath := filepath.Join(cfg.Paths.LogDir, "fiomax.log")
			logger, err := logging.New(logging.Options{
				Level:       level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stdout", logPath},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			logger = logger.With(logging.String("run_id", uuid.NewString()))

			d, err := daemon.New(signalCtx, daemon.Options{Config: cfg, Logger: logger})
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Start(signalCtx); err != nil {
				return err
			}

			d.Wait()
			d.Stop()
			return d.Err()
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}
