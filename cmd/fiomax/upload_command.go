package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/LukeVan/frame-io-max-activation/internal/frameio"
	"github.com/LukeVan/frame-io-max-activation/internal/logging"
	"github.com/LukeVan/frame-io-max-activation/internal/notifications"
	"github.com/LukeVan/frame-io-max-activation/internal/ratelimit"
	"github.com/LukeVan/frame-io-max-activation/internal/state"
	"github.com/LukeVan/frame-io-max-activation/internal/uploader"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a single file to the target folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			sourcePath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := state.Open(cfg.StatePath())
			if err != nil {
				return fmt.Errorf("open state store: %w", err)
			}
			defer store.Close()

			up, err := uploader.New(uploader.Options{
				Client:          frameio.NewREST(cfg),
				Limiter:         ratelimit.New(cfg.API.RequestsPerMinute),
				Store:           store,
				Notifier:        notifications.NewService(cfg),
				Logger:          logger,
				TargetFolderID:  cfg.FrameIO.TargetFolderID,
				ExtractMetadata: cfg.Upload.ExtractMetadata,
				Mappings:        cfg.Metadata.Mappings,
			})
			if err != nil {
				return err
			}

			if err := up.Upload(cmd.Context(), sourcePath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s\n", filepath.Base(sourcePath))
			return nil
		},
	}
}
