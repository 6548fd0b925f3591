package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/LukeVan/frame-io-max-activation/internal/ipc"
	"github.com/LukeVan/frame-io-max-activation/internal/state"
)

func newStateCommand(ctx *commandContext) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and manage the tracked-asset state store",
	}

	stateCmd.AddCommand(newStateListCommand(ctx))
	stateCmd.AddCommand(newStateResetCommand(ctx))

	return stateCmd
}

func newStateListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked remote assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			assets, err := fetchTrackedAssets(ctx)
			if err != nil {
				return err
			}
			if len(assets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tracked assets")
				return nil
			}

			rows := make([][]string, 0, len(assets))
			for _, asset := range assets {
				downloadedAt := ""
				if asset.DownloadedAt != nil {
					downloadedAt = asset.DownloadedAt.Local().Format(time.RFC3339)
				}
				rows = append(rows, []string{
					asset.AssetID,
					asset.Name,
					asset.LastStatus,
					yesNo(asset.Downloaded),
					downloadedAt,
					asset.LastSeenAt.Local().Format(time.RFC3339),
				})
			}

			out := renderTable(
				[]string{"Asset ID", "Name", "Status", "Downloaded", "Downloaded At", "Last Seen"},
				rows,
			)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

// fetchTrackedAssets prefers the daemon's view over IPC and falls back to
// opening the state database directly when no daemon is running.
func fetchTrackedAssets(ctx *commandContext) ([]ipc.TrackedAsset, error) {
	if client, err := ctx.dialClient(); err == nil {
		defer client.Close()
		resp, err := client.StateList()
		if err != nil {
			return nil, err
		}
		return resp.Assets, nil
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := state.Open(cfg.StatePath())
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()

	records, err := store.ListAssets(context.Background())
	if err != nil {
		return nil, err
	}
	assets := make([]ipc.TrackedAsset, 0, len(records))
	for _, record := range records {
		assets = append(assets, ipc.TrackedAsset{
			AssetID:      record.AssetID,
			Name:         record.Name,
			LastStatus:   record.LastStatus,
			Downloaded:   record.Downloaded,
			DownloadedAt: record.DownloadedAt,
			LastSeenAt:   record.LastSeenAt,
		})
	}
	return assets, nil
}

func newStateResetCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear all tracked assets and upload history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("state reset discards all tracked assets and upload history; re-run with --force to confirm")
			}
			if client, err := ctx.dialClient(); err == nil {
				client.Close()
				return fmt.Errorf("the daemon is running; stop it before resetting state")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := state.Open(cfg.StatePath())
			if err != nil {
				return fmt.Errorf("open state store: %w", err)
			}
			defer store.Close()

			if err := store.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "State store reset")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm destructive reset")
	return cmd
}
