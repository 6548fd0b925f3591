package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/LukeVan/frame-io-max-activation/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}

				rows := [][]string{
					{"Running", yesNo(resp.Running)},
					{"PID", strconv.Itoa(resp.PID)},
					{"Started", resp.StartedAt.Local().Format(time.RFC1123)},
					{"Uptime", formatUptime(time.Since(resp.StartedAt))},
					{"Watch dir", resp.WatchDir},
					{"Download dir", resp.DownloadDir},
					{"Upload queue depth", strconv.Itoa(resp.QueueDepth)},
					{"In-flight downloads", strconv.Itoa(resp.InflightDownloads)},
					{"Tracked assets", strconv.FormatInt(resp.TrackedAssets, 10)},
					{"Downloaded assets", strconv.FormatInt(resp.DownloadedAssets, 10)},
					{"API requests/min", strconv.Itoa(resp.RequestsPerMinute)},
					{"State database", resp.StateDBPath},
					{"Lock file", resp.LockPath},
				}
				if resp.LastError != "" {
					rows = append(rows, []string{"Last error", resp.LastError})
				}

				out := renderTable([]string{"Field", "Value"}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}

func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Truncate(time.Second).String()
}
