package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/LukeVan/frame-io-max-activation/internal/ipc"
)

func newRateLimitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rate-limit [requests-per-minute]",
		Short: "Show or change the daemon's API request budget",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rpm := 0
			if len(args) == 1 {
				parsed, err := strconv.Atoi(args[0])
				if err != nil || parsed < 1 {
					return fmt.Errorf("requests-per-minute must be a positive integer, got %q", args[0])
				}
				rpm = parsed
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RateLimit(rpm)
				if err != nil {
					return err
				}
				if rpm > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Rate limit set to %d requests/minute (applies at the next window)\n", resp.RequestsPerMinute)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Rate limit: %d requests/minute\n", resp.RequestsPerMinute)
				}
				return nil
			})
		},
	}
}
