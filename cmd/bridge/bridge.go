// Package bridge provides the bridge command
package bridge

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-api2ha/internal/app"
)

// Command creates the bridge command, which runs the MQTT bridge without
// the HTTP API.
func Command(appCtx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "bridge",
		Short: "Publish new detections to MQTT",
		Long:  `Polls the database for detections newer than those present at start-up and publishes each one to the configured MQTT topic.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			repo, err := appCtx.Repository()
			if err != nil {
				return err
			}
			b, err := appCtx.Bridge(repo)
			if err != nil {
				return err
			}
			return b.Run(ctx)
		},
	}
}
