// Package serve provides the serve command
package serve

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/birdnet-api2ha/internal/app"
	"github.com/tphakala/birdnet-api2ha/internal/bridge"
	"github.com/tphakala/birdnet-api2ha/internal/logger"
)

// Command creates the serve command.
func Command(appCtx *app.Context) *cobra.Command {
	var withMQTT bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the detection API",
		Long: `Starts the HTTP API (/health, /api/detections, /api/stats, /api/audio).
With --mqtt, or mqtt.enabled in the configuration, new detections are also
published to the MQTT broker.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, appCtx, withMQTT || appCtx.Settings.MQTT.Enabled)
		},
	}

	cmd.Flags().BoolVar(&withMQTT, "mqtt", false, "Also run the MQTT bridge")
	return cmd
}

func run(ctx context.Context, appCtx *app.Context, withMQTT bool) error {
	log := appCtx.Logger("serve")

	repo, err := appCtx.Repository()
	if err != nil {
		return err
	}
	server, cleanup, err := appCtx.Server(repo)
	if err != nil {
		return err
	}
	defer cleanup()

	var b *bridge.Bridge
	if withMQTT {
		// A bridge that cannot be built is logged; the API still serves.
		if b, err = appCtx.Bridge(repo); err != nil {
			log.Error("MQTT bridge disabled", logger.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})

	if b != nil {
		g.Go(func() error {
			if err := b.Run(gctx); err != nil {
				log.Error("MQTT bridge stopped", logger.Error(err))
			}
			return nil
		})
	}

	return g.Wait()
}
