// Package cmd assembles the birdnet-api2ha command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-api2ha/cmd/bridge"
	"github.com/tphakala/birdnet-api2ha/cmd/initconfig"
	"github.com/tphakala/birdnet-api2ha/cmd/inspect"
	"github.com/tphakala/birdnet-api2ha/cmd/serve"
	"github.com/tphakala/birdnet-api2ha/internal/app"
	"github.com/tphakala/birdnet-api2ha/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(appCtx *app.Context) *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:   "birdnet-api2ha",
		Short: "Home Assistant API and MQTT bridge for BirdNET-Go",
		Long: `birdnet-api2ha serves detections from a BirdNET-Go database over a small
read-only HTTP API and can publish new detections to MQTT.`,
		Version:       appCtx.Build.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to config.yaml (default $"+conf.EnvConfigPath+" or "+conf.DefaultConfigPath+")")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	initCmd := initconfig.Command(&configPath)
	rootCmd.AddCommand(
		serve.Command(appCtx),
		bridge.Command(appCtx),
		inspect.Command(appCtx),
		initCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// initconfig runs before a config exists
		if cmd.Name() == initCmd.Name() {
			return nil
		}
		return appCtx.Initialize(conf.ConfigPath(configPath), debug)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		appCtx.Close()
	}

	return rootCmd
}
