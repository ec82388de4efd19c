// Package initconfig provides the initconfig command
package initconfig

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-api2ha/internal/conf"
)

// Command creates the initconfig command. configPath points at the root
// --config flag value.
func Command(configPath *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "initconfig",
		Short: "Write an example configuration file",
		Long:  `Writes the bundled example config.yaml to the --config path. An existing file is kept unless --force is given.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := conf.ConfigPath(*configPath)
			if err := conf.WriteExampleConfig(path, force); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote example configuration to %s\n", path)
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}
