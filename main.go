package main

import (
	"fmt"
	"os"

	"github.com/tphakala/birdnet-api2ha/cmd"
	"github.com/tphakala/birdnet-api2ha/internal/app"
	"github.com/tphakala/birdnet-api2ha/internal/buildinfo"
)

// version and buildDate are set with -ldflags at build time.
var (
	version   string
	buildDate string
)

func main() {
	appCtx := app.NewContext(buildinfo.NewContext(version, buildDate))

	rootCmd := cmd.RootCommand(appCtx)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
