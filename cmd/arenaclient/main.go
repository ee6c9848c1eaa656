package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "arenaclient",
		Short: "Headless client for the arena shooter",
		Long: `arenaclient connects to an arena server as a headless player.

It keeps the session across restarts, reconnects with exponential
backoff and can drive a simple bot for load and soak testing.

Settings come from arenaclient.yaml and ARENA_* environment variables,
for example ARENA_SERVER_URL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default ./arenaclient.yaml)")

	rootCmd.AddCommand(
		runCmd(&configFile),
		sessionCmd(&configFile),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
