// Package main is the entry point for the gigradar CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gigradar/gigradar/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gigradar",
		Short: "Gigradar event aggregation server",
		Long:  `Gigradar harvests event listings from third-party portals, enriches venues, embeds events and serves semantic recommendations.`,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(scrapeCmd())
	cmd.AddCommand(embedCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from a .env file and environment
// variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
