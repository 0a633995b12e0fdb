package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gigradar/gigradar/internal/log"
)

func embedCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Generate embeddings for events without one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmbed(envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

func runEmbed(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	if !cfg.Embedding().IsConfigured() {
		return fmt.Errorf("embedding provider not configured: set EMBEDDING_API_KEY and EMBEDDING_MODEL")
	}

	logger := log.Configure(cfg).Slog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	return a.worker.Run(ctx)
}
