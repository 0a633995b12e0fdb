package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gigradar/gigradar/internal/log"
)

func scrapeCmd() *cobra.Command {
	var (
		envFile   string
		skipEmbed bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape-and-integrate pass",
		Long: `Fetch all sources, integrate the merged documents, and generate
embeddings for events that lack one. Use --skip-embed to leave embedding
generation to a later "gigradar embed" run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(envFile, skipEmbed)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().BoolVar(&skipEmbed, "skip-embed", false, "Skip embedding generation after integration")

	return cmd
}

func runScrape(envFile string, skipEmbed bool) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	logger := log.Configure(cfg).Slog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	docs := a.orchestrator().Scrape(ctx)
	if err := a.integrator.ProcessAll(ctx, docs); err != nil {
		return err
	}

	if !skipEmbed && cfg.Embedding().IsConfigured() {
		if err := a.worker.Run(ctx); err != nil {
			return err
		}
	}

	report, err := a.status.Collect(ctx)
	if err != nil {
		return err
	}
	logger.Info("scrape run complete",
		"total_events", report.TotalEvents,
		"total_artists", report.TotalArtists,
		"total_tags", report.TotalTags,
		"total_venues", report.TotalVenues,
		"pending_embeddings", report.PendingEmbeddings,
	)

	// Make interrupted runs exit non-zero.
	return ctx.Err()
}
