package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gigradar/gigradar/application/service"
	"github.com/gigradar/gigradar/infrastructure/persistence"
	"github.com/gigradar/gigradar/infrastructure/places"
	"github.com/gigradar/gigradar/infrastructure/provider"
	"github.com/gigradar/gigradar/infrastructure/scraper"
	"github.com/gigradar/gigradar/internal/config"
	"github.com/gigradar/gigradar/internal/database"
)

// app wires the pipeline components from configuration. DB unreachable at
// startup is the one fatal condition on this path.
type app struct {
	cfg    config.AppConfig
	db     database.Database
	logger *slog.Logger

	events  persistence.EventStore
	venues  persistence.VenueStore
	artists *persistence.ArtistRegistry
	tags    *persistence.TagRegistry
	linker  *persistence.Linker

	enricher   *places.Enricher
	embedder   provider.Embedder
	integrator *service.Integrator
	worker     *service.EmbeddingWorker
	similarity *service.Similarity
	status     *service.Status
}

func newApp(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*app, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}

	db, err := database.New(ctx, cfg.DBURL())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	// adapters + integrator + embedding worker + read path.
	if err := db.ConfigurePool(cfg.Scrape().Parallelism()+3, 2, 0); err != nil {
		return nil, err
	}

	if err := persistence.Migrate(db, cfg.Embedding().Dimensions()); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	a := &app{
		cfg:     cfg,
		db:      db,
		logger:  logger,
		events:  persistence.NewEventStore(db, cfg.Embedding().Dimensions()),
		venues:  persistence.NewVenueStore(db),
		artists: persistence.NewArtistRegistry(db, logger),
		tags:    persistence.NewTagRegistry(db, logger),
		linker:  persistence.NewLinker(logger),
	}

	if cfg.Places().Enabled() && cfg.Places().APIKey() != "" {
		client := places.NewClient(cfg.Places().APIKey(), logger)
		guard := places.NewGuard(cfg.Resilience(), cfg.Places().RateDelay(), logger)
		a.enricher = places.NewEnricher(client, a.venues, guard, cfg.Places(), logger)
	}

	a.embedder = provider.NewOpenAIEmbedder(provider.OpenAIConfig{
		APIKey:     cfg.Embedding().APIKey(),
		BaseURL:    cfg.Embedding().BaseURL(),
		Model:      cfg.Embedding().Model(),
		Dimensions: cfg.Embedding().Dimensions(),
	})

	var resolver service.VenueResolver
	if a.enricher != nil {
		resolver = a.enricher
	}
	a.integrator = service.NewIntegrator(db, a.events, a.artists, a.tags, a.linker, resolver, cfg.Integrator(), logger)
	a.worker = service.NewEmbeddingWorker(a.events, a.embedder, cfg.Embedding(), logger)
	a.similarity = service.NewSimilarity(a.events, a.embedder, cfg.Resilience(), logger)
	a.status = service.NewStatus(a.events, a.artists, a.tags, a.venues, a.linker, a.integrator, a.enricher)

	return a, nil
}

func (a *app) close() {
	if a.enricher != nil {
		a.enricher.Stop()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}
}

// orchestrator builds the scraper orchestrator over all registered
// sources.
func (a *app) orchestrator() *scraper.Orchestrator {
	cap := a.cfg.Scrape().CapPerSource()
	return scraper.NewOrchestrator(a.cfg.Scrape(), a.logger,
		scraper.NewEbilet(cap, a.logger),
		scraper.NewGoingApp(cap, a.logger),
	)
}
