package scraper

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/gigradar/gigradar/domain/event"
	"github.com/gigradar/gigradar/internal/config"
)

// Orchestrator runs every registered source concurrently and merges their
// outputs. One source failing never affects the others.
type Orchestrator struct {
	sources []Source
	cfg     config.ScrapeConfig
	logger  *slog.Logger
}

// NewOrchestrator creates an Orchestrator over the given sources.
func NewOrchestrator(cfg config.ScrapeConfig, logger *slog.Logger, sources ...Source) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sources: sources,
		cfg:     cfg,
		logger:  logger,
	}
}

// Scrape fetches and maps all sources on a bounded worker pool, waits for
// every source to finish, and merges the results. Duplicate canonical URLs
// are dropped first-write-wins under a deterministic merge: sources are
// merged in registration order, documents in fetch order. The global
// record cap bounds the merged output.
func (o *Orchestrator) Scrape(ctx context.Context) []event.Document {
	perSource := make([][]event.Document, len(o.sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Parallelism())

	for i, source := range o.sources {
		g.Go(func() error {
			perSource[i] = o.scrapeSource(gctx, source)
			// Source errors are reported, never propagated: returning nil
			// keeps the group running for the remaining sources.
			return nil
		})
	}
	_ = g.Wait()

	globalCap := o.cfg.CapPerSource() * len(o.sources)
	seen := make(map[string]struct{})
	var merged []event.Document
	for _, docs := range perSource {
		for _, doc := range docs {
			if len(merged) >= globalCap {
				o.logger.Warn("global record cap reached", "cap", globalCap)
				return merged
			}
			if doc.URL == "" {
				continue
			}
			if _, ok := seen[doc.URL]; ok {
				continue
			}
			seen[doc.URL] = struct{}{}
			merged = append(merged, doc)
		}
	}

	o.logger.Info("scrape finished",
		"sources", len(o.sources),
		"events", len(merged),
	)
	return merged
}

func (o *Orchestrator) scrapeSource(ctx context.Context, source Source) []event.Document {
	raws, err := source.Fetch(ctx)
	if err != nil {
		o.logger.Error("source fetch failed",
			"source", source.Name(),
			"records", len(raws),
			"error", err,
		)
	}
	if len(raws) == 0 {
		o.logger.Warn("source returned no records", "source", source.Name())
		return nil
	}

	docs := make([]event.Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := source.Map(raw)
		if err != nil {
			o.logger.Error("source mapping failed",
				"source", source.Name(),
				"error", err,
			)
			continue
		}
		docs = append(docs, doc)
	}

	o.logger.Info("source finished",
		"source", source.Name(),
		"fetched", len(raws),
		"mapped", len(docs),
	)
	return docs
}
