// Package service orchestrates the ingestion and recommendation pipeline.
package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/gigradar/gigradar/domain/event"
	"github.com/gigradar/gigradar/domain/venue"
	"github.com/gigradar/gigradar/infrastructure/persistence"
	"github.com/gigradar/gigradar/internal/config"
	"github.com/gigradar/gigradar/internal/database"
)

// VenueResolver resolves a scraped venue name into a persisted venue. A
// nil venue with nil error means the event carries no venue reference.
type VenueResolver interface {
	ResolveVenue(ctx context.Context, scrapedName, locationHint string) (*venue.Venue, error)
}

// IntegratorStats is a snapshot of integrator counters.
type IntegratorStats struct {
	Inserted       int64
	Updated        int64
	Skipped        int64
	Errors         int64
	DatesDefaulted int64
	VenueDegraded  int64
	SeenURLs       int
	PendingDocs    int
}

// Integrator materializes normalized documents as events with their
// relationships. Documents are processed in chunked transactions; a
// document failing never poisons its chunk, and a chunk failing never
// aborts the run.
type Integrator struct {
	db       database.Database
	events   persistence.EventStore
	artists  *persistence.ArtistRegistry
	tags     *persistence.TagRegistry
	linker   *persistence.Linker
	enricher VenueResolver
	cfg      config.IntegratorConfig
	logger   *slog.Logger

	// seen holds every URL known to exist in the store (primed once per
	// run, extended on insert); processed holds URLs handled this run.
	seenMu    sync.RWMutex
	seen      map[string]struct{}
	processed map[string]struct{}
	primed    bool

	pendingMu sync.Mutex
	pending   []event.Document
	offset    int

	tickActive atomic.Bool
	cancelTick context.CancelFunc
	wg         sync.WaitGroup
	tickMu     sync.Mutex

	inserted       atomic.Int64
	updated        atomic.Int64
	skipped        atomic.Int64
	errors         atomic.Int64
	datesDefaulted atomic.Int64
	venueDegraded  atomic.Int64
}

// NewIntegrator creates an Integrator. enricher may be nil when venue
// enrichment is disabled.
func NewIntegrator(
	db database.Database,
	events persistence.EventStore,
	artists *persistence.ArtistRegistry,
	tags *persistence.TagRegistry,
	linker *persistence.Linker,
	enricher VenueResolver,
	cfg config.IntegratorConfig,
	logger *slog.Logger,
) *Integrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Integrator{
		db:       db,
		events:   events,
		artists:  artists,
		tags:     tags,
		linker:   linker,
		enricher: enricher,
		cfg:       cfg,
		logger:    logger,
		seen:      make(map[string]struct{}),
		processed: make(map[string]struct{}),
	}
}

// ProcessAll integrates every document synchronously, chunk by chunk.
// Used by the one-shot scrape command.
func (i *Integrator) ProcessAll(ctx context.Context, docs []event.Document) error {
	if len(docs) == 0 {
		i.logger.Info("no documents to integrate")
		return nil
	}
	if err := i.primeSeen(ctx); err != nil {
		return err
	}

	i.processRange(ctx, docs)

	stats := i.Stats()
	i.logger.Info("integration finished",
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
		"dates_defaulted", stats.DatesDefaulted,
	)
	return nil
}

// ProcessBatch queues documents for integration, runs the first batch
// immediately, and leaves the remainder to the periodic tick so large
// scrapes do not monopolize the database.
func (i *Integrator) ProcessBatch(ctx context.Context, docs []event.Document) error {
	if len(docs) == 0 {
		i.logger.Info("no documents to integrate")
		return nil
	}
	if err := i.primeSeen(ctx); err != nil {
		return err
	}

	i.pendingMu.Lock()
	i.pending = append([]event.Document(nil), docs...)
	i.offset = 0
	i.pendingMu.Unlock()

	i.logger.Info("queued documents for integration", "count", len(docs))
	i.tick(ctx)
	return nil
}

// Start launches the periodic tick that drains queued documents.
func (i *Integrator) Start(ctx context.Context) {
	i.tickMu.Lock()
	defer i.tickMu.Unlock()

	ctx, i.cancelTick = context.WithCancel(ctx)
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		ticker := time.NewTicker(i.cfg.Tick())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				i.tick(ctx)
			}
		}
	}()
}

// Stop cancels the tick loop and waits for it to finish. The chunk in
// flight finishes or rolls back; no new chunk starts.
func (i *Integrator) Stop() {
	i.tickMu.Lock()
	cancel := i.cancelTick
	i.cancelTick = nil
	i.tickMu.Unlock()

	if cancel != nil {
		cancel()
	}
	i.wg.Wait()
}

// tick drains one batch of queued documents. The CAS guard makes ticks
// non-reentrant: an overlapping tick returns immediately.
func (i *Integrator) tick(ctx context.Context) {
	if !i.tickActive.CompareAndSwap(false, true) {
		return
	}
	defer i.tickActive.Store(false)

	i.pendingMu.Lock()
	if len(i.pending) == 0 {
		i.pendingMu.Unlock()
		return
	}
	start := i.offset
	if start >= len(i.pending) {
		i.logger.Info("all batches completed", "total", len(i.pending))
		i.pending = nil
		i.offset = 0
		i.pendingMu.Unlock()
		return
	}
	end := min(start+i.cfg.BatchSize(), len(i.pending))
	batch := i.pending[start:end]
	i.offset = end
	i.pendingMu.Unlock()

	i.logger.Info("processing batch", "from", start, "to", end-1, "total_queued", end-start)
	i.processRange(ctx, batch)
}

// processRange splits documents into chunks, each in its own transaction.
func (i *Integrator) processRange(ctx context.Context, docs []event.Document) {
	chunkSize := i.cfg.ChunkSize()
	for start := 0; start < len(docs); start += chunkSize {
		if ctx.Err() != nil {
			return
		}
		end := min(start+chunkSize, len(docs))
		if err := i.processChunk(ctx, docs[start:end]); err != nil {
			// The chunk rolled back; its documents are lost for this run
			// but the remaining chunks proceed.
			i.errors.Add(int64(end - start))
			i.logger.Error("chunk failed",
				"from", start,
				"to", end-1,
				"error", err,
			)
		}
	}
}

// processChunk runs one transaction over a chunk. Each document gets its
// own savepoint, so a failing document rolls back alone.
func (i *Integrator) processChunk(ctx context.Context, docs []event.Document) error {
	return database.WithTransaction(ctx, i.db, func(tx *gorm.DB) error {
		for _, doc := range docs {
			err := tx.Transaction(func(inner *gorm.DB) error {
				return i.processDocument(ctx, inner, doc)
			})
			if err != nil {
				i.errors.Add(1)
				i.logger.Error("document failed",
					"url", doc.URL,
					"source", doc.Source,
					"error", err,
				)
			}
		}
		return nil
	})
}

func (i *Integrator) processDocument(ctx context.Context, tx *gorm.DB, doc event.Document) error {
	if doc.URL == "" || i.isSeen(doc.URL) {
		i.skipped.Add(1)
		return nil
	}

	var resolved *venue.Venue
	if i.enricher != nil {
		var err error
		resolved, err = i.enricher.ResolveVenue(ctx, doc.Place, doc.Location)
		if err != nil {
			// Degraded: the event proceeds with a null venue.
			i.venueDegraded.Add(1)
			i.logger.Warn("venue resolution failed",
				"place", doc.Place,
				"error", err,
			)
			resolved = nil
		}
	}

	e := event.FromDocument(doc, time.Now().UTC())
	if e.DatesDefaulted() {
		i.datesDefaulted.Add(1)
		i.logger.Warn("document dates defaulted", "url", doc.URL, "source", doc.Source)
	}
	e = e.WithVenue(resolved)

	if i.existsInStore(doc.URL) {
		changed, err := i.events.UpdateIfChanged(tx, e)
		if err != nil {
			return err
		}
		if changed {
			i.updated.Add(1)
		} else {
			i.skipped.Add(1)
		}
		i.markSeen(doc.URL)
		return nil
	}

	inserted, err := i.events.Insert(tx, e)
	if err != nil {
		return err
	}

	if err := i.linkRelationships(tx, inserted.ID(), doc); err != nil {
		return err
	}

	i.markSeen(doc.URL)
	i.inserted.Add(1)
	return nil
}

func (i *Integrator) linkRelationships(tx *gorm.DB, eventID int64, doc event.Document) error {
	if names := doc.ArtistNames(); len(names) > 0 {
		artists, err := i.artists.FindOrCreateByName(tx, names)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(artists))
		for _, a := range artists {
			ids = append(ids, a.ID())
		}
		if err := i.linker.LinkArtists(tx, eventID, ids); err != nil {
			return err
		}
	}

	if names := doc.TagNames(); len(names) > 0 {
		tags, err := i.tags.FindOrCreateByName(tx, names)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(tags))
		for _, t := range tags {
			ids = append(ids, t.ID())
		}
		if err := i.linker.LinkTags(tx, eventID, ids); err != nil {
			return err
		}
	}

	return nil
}

// primeSeen loads every stored URL into the seen set, once per process.
func (i *Integrator) primeSeen(ctx context.Context) error {
	i.seenMu.Lock()
	defer i.seenMu.Unlock()
	if i.primed {
		return nil
	}

	urls, err := i.events.URLs(ctx)
	if err != nil {
		return err
	}
	for _, url := range urls {
		i.seen[url] = struct{}{}
	}
	i.primed = true
	i.logger.Info("primed url cache", "urls", len(urls))
	return nil
}

// isSeen reports whether the URL was already handled this run. URLs
// primed from the database are not "seen" yet — they take the update
// path once.
func (i *Integrator) isSeen(url string) bool {
	i.seenMu.RLock()
	defer i.seenMu.RUnlock()
	_, ok := i.processed[url]
	return ok
}

func (i *Integrator) existsInStore(url string) bool {
	i.seenMu.RLock()
	defer i.seenMu.RUnlock()
	_, ok := i.seen[url]
	return ok
}

func (i *Integrator) markSeen(url string) {
	i.seenMu.Lock()
	defer i.seenMu.Unlock()
	i.processed[url] = struct{}{}
	i.seen[url] = struct{}{}
}

// ClearCaches drops the URL cache and the registry caches.
func (i *Integrator) ClearCaches() {
	i.seenMu.Lock()
	i.seen = make(map[string]struct{})
	i.processed = make(map[string]struct{})
	i.primed = false
	i.seenMu.Unlock()

	i.artists.ClearCache()
	i.tags.ClearCache()
	i.logger.Info("integrator caches cleared")
}

// Stats returns a snapshot of the integrator counters.
func (i *Integrator) Stats() IntegratorStats {
	i.seenMu.RLock()
	seen := len(i.seen)
	i.seenMu.RUnlock()

	i.pendingMu.Lock()
	pending := len(i.pending) - i.offset
	if pending < 0 {
		pending = 0
	}
	i.pendingMu.Unlock()

	return IntegratorStats{
		Inserted:       i.inserted.Load(),
		Updated:        i.updated.Load(),
		Skipped:        i.skipped.Load(),
		Errors:         i.errors.Load(),
		DatesDefaulted: i.datesDefaulted.Load(),
		VenueDegraded:  i.venueDegraded.Load(),
		SeenURLs:       seen,
		PendingDocs:    pending,
	}
}
