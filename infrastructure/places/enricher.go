package places

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/gigradar/gigradar/domain/venue"
	"github.com/gigradar/gigradar/internal/config"
	"github.com/gigradar/gigradar/internal/database"
)

// VenueStore is the persistence surface the enricher needs.
type VenueStore interface {
	ByPlaceID(ctx context.Context, placeID string) (venue.Venue, error)
	Save(ctx context.Context, v venue.Venue) (venue.Venue, error)
	NeedingRefresh(ctx context.Context, threshold time.Time, limit int) ([]venue.Venue, error)
	Count(ctx context.Context) (int64, error)
}

// Stats is a snapshot of enricher counters.
type Stats struct {
	Resolved      int64
	Misses        int64
	Enriched      int64
	EnrichFailed  int64
	Fallbacks     int64
	CachedPlaces  int
	Enabled       bool
	BreakerState  string
}

// Enricher resolves scraped venue names against the places provider and
// keeps venue rows enriched. All provider traffic goes through the Guard,
// so resolution degrades to "no venue" and enrichment degrades to
// "unchanged venue" when the provider misbehaves.
type Enricher struct {
	client *Client
	venues VenueStore
	guard  *Guard
	cfg    config.PlacesConfig
	logger *slog.Logger

	// placeIDs caches (scraped name, location hint) → place ID for the
	// lifetime of the process.
	placeIDs *gocache.Cache

	resolved     atomic.Int64
	misses       atomic.Int64
	enriched     atomic.Int64
	enrichFailed atomic.Int64
	fallbacks    atomic.Int64

	sweepActive atomic.Bool
	cancelSweep context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
}

// NewEnricher creates an Enricher.
func NewEnricher(client *Client, venues VenueStore, guard *Guard, cfg config.PlacesConfig, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		client:   client,
		venues:   venues,
		guard:    guard,
		cfg:      cfg,
		logger:   logger,
		placeIDs: gocache.New(gocache.NoExpiration, 0),
	}
}

// ResolveVenue resolves a scraped venue name (with a location hint) into a
// persisted venue. It returns nil without error when enrichment is
// disabled, the name is blank, the provider has no match, or the provider
// is unavailable — the event then carries no venue reference.
func (e *Enricher) ResolveVenue(ctx context.Context, scrapedName, locationHint string) (*venue.Venue, error) {
	if !e.cfg.Enabled() {
		return nil, nil
	}

	scrapedName = strings.TrimSpace(scrapedName)
	if scrapedName == "" {
		return nil, nil
	}

	cacheKey := scrapedName + "|" + locationHint
	if cached, ok := e.placeIDs.Get(cacheKey); ok {
		placeID := cached.(string)
		if placeID == "" {
			// Negative result cached: the provider had no match.
			return nil, nil
		}
		if existing, err := e.venues.ByPlaceID(ctx, placeID); err == nil {
			return e.refreshIfStale(ctx, existing), nil
		}
	}

	placeID, err := e.resolve(ctx, scrapedName, locationHint)
	if err != nil {
		e.fallbacks.Add(1)
		e.logger.Warn("venue resolution degraded",
			"place", scrapedName,
			"error", err,
		)
		return nil, nil
	}

	if placeID == "" {
		e.misses.Add(1)
		e.placeIDs.SetDefault(cacheKey, "")
		return nil, nil
	}

	e.resolved.Add(1)
	e.placeIDs.SetDefault(cacheKey, placeID)

	if existing, err := e.venues.ByPlaceID(ctx, placeID); err == nil {
		return e.refreshIfStale(ctx, existing), nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	stub := venue.NewStub(placeID, scrapedName)
	enriched := e.Enrich(ctx, stub)

	saved, err := e.venues.Save(ctx, enriched)
	if err != nil {
		if database.IsDuplicateKey(err) {
			// Another worker persisted the same place concurrently.
			if existing, readErr := e.venues.ByPlaceID(ctx, placeID); readErr == nil {
				return &existing, nil
			}
		}
		return nil, err
	}

	return &saved, nil
}

// resolve performs a guarded text search. ErrOpen and exhausted retries
// both surface as errors so the caller can fall back to "no venue".
func (e *Enricher) resolve(ctx context.Context, scrapedName, locationHint string) (string, error) {
	result, err := e.guard.Do(ctx, "resolve", func(ctx context.Context) (any, error) {
		return e.client.TextSearch(ctx, scrapedName, locationHint)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Enrich runs the guarded detail lookup and applies the attributes. On any
// failure — breaker open included — the venue comes back unchanged except
// for lastEnriched, which is stamped to now so the next access does not
// immediately retry.
func (e *Enricher) Enrich(ctx context.Context, v venue.Venue) venue.Venue {
	result, err := e.guard.Do(ctx, "enrich", func(ctx context.Context) (any, error) {
		return e.client.Details(ctx, v.PlaceID())
	})
	if err != nil {
		e.enrichFailed.Add(1)
		e.logger.Warn("venue enrichment degraded",
			"place_id", v.PlaceID(),
			"place", v.ScrapedName(),
			"error", err,
		)
		return v.Touched(time.Now())
	}

	e.enriched.Add(1)
	return v.Enriched(result.(venue.Attrs), time.Now())
}

// refreshIfStale re-enriches and persists a venue whose data is older than
// the configured horizon. Refresh failures are logged, not propagated.
func (e *Enricher) refreshIfStale(ctx context.Context, v venue.Venue) *venue.Venue {
	if !v.Stale(time.Now(), e.cfg.RefreshHorizon()) {
		return &v
	}

	refreshed := e.Enrich(ctx, v)
	saved, err := e.venues.Save(ctx, refreshed)
	if err != nil {
		e.logger.Warn("failed to save refreshed venue",
			"place_id", v.PlaceID(),
			"error", err,
		)
		return &v
	}
	return &saved
}

// RefreshStale re-enriches every venue past the staleness horizon. It is
// the body of the daily sweep and is safe to invoke manually.
func (e *Enricher) RefreshStale(ctx context.Context) {
	if !e.cfg.Enabled() {
		e.logger.Info("places enrichment disabled, skipping refresh")
		return
	}

	if !e.sweepActive.CompareAndSwap(false, true) {
		return
	}
	defer e.sweepActive.Store(false)

	threshold := time.Now().Add(-e.cfg.RefreshHorizon())
	stale, err := e.venues.NeedingRefresh(ctx, threshold, 0)
	if err != nil {
		e.logger.Error("refresh sweep failed to list venues", "error", err)
		return
	}

	e.logger.Info("refreshing stale venues", "count", len(stale))

	for _, v := range stale {
		if ctx.Err() != nil {
			return
		}
		refreshed := e.Enrich(ctx, v)
		if _, err := e.venues.Save(ctx, refreshed); err != nil {
			e.logger.Warn("failed to save refreshed venue",
				"place_id", v.PlaceID(),
				"error", err,
			)
		}
	}
}

// StartSweep runs RefreshStale once a day at the configured hour until the
// context is cancelled or Stop is called.
func (e *Enricher) StartSweep(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, e.cancelSweep = context.WithCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runSweep(ctx)
	}()
}

// Stop cancels the sweep goroutine and waits for it to finish.
func (e *Enricher) Stop() {
	e.mu.Lock()
	cancel := e.cancelSweep
	e.cancelSweep = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

func (e *Enricher) runSweep(ctx context.Context) {
	for {
		timer := time.NewTimer(untilNextHour(time.Now(), e.cfg.RefreshHour()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			e.RefreshStale(ctx)
		}
	}
}

// untilNextHour returns the duration until the next occurrence of the
// given local hour.
func untilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

// ClearCache drops the in-process place ID cache.
func (e *Enricher) ClearCache() {
	e.placeIDs.Flush()
	e.logger.Info("place cache cleared")
}

// Stats returns a snapshot of enricher counters.
func (e *Enricher) Stats() Stats {
	return Stats{
		Resolved:     e.resolved.Load(),
		Misses:       e.misses.Load(),
		Enriched:     e.enriched.Load(),
		EnrichFailed: e.enrichFailed.Load(),
		Fallbacks:    e.fallbacks.Load(),
		CachedPlaces: e.placeIDs.ItemCount(),
		Enabled:      e.cfg.Enabled(),
		BreakerState: e.guard.State(),
	}
}
