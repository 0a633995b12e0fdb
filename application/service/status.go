package service

import (
	"context"

	"github.com/gigradar/gigradar/infrastructure/persistence"
	"github.com/gigradar/gigradar/infrastructure/places"
)

// StatusReport aggregates pipeline statistics for the status endpoint and
// the end-of-run summary.
type StatusReport struct {
	TotalEvents       int64           `json:"total_events"`
	TotalArtists      int64           `json:"total_artists"`
	TotalTags         int64           `json:"total_tags"`
	TotalVenues       int64           `json:"total_venues"`
	PendingEmbeddings int64           `json:"pending_embeddings"`
	CachedArtists     int             `json:"cached_artists"`
	CachedTags        int             `json:"cached_tags"`
	LinkerRaces       int64           `json:"linker_races"`
	Integrator        IntegratorStats `json:"integrator"`
	Places            places.Stats    `json:"places"`
}

// Status collects pipeline statistics from every component.
type Status struct {
	events     persistence.EventStore
	artists    *persistence.ArtistRegistry
	tags       *persistence.TagRegistry
	venues     persistence.VenueStore
	linker     *persistence.Linker
	integrator *Integrator
	enricher   *places.Enricher
}

// NewStatus creates a Status service. enricher may be nil when venue
// enrichment is disabled.
func NewStatus(
	events persistence.EventStore,
	artists *persistence.ArtistRegistry,
	tags *persistence.TagRegistry,
	venues persistence.VenueStore,
	linker *persistence.Linker,
	integrator *Integrator,
	enricher *places.Enricher,
) *Status {
	return &Status{
		events:     events,
		artists:    artists,
		tags:       tags,
		venues:     venues,
		linker:     linker,
		integrator: integrator,
		enricher:   enricher,
	}
}

// Collect gathers a snapshot across all components.
func (s *Status) Collect(ctx context.Context) (StatusReport, error) {
	report := StatusReport{
		CachedArtists: s.artists.CachedCount(),
		CachedTags:    s.tags.CachedCount(),
		LinkerRaces:   s.linker.Races(),
		Integrator:    s.integrator.Stats(),
	}

	var err error
	if report.TotalEvents, err = s.events.Count(ctx); err != nil {
		return StatusReport{}, err
	}
	if report.TotalArtists, err = s.artists.Count(ctx); err != nil {
		return StatusReport{}, err
	}
	if report.TotalTags, err = s.tags.Count(ctx); err != nil {
		return StatusReport{}, err
	}
	if report.TotalVenues, err = s.venues.Count(ctx); err != nil {
		return StatusReport{}, err
	}
	if report.PendingEmbeddings, err = s.events.PendingEmbeddings(ctx); err != nil {
		return StatusReport{}, err
	}

	if s.enricher != nil {
		report.Places = s.enricher.Stats()
	}

	return report, nil
}
