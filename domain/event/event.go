// Package event holds the event aggregate and the normalized document
// contract shared by the source adapters and the integrator.
package event

import (
	"time"

	"github.com/gigradar/gigradar/domain/artist"
	"github.com/gigradar/gigradar/domain/tag"
	"github.com/gigradar/gigradar/domain/venue"
)

// Event is an aggregated event identified by its canonical URL. The venue
// reference is weak: events never own the venue, and it may be absent.
// The stored embedding vector is deliberately not part of the aggregate —
// only native SQL paths read or write it.
type Event struct {
	id             int64
	name           string
	startDate      time.Time
	endDate        time.Time
	thumbnail      string
	url            string
	location       string
	category       string
	description    string
	source         string
	datesDefaulted bool

	venue   *venue.Venue
	artists []artist.Artist
	tags    []tag.Tag
}

// FromDocument builds an Event from a normalized document, coercing its
// timestamps. Missing or unparseable start/end dates default to now and
// now+1h respectively; DatesDefaulted reports when that happened so the
// integrator can surface it.
func FromDocument(doc Document, now time.Time) Event {
	start := ParseTimestamp(doc.StartDate)
	end := ParseTimestamp(doc.EndDate)

	defaulted := false
	if start == nil {
		t := now
		start = &t
		defaulted = true
	}
	if end == nil {
		t := now.Add(time.Hour)
		end = &t
		defaulted = true
	}

	return Event{
		name:           doc.EventName,
		startDate:      *start,
		endDate:        *end,
		thumbnail:      doc.Thumbnail,
		url:            doc.URL,
		location:       doc.Location,
		category:       doc.Category,
		description:    doc.Description,
		source:         doc.Source,
		datesDefaulted: defaulted,
	}
}

// Hydrate reconstructs a persisted Event with its identifier and loaded
// relationships.
func Hydrate(
	id int64,
	name string,
	startDate, endDate time.Time,
	thumbnail, url, location, category, description, source string,
	v *venue.Venue,
	artists []artist.Artist,
	tags []tag.Tag,
) Event {
	return Event{
		id:          id,
		name:        name,
		startDate:   startDate,
		endDate:     endDate,
		thumbnail:   thumbnail,
		url:         url,
		location:    location,
		category:    category,
		description: description,
		source:      source,
		venue:       v,
		artists:     artists,
		tags:        tags,
	}
}

// ID returns the database identifier, 0 for unsaved events.
func (e Event) ID() int64 { return e.id }

// Name returns the event name.
func (e Event) Name() string { return e.name }

// StartDate returns the event start time.
func (e Event) StartDate() time.Time { return e.startDate }

// EndDate returns the event end time.
func (e Event) EndDate() time.Time { return e.endDate }

// Thumbnail returns the thumbnail URL.
func (e Event) Thumbnail() string { return e.thumbnail }

// URL returns the canonical event URL, the natural key.
func (e Event) URL() string { return e.url }

// Location returns the scraped location string.
func (e Event) Location() string { return e.location }

// Category returns the event category.
func (e Event) Category() string { return e.category }

// Description returns the event description.
func (e Event) Description() string { return e.description }

// Source returns the adapter identifier that produced the event.
func (e Event) Source() string { return e.source }

// DatesDefaulted reports whether start or end date was fabricated because
// the source provided none.
func (e Event) DatesDefaulted() bool { return e.datesDefaulted }

// Venue returns the associated venue, nil when unresolved.
func (e Event) Venue() *venue.Venue { return e.venue }

// Artists returns the linked artists.
func (e Event) Artists() []artist.Artist { return e.artists }

// Tags returns the linked tags.
func (e Event) Tags() []tag.Tag { return e.tags }

// WithID returns a copy of the event carrying the given identifier.
func (e Event) WithID(id int64) Event {
	e.id = id
	return e
}

// WithVenue returns a copy of the event referencing the given venue.
func (e Event) WithVenue(v *venue.Venue) Event {
	e.venue = v
	return e
}

// MaterialChangeFrom reports whether the incoming event differs from e in
// a field that feeds the embedding text. A material change invalidates the
// stored vector so the worker regenerates it.
func (e Event) MaterialChangeFrom(incoming Event) bool {
	return e.name != incoming.name ||
		e.category != incoming.category ||
		e.description != incoming.description
}
