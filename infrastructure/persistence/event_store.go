package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gigradar/gigradar/domain/artist"
	"github.com/gigradar/gigradar/domain/event"
	"github.com/gigradar/gigradar/domain/tag"
	"github.com/gigradar/gigradar/domain/venue"
	"github.com/gigradar/gigradar/internal/database"
)

// EventStore persists events and owns the native-SQL embedding paths.
type EventStore struct {
	db         database.Database
	dimensions int
}

// NewEventStore creates an EventStore. dimensions is the configured vector
// dimension used in native vector SQL.
func NewEventStore(db database.Database, dimensions int) EventStore {
	return EventStore{db: db, dimensions: dimensions}
}

// Insert creates an event row inside the given transaction and returns
// the event with its generated ID.
func (s EventStore) Insert(tx *gorm.DB, e event.Event) (event.Event, error) {
	model := EventModel{
		EventName:   e.Name(),
		StartDate:   e.StartDate(),
		EndDate:     e.EndDate(),
		Thumbnail:   e.Thumbnail(),
		URL:         e.URL(),
		Location:    e.Location(),
		Category:    e.Category(),
		Description: e.Description(),
		Source:      e.Source(),
	}
	if v := e.Venue(); v != nil {
		placeID := v.PlaceID()
		model.PlaceID = &placeID
	}

	if err := tx.Create(&model).Error; err != nil {
		return event.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return e.WithID(model.ID), nil
}

// UpdateIfChanged overwrites mutable attributes of the event stored under
// the incoming event's URL when they differ, inside the supplied session.
// A change to a field that feeds the embedding text additionally nulls
// the stored vector so the worker regenerates it. Returns whether
// anything was written.
func (s EventStore) UpdateIfChanged(tx *gorm.DB, incoming event.Event) (bool, error) {
	var model EventModel
	err := tx.Where("url = ?", incoming.URL()).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: event url %s", database.ErrNotFound, incoming.URL())
		}
		return false, fmt.Errorf("load event by url: %w", err)
	}

	existing := event.Hydrate(
		model.ID, model.EventName, model.StartDate, model.EndDate,
		model.Thumbnail, model.URL, model.Location, model.Category,
		model.Description, model.Source, nil, nil, nil,
	)

	material := existing.MaterialChangeFrom(incoming)
	changed := material ||
		model.Thumbnail != incoming.Thumbnail() ||
		model.Location != incoming.Location() ||
		!model.StartDate.Equal(incoming.StartDate()) ||
		!model.EndDate.Equal(incoming.EndDate())
	if !changed {
		return false, nil
	}

	updates := map[string]any{
		"event_name":  incoming.Name(),
		"start_date":  incoming.StartDate(),
		"end_date":    incoming.EndDate(),
		"thumbnail":   incoming.Thumbnail(),
		"location":    incoming.Location(),
		"category":    incoming.Category(),
		"description": incoming.Description(),
	}
	if err := tx.Model(&EventModel{}).Where("id = ?", model.ID).Updates(updates).Error; err != nil {
		return false, fmt.Errorf("update event: %w", err)
	}

	if material {
		if err := tx.Exec(`UPDATE events SET embedding = NULL WHERE id = ?`, model.ID).Error; err != nil {
			return true, fmt.Errorf("clear embedding: %w", err)
		}
	}
	return true, nil
}

// URLs returns every stored canonical URL, used to prime the integrator's
// seen-set once per run.
func (s EventStore) URLs(ctx context.Context) ([]string, error) {
	var urls []string
	if err := s.db.Session(ctx).Model(&EventModel{}).Pluck("url", &urls).Error; err != nil {
		return nil, fmt.Errorf("%w: list event urls: %w", database.ErrBackendUnavailable, err)
	}
	return urls, nil
}

// Count returns the total number of events.
func (s EventStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.Session(ctx).Model(&EventModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// PendingEmbeddings counts events whose vector is still null.
func (s EventStore) PendingEmbeddings(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.Session(ctx).
		Raw(`SELECT COUNT(*) FROM events WHERE embedding IS NULL`).
		Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count pending embeddings: %w", err)
	}
	return count, nil
}

// WithoutEmbedding returns up to limit fully hydrated events whose vector
// is null, ordered by ID so repeated sweeps make progress deterministically.
func (s EventStore) WithoutEmbedding(ctx context.Context, limit int) ([]event.Event, error) {
	var ids []int64
	err := s.db.Session(ctx).
		Raw(`SELECT id FROM events WHERE embedding IS NULL ORDER BY id LIMIT ?`, limit).
		Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("select events without embedding: %w", err)
	}
	return s.FindByIDs(ctx, ids)
}

// SetEmbedding writes an embedding vector for an event using the native
// vector type. Vector writes happen strictly after event insertion, so a
// missing row is a caller bug and surfaces as ErrNotFound.
func (s EventStore) SetEmbedding(ctx context.Context, id int64, embedding []float64) error {
	if len(embedding) != s.dimensions {
		return fmt.Errorf("embedding has %d dimensions, store configured for %d", len(embedding), s.dimensions)
	}

	literal := database.VectorLiteral(embedding)

	var result *gorm.DB
	if s.db.IsPostgres() {
		result = s.db.Session(ctx).Exec(
			fmt.Sprintf(`UPDATE events SET embedding = ?::vector(%d) WHERE id = ?`, s.dimensions),
			literal, id,
		)
	} else {
		result = s.db.Session(ctx).Exec(`UPDATE events SET embedding = ? WHERE id = ?`, literal, id)
	}
	if result.Error != nil {
		return fmt.Errorf("set embedding: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: event %d", database.ErrNotFound, id)
	}
	return nil
}

// ClearEmbedding nulls the stored vector so the embedding worker
// regenerates it.
func (s EventStore) ClearEmbedding(ctx context.Context, id int64) error {
	err := s.db.Session(ctx).Exec(`UPDATE events SET embedding = NULL WHERE id = ?`, id).Error
	if err != nil {
		return fmt.Errorf("clear embedding: %w", err)
	}
	return nil
}

// VectorSearch returns event IDs ordered by ascending cosine distance to
// the query vector, ties broken by ID. On PostgreSQL the ranking runs in
// the database; on SQLite the stored literals are parsed and ranked in
// process.
func (s EventStore) VectorSearch(ctx context.Context, query []float64, limit int) ([]int64, error) {
	if s.db.IsPostgres() {
		var ids []int64
		err := s.db.Session(ctx).Raw(
			fmt.Sprintf(`
				SELECT id FROM events
				WHERE embedding IS NOT NULL
				ORDER BY cosine_distance(embedding, ?::vector(%d)), id
				LIMIT ?`, s.dimensions),
			database.VectorLiteral(query), limit,
		).Scan(&ids).Error
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		return ids, nil
	}

	return s.vectorSearchInProcess(ctx, query, limit)
}

// ByID returns a fully hydrated event.
func (s EventStore) ByID(ctx context.Context, id int64) (event.Event, error) {
	events, err := s.FindByIDs(ctx, []int64{id})
	if err != nil {
		return event.Event{}, err
	}
	if len(events) == 0 {
		return event.Event{}, fmt.Errorf("%w: event %d", database.ErrNotFound, id)
	}
	return events[0], nil
}

// FindByIDs hydrates events with their venue, artists and tags. Result
// order follows the ids argument; missing IDs are silently skipped.
func (s EventStore) FindByIDs(ctx context.Context, ids []int64) ([]event.Event, error) {
	if len(ids) == 0 {
		return []event.Event{}, nil
	}

	var models []EventModel
	if err := s.db.Session(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	artistsByEvent, err := s.artistsForEvents(ctx, ids)
	if err != nil {
		return nil, err
	}
	tagsByEvent, err := s.tagsForEvents(ctx, ids)
	if err != nil {
		return nil, err
	}
	venuesByPlace, err := s.venuesForEvents(ctx, models)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]event.Event, len(models))
	for _, m := range models {
		var v *venue.Venue
		if m.PlaceID != nil {
			if loaded, ok := venuesByPlace[*m.PlaceID]; ok {
				v = &loaded
			}
		}
		byID[m.ID] = event.Hydrate(
			m.ID, m.EventName, m.StartDate, m.EndDate,
			m.Thumbnail, m.URL, m.Location, m.Category,
			m.Description, m.Source,
			v, artistsByEvent[m.ID], tagsByEvent[m.ID],
		)
	}

	result := make([]event.Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			result = append(result, e)
		}
	}
	return result, nil
}

// ListQuery carries filters for the paginated event listing.
type ListQuery struct {
	Category string
	Location string
	Artist   string
	Tag      string
	Page     int
	Size     int
	SortDesc bool
}

// List returns upcoming events with a venue, filtered and ordered by
// start date.
func (s EventStore) List(ctx context.Context, q ListQuery) ([]event.Event, int64, error) {
	size := q.Size
	if size <= 0 {
		size = 20
	}

	// Built once per statement: reusing a chain after Count would carry
	// executed-statement state into the listing query.
	filtered := func() *gorm.DB {
		db := s.db.Session(ctx).Model(&EventModel{}).
			Where("start_date >= ?", time.Now()).
			Where("place_id IS NOT NULL")

		if q.Category != "" {
			db = db.Where("category = ?", q.Category)
		}
		if q.Location != "" {
			db = db.Where("location LIKE ?", "%"+q.Location+"%")
		}
		if q.Artist != "" {
			db = db.Where(`id IN (
				SELECT ea.event_id FROM event_artists ea
				JOIN artists a ON a.id = ea.artist_id
				WHERE a.artist_name = ?)`, q.Artist)
		}
		if q.Tag != "" {
			db = db.Where(`id IN (
				SELECT et.event_id FROM event_tags et
				JOIN tags t ON t.id = et.tag_id
				WHERE t.tag_name = ?)`, tag.Normalize(q.Tag))
		}
		return db
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count listing: %w", err)
	}

	order := "start_date ASC, id ASC"
	if q.SortDesc {
		order = "start_date DESC, id DESC"
	}

	var ids []int64
	err := filtered().Order(order).Limit(size).Offset(q.Page * size).Pluck("id", &ids).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	events, err := s.FindByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// Search performs a trivial substring search over event names and
// descriptions.
func (s EventStore) Search(ctx context.Context, query string, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 20
	}

	pattern := "%" + query + "%"
	var ids []int64
	err := s.db.Session(ctx).Model(&EventModel{}).
		Where("event_name LIKE ? OR description LIKE ?", pattern, pattern).
		Order("start_date ASC, id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}

	return s.FindByIDs(ctx, ids)
}

func (s EventStore) artistsForEvents(ctx context.Context, ids []int64) (map[int64][]artist.Artist, error) {
	var rows []struct {
		EventID    int64
		ArtistID   int64
		ArtistName string
	}
	err := s.db.Session(ctx).Raw(`
		SELECT ea.event_id, a.id AS artist_id, a.artist_name
		FROM event_artists ea
		JOIN artists a ON a.id = ea.artist_id
		WHERE ea.event_id IN ?
		ORDER BY a.artist_name`, ids).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load event artists: %w", err)
	}

	result := make(map[int64][]artist.Artist)
	for _, row := range rows {
		result[row.EventID] = append(result[row.EventID], artist.Hydrate(row.ArtistID, row.ArtistName))
	}
	return result, nil
}

func (s EventStore) tagsForEvents(ctx context.Context, ids []int64) (map[int64][]tag.Tag, error) {
	var rows []struct {
		EventID int64
		TagID   int64
		TagName string
	}
	err := s.db.Session(ctx).Raw(`
		SELECT et.event_id, t.id AS tag_id, t.tag_name
		FROM event_tags et
		JOIN tags t ON t.id = et.tag_id
		WHERE et.event_id IN ?
		ORDER BY t.tag_name`, ids).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load event tags: %w", err)
	}

	result := make(map[int64][]tag.Tag)
	for _, row := range rows {
		result[row.EventID] = append(result[row.EventID], tag.Hydrate(row.TagID, row.TagName))
	}
	return result, nil
}

func (s EventStore) venuesForEvents(ctx context.Context, models []EventModel) (map[string]venue.Venue, error) {
	placeIDs := make([]string, 0, len(models))
	seen := make(map[string]struct{}, len(models))
	for _, m := range models {
		if m.PlaceID == nil {
			continue
		}
		if _, ok := seen[*m.PlaceID]; ok {
			continue
		}
		seen[*m.PlaceID] = struct{}{}
		placeIDs = append(placeIDs, *m.PlaceID)
	}
	if len(placeIDs) == 0 {
		return map[string]venue.Venue{}, nil
	}

	var places []PlaceModel
	if err := s.db.Session(ctx).Where("place_id IN ?", placeIDs).Find(&places).Error; err != nil {
		return nil, fmt.Errorf("load venues: %w", err)
	}

	result := make(map[string]venue.Venue, len(places))
	for _, p := range places {
		result[p.PlaceID] = venueToDomain(p)
	}
	return result, nil
}
