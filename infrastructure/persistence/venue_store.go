package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gigradar/gigradar/domain/venue"
	"github.com/gigradar/gigradar/internal/database"
)

// VenueStore persists venues keyed by provider place ID.
type VenueStore struct {
	db database.Database
}

// NewVenueStore creates a VenueStore.
func NewVenueStore(db database.Database) VenueStore {
	return VenueStore{db: db}
}

// ByPlaceID returns the venue stored under the given place ID.
func (s VenueStore) ByPlaceID(ctx context.Context, placeID string) (venue.Venue, error) {
	var model PlaceModel
	err := s.db.Session(ctx).Where("place_id = ?", placeID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return venue.Venue{}, fmt.Errorf("%w: place %s", database.ErrNotFound, placeID)
		}
		return venue.Venue{}, fmt.Errorf("load venue: %w", err)
	}
	return venueToDomain(model), nil
}

// Save upserts a venue. lastEnriched is monotone per venue: an update
// never rewinds it because enrichment always stamps the current time.
func (s VenueStore) Save(ctx context.Context, v venue.Venue) (venue.Venue, error) {
	model := venueToModel(v)

	err := s.db.Session(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "place_id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
	if err != nil {
		return venue.Venue{}, fmt.Errorf("save venue: %w", err)
	}
	return venueToDomain(model), nil
}

// NeedingRefresh returns venues whose lastEnriched is older than the
// threshold (or was never set). A limit of 0 means no limit.
func (s VenueStore) NeedingRefresh(ctx context.Context, threshold time.Time, limit int) ([]venue.Venue, error) {
	db := s.db.Session(ctx).
		Where("last_enriched_date IS NULL OR last_enriched_date < ?", threshold).
		Order("last_enriched_date ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}

	var models []PlaceModel
	if err := db.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list stale venues: %w", err)
	}

	venues := make([]venue.Venue, len(models))
	for i, m := range models {
		venues[i] = venueToDomain(m)
	}
	return venues, nil
}

// TopByCity returns the most popular venues in a city, ordered by
// popularity score descending.
func (s VenueStore) TopByCity(ctx context.Context, city string, limit int) ([]venue.Venue, error) {
	if limit <= 0 {
		limit = 10
	}

	var models []PlaceModel
	err := s.db.Session(ctx).
		Where("city = ?", city).
		Where("popularity_score IS NOT NULL").
		Order("popularity_score DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("top venues by city: %w", err)
	}

	venues := make([]venue.Venue, len(models))
	for i, m := range models {
		venues[i] = venueToDomain(m)
	}
	return venues, nil
}

// Count returns the total number of venues.
func (s VenueStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.Session(ctx).Model(&PlaceModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count venues: %w", err)
	}
	return count, nil
}
