// Package persistence provides database storage for events, artists,
// tags and venues.
package persistence

import (
	"strings"
	"time"

	"github.com/gigradar/gigradar/domain/venue"
)

// EventModel is the GORM model for the events table. The embedding vector
// column deliberately has no field here: the ORM never reads or writes it,
// only the native SQL paths in EventStore do.
type EventModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	EventName   string    `gorm:"column:event_name"`
	StartDate   time.Time `gorm:"column:start_date;index"`
	EndDate     time.Time `gorm:"column:end_date"`
	Thumbnail   string    `gorm:"column:thumbnail"`
	URL         string    `gorm:"column:url;uniqueIndex"`
	Location    string    `gorm:"column:location"`
	Category    string    `gorm:"column:category;index"`
	Description string    `gorm:"column:description;type:text"`
	Source      string    `gorm:"column:source"`
	PlaceID     *string   `gorm:"column:place_id;index"`
}

// TableName returns the table name for EventModel.
func (EventModel) TableName() string { return "events" }

// ArtistModel is the GORM model for the artists table.
type ArtistModel struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ArtistName string `gorm:"column:artist_name;uniqueIndex"`
}

// TableName returns the table name for ArtistModel.
func (ArtistModel) TableName() string { return "artists" }

// TagModel is the GORM model for the tags table.
type TagModel struct {
	ID      int64  `gorm:"column:id;primaryKey;autoIncrement"`
	TagName string `gorm:"column:tag_name;uniqueIndex"`
}

// TableName returns the table name for TagModel.
func (TagModel) TableName() string { return "tags" }

// EventArtistModel is the GORM model for the event_artists join table.
type EventArtistModel struct {
	EventID  int64 `gorm:"column:event_id;primaryKey"`
	ArtistID int64 `gorm:"column:artist_id;primaryKey"`
}

// TableName returns the table name for EventArtistModel.
func (EventArtistModel) TableName() string { return "event_artists" }

// EventTagModel is the GORM model for the event_tags join table.
type EventTagModel struct {
	EventID int64 `gorm:"column:event_id;primaryKey"`
	TagID   int64 `gorm:"column:tag_id;primaryKey"`
}

// TableName returns the table name for EventTagModel.
func (EventTagModel) TableName() string { return "event_tags" }

// PlaceModel is the GORM model for the places table.
type PlaceModel struct {
	PlaceID          string     `gorm:"column:place_id;primaryKey"`
	NameScraped      string     `gorm:"column:name_scraped"`
	NameCanonical    string     `gorm:"column:name_canonical"`
	FormattedAddress string     `gorm:"column:formatted_address"`
	Latitude         *float64   `gorm:"column:latitude"`
	Longitude        *float64   `gorm:"column:longitude"`
	City             string     `gorm:"column:city;index"`
	Country          string     `gorm:"column:country"`
	State            string     `gorm:"column:state"`
	Street           string     `gorm:"column:street"`
	StreetNumber     string     `gorm:"column:street_number"`
	Neighborhood     string     `gorm:"column:neighborhood"`
	PostalCode       string     `gorm:"column:postal_code"`
	Website          string     `gorm:"column:website"`
	Phone            string     `gorm:"column:phone"`
	Rating           *float64   `gorm:"column:rating"`
	UserRatingsTotal int        `gorm:"column:user_ratings_total"`
	PopularityScore  *float64   `gorm:"column:popularity_score"`
	PriceLevel       *int       `gorm:"column:price_level"`
	PlaceTypes       string     `gorm:"column:place_types"`
	PhotoReference   string     `gorm:"column:photo_reference;size:2000"`
	ReviewCount      int        `gorm:"column:review_count"`
	LastEnriched     *time.Time `gorm:"column:last_enriched_date"`
}

// TableName returns the table name for PlaceModel.
func (PlaceModel) TableName() string { return "places" }

// venueToModel converts a domain venue to its GORM model. The type list is
// stored comma-joined.
func venueToModel(v venue.Venue) PlaceModel {
	return PlaceModel{
		PlaceID:          v.PlaceID(),
		NameScraped:      v.ScrapedName(),
		NameCanonical:    v.CanonicalName(),
		FormattedAddress: v.Address(),
		Latitude:         v.Latitude(),
		Longitude:        v.Longitude(),
		City:             v.City(),
		Country:          v.Country(),
		State:            v.State(),
		Street:           v.Street(),
		StreetNumber:     v.StreetNumber(),
		Neighborhood:     v.Neighborhood(),
		PostalCode:       v.PostalCode(),
		Website:          v.Website(),
		Phone:            v.Phone(),
		Rating:           v.Rating(),
		UserRatingsTotal: v.UserRatingsTotal(),
		PopularityScore:  v.PopularityScore(),
		PriceLevel:       v.PriceLevel(),
		PlaceTypes:       strings.Join(v.Types(), ","),
		PhotoReference:   v.PhotoReference(),
		ReviewCount:      v.ReviewCount(),
		LastEnriched:     v.LastEnriched(),
	}
}

// venueToDomain converts a GORM model back to a domain venue.
func venueToDomain(m PlaceModel) venue.Venue {
	var types []string
	if m.PlaceTypes != "" {
		types = strings.Split(m.PlaceTypes, ",")
	}
	return venue.FromHydrateFields(venue.HydrateFields{
		PlaceID:          m.PlaceID,
		ScrapedName:      m.NameScraped,
		CanonicalName:    m.NameCanonical,
		Address:          m.FormattedAddress,
		Latitude:         m.Latitude,
		Longitude:        m.Longitude,
		City:             m.City,
		Country:          m.Country,
		State:            m.State,
		Street:           m.Street,
		StreetNumber:     m.StreetNumber,
		Neighborhood:     m.Neighborhood,
		PostalCode:       m.PostalCode,
		Website:          m.Website,
		Phone:            m.Phone,
		Rating:           m.Rating,
		UserRatingsTotal: m.UserRatingsTotal,
		PopularityScore:  m.PopularityScore,
		PriceLevel:       m.PriceLevel,
		Types:            types,
		PhotoReference:   m.PhotoReference,
		ReviewCount:      m.ReviewCount,
		LastEnriched:     m.LastEnriched,
	})
}
