// Package venue holds the venue entity and its popularity scoring.
package venue

import "time"

// Venue is a physical place hosting events, identified by the external
// places provider's place ID. A venue persisted before its detail lookup
// succeeded is a stub: it carries the scraped name and place ID only.
type Venue struct {
	placeID          string
	scrapedName      string
	canonicalName    string
	address          string
	latitude         *float64
	longitude        *float64
	city             string
	country          string
	state            string
	street           string
	streetNumber     string
	neighborhood     string
	postalCode       string
	website          string
	phone            string
	rating           *float64
	userRatingsTotal int
	popularityScore  *float64
	priceLevel       *int
	types            []string
	photoReference   string
	reviewCount      int
	lastEnriched     *time.Time
}

// NewStub creates a venue that has been resolved to a place ID but not yet
// enriched.
func NewStub(placeID, scrapedName string) Venue {
	return Venue{placeID: placeID, scrapedName: scrapedName}
}

// PlaceID returns the provider place ID, the natural key.
func (v Venue) PlaceID() string { return v.placeID }

// ScrapedName returns the venue name as seen on the source portal.
func (v Venue) ScrapedName() string { return v.scrapedName }

// CanonicalName returns the provider's name for the venue.
func (v Venue) CanonicalName() string { return v.canonicalName }

// Address returns the formatted address.
func (v Venue) Address() string { return v.address }

// Latitude returns the latitude, nil when unknown.
func (v Venue) Latitude() *float64 { return v.latitude }

// Longitude returns the longitude, nil when unknown.
func (v Venue) Longitude() *float64 { return v.longitude }

// City returns the locality.
func (v Venue) City() string { return v.city }

// Country returns the country.
func (v Venue) Country() string { return v.country }

// State returns the first-level administrative area.
func (v Venue) State() string { return v.state }

// Street returns the street (route) name.
func (v Venue) Street() string { return v.street }

// StreetNumber returns the street number.
func (v Venue) StreetNumber() string { return v.streetNumber }

// Neighborhood returns the sublocality.
func (v Venue) Neighborhood() string { return v.neighborhood }

// PostalCode returns the postal code.
func (v Venue) PostalCode() string { return v.postalCode }

// Website returns the venue website.
func (v Venue) Website() string { return v.website }

// Phone returns the formatted phone number.
func (v Venue) Phone() string { return v.phone }

// Rating returns the provider rating in [0,5], nil when unrated.
func (v Venue) Rating() *float64 { return v.rating }

// UserRatingsTotal returns the number of ratings behind Rating.
func (v Venue) UserRatingsTotal() int { return v.userRatingsTotal }

// PopularityScore returns the Bayesian popularity in [0,100].
// It is nil exactly when Rating is nil.
func (v Venue) PopularityScore() *float64 { return v.popularityScore }

// PriceLevel returns the provider price level in [0,4], nil when unknown.
func (v Venue) PriceLevel() *int { return v.priceLevel }

// Types returns the provider's venue type list.
func (v Venue) Types() []string { return v.types }

// PhotoReference returns the primary photo reference.
func (v Venue) PhotoReference() string { return v.photoReference }

// ReviewCount returns the number of reviews in the detail payload.
func (v Venue) ReviewCount() int { return v.reviewCount }

// LastEnriched returns when the venue was last enriched, nil for stubs
// that were never touched by the provider.
func (v Venue) LastEnriched() *time.Time { return v.lastEnriched }

// Stale reports whether the venue needs re-enrichment against the given
// horizon. Venues that were never enriched are always stale.
func (v Venue) Stale(now time.Time, horizon time.Duration) bool {
	if v.lastEnriched == nil {
		return true
	}
	return v.lastEnriched.Before(now.Add(-horizon))
}

// Attrs carries the provider attributes applied during enrichment.
type Attrs struct {
	CanonicalName    string
	Address          string
	Latitude         *float64
	Longitude        *float64
	City             string
	Country          string
	State            string
	Street           string
	StreetNumber     string
	Neighborhood     string
	PostalCode       string
	Website          string
	Phone            string
	Rating           *float64
	UserRatingsTotal int
	PriceLevel       *int
	Types            []string
	PhotoReference   string
	ReviewCount      int
}

// Enriched returns a copy of the venue with provider attributes applied,
// the popularity score recomputed, and lastEnriched advanced to now.
func (v Venue) Enriched(a Attrs, now time.Time) Venue {
	v.canonicalName = a.CanonicalName
	v.address = a.Address
	v.latitude = a.Latitude
	v.longitude = a.Longitude
	v.city = a.City
	v.country = a.Country
	v.state = a.State
	v.street = a.Street
	v.streetNumber = a.StreetNumber
	v.neighborhood = a.Neighborhood
	v.postalCode = a.PostalCode
	v.website = a.Website
	v.phone = a.Phone
	v.rating = a.Rating
	v.userRatingsTotal = a.UserRatingsTotal
	v.priceLevel = a.PriceLevel
	v.types = a.Types
	v.photoReference = a.PhotoReference
	v.reviewCount = a.ReviewCount

	if a.Rating != nil {
		score := Popularity(*a.Rating, a.UserRatingsTotal)
		v.popularityScore = &score
	} else {
		v.popularityScore = nil
	}

	return v.Touched(now)
}

// Touched returns a copy with lastEnriched advanced to now. LastEnriched
// is monotone: an older timestamp never replaces a newer one.
func (v Venue) Touched(now time.Time) Venue {
	if v.lastEnriched != nil && v.lastEnriched.After(now) {
		return v
	}
	t := now
	v.lastEnriched = &t
	return v
}

// HydrateFields carries every persisted column when reconstructing a venue
// from storage.
type HydrateFields struct {
	PlaceID          string
	ScrapedName      string
	CanonicalName    string
	Address          string
	Latitude         *float64
	Longitude        *float64
	City             string
	Country          string
	State            string
	Street           string
	StreetNumber     string
	Neighborhood     string
	PostalCode       string
	Website          string
	Phone            string
	Rating           *float64
	UserRatingsTotal int
	PopularityScore  *float64
	PriceLevel       *int
	Types            []string
	PhotoReference   string
	ReviewCount      int
	LastEnriched     *time.Time
}

// FromHydrateFields reconstructs a persisted Venue.
func FromHydrateFields(f HydrateFields) Venue {
	return Venue{
		placeID:          f.PlaceID,
		scrapedName:      f.ScrapedName,
		canonicalName:    f.CanonicalName,
		address:          f.Address,
		latitude:         f.Latitude,
		longitude:        f.Longitude,
		city:             f.City,
		country:          f.Country,
		state:            f.State,
		street:           f.Street,
		streetNumber:     f.StreetNumber,
		neighborhood:     f.Neighborhood,
		postalCode:       f.PostalCode,
		website:          f.Website,
		phone:            f.Phone,
		rating:           f.Rating,
		userRatingsTotal: f.UserRatingsTotal,
		popularityScore:  f.PopularityScore,
		priceLevel:       f.PriceLevel,
		types:            f.Types,
		photoReference:   f.PhotoReference,
		reviewCount:      f.ReviewCount,
		lastEnriched:     f.LastEnriched,
	}
}
