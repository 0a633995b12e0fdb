package persistence_test

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gigradar/gigradar/domain/event"
	"github.com/gigradar/gigradar/domain/venue"
	"github.com/gigradar/gigradar/infrastructure/persistence"
	"github.com/gigradar/gigradar/internal/database"
)

const testDimensions = 3

func testDB(t *testing.T) database.Database {
	t.Helper()
	db, err := database.New(context.Background(), "sqlite:///"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, persistence.Migrate(db, testDimensions))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func insertEvent(t *testing.T, db database.Database, store persistence.EventStore, doc event.Document) event.Event {
	t.Helper()
	var saved event.Event
	err := database.WithTransaction(context.Background(), db, func(tx *gorm.DB) error {
		var err error
		saved, err = store.Insert(tx, event.FromDocument(doc, time.Now().UTC()))
		return err
	})
	require.NoError(t, err)
	return saved
}

func futureDoc(url string) event.Document {
	start := time.Now().Add(24 * time.Hour).Unix()
	return event.Document{
		EventName:   "Event " + url,
		URL:         url,
		StartDate:   strconv.FormatInt(start, 10),
		EndDate:     strconv.FormatInt(start+3600, 10),
		Category:    "Music",
		Location:    "Warszawa",
		Description: "A concert",
		Source:      "Test",
	}
}

func savedVenue(t *testing.T, db database.Database, placeID string) venue.Venue {
	t.Helper()
	store := persistence.NewVenueStore(db)
	rating := 4.5
	v := venue.NewStub(placeID, "Scraped Name").Enriched(venue.Attrs{
		CanonicalName:    "Canonical " + placeID,
		City:             "Warszawa",
		Rating:           &rating,
		UserRatingsTotal: 300,
	}, time.Now().UTC())

	saved, err := store.Save(context.Background(), v)
	require.NoError(t, err)
	return saved
}
