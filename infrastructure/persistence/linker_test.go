package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gigradar/gigradar/infrastructure/persistence"
	"github.com/gigradar/gigradar/internal/database"
)

func countRows(t *testing.T, db database.Database, table string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Session(context.Background()).Table(table).Count(&count).Error)
	return count
}

func TestLinkerInsertsPairs(t *testing.T) {
	db := testDB(t)
	linker := persistence.NewLinker(nil)
	store := persistence.NewEventStore(db, testDimensions)
	e := insertEvent(t, db, store, futureDoc("https://example.com/1"))

	err := database.WithTransaction(context.Background(), db, func(tx *gorm.DB) error {
		return linker.LinkArtists(tx, e.ID(), []int64{10, 20, 30})
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, countRows(t, db, "event_artists"))
}

func TestLinkerIdempotent(t *testing.T) {
	db := testDB(t)
	linker := persistence.NewLinker(nil)
	store := persistence.NewEventStore(db, testDimensions)
	e := insertEvent(t, db, store, futureDoc("https://example.com/1"))
	ctx := context.Background()

	link := func(ids []int64) {
		t.Helper()
		err := database.WithTransaction(ctx, db, func(tx *gorm.DB) error {
			return linker.LinkTags(tx, e.ID(), ids)
		})
		require.NoError(t, err)
	}

	link([]int64{1, 2})
	link([]int64{1, 2})
	require.EqualValues(t, 2, countRows(t, db, "event_tags"))

	// A partially overlapping call only adds the new pair.
	link([]int64{2, 3})
	require.EqualValues(t, 3, countRows(t, db, "event_tags"))
}

func TestLinkerSkipsZeroAndDuplicateIDs(t *testing.T) {
	db := testDB(t)
	linker := persistence.NewLinker(nil)
	store := persistence.NewEventStore(db, testDimensions)
	e := insertEvent(t, db, store, futureDoc("https://example.com/1"))

	err := database.WithTransaction(context.Background(), db, func(tx *gorm.DB) error {
		return linker.LinkArtists(tx, e.ID(), []int64{0, 5, 5})
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, countRows(t, db, "event_artists"))
}

func TestLinkerNoEventNoPairs(t *testing.T) {
	db := testDB(t)
	linker := persistence.NewLinker(nil)

	err := database.WithTransaction(context.Background(), db, func(tx *gorm.DB) error {
		if err := linker.LinkArtists(tx, 0, []int64{1}); err != nil {
			return err
		}
		return linker.LinkArtists(tx, 1, nil)
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, countRows(t, db, "event_artists"))
}
