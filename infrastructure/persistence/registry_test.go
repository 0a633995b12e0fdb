package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gigradar/gigradar/infrastructure/persistence"
)

func TestArtistRegistryFindOrCreate(t *testing.T) {
	db := testDB(t)
	registry := persistence.NewArtistRegistry(db, nil)
	ctx := context.Background()

	first, err := registry.FindOrCreateByName(db.Session(ctx), []string{"Artist A", " Artist B ", "", "Artist A"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotZero(t, first["Artist A"].ID())
	require.NotZero(t, first["Artist B"].ID())

	// Resolving again returns identical IDs and creates nothing.
	second, err := registry.FindOrCreateByName(db.Session(ctx), []string{"Artist A", "Artist B"})
	require.NoError(t, err)
	require.Equal(t, first["Artist A"].ID(), second["Artist A"].ID())
	require.Equal(t, first["Artist B"].ID(), second["Artist B"].ID())

	count, err := registry.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestArtistRegistryCaseSensitive(t *testing.T) {
	db := testDB(t)
	registry := persistence.NewArtistRegistry(db, nil)
	ctx := context.Background()

	result, err := registry.FindOrCreateByName(db.Session(ctx), []string{"dj example", "DJ Example"})
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.NotEqual(t, result["dj example"].ID(), result["DJ Example"].ID())
}

func TestArtistRegistrySurvivesColdCache(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first := persistence.NewArtistRegistry(db, nil)
	created, err := first.FindOrCreateByName(db.Session(ctx), []string{"Artist A"})
	require.NoError(t, err)

	// A fresh registry (empty cache) resolves the same row from the
	// database instead of recreating it.
	second := persistence.NewArtistRegistry(db, nil)
	resolved, err := second.FindOrCreateByName(db.Session(ctx), []string{"Artist A"})
	require.NoError(t, err)
	require.Equal(t, created["Artist A"].ID(), resolved["Artist A"].ID())

	count, err := second.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestTagRegistryNormalizesVariants(t *testing.T) {
	db := testDB(t)
	registry := persistence.NewTagRegistry(db, nil)
	ctx := context.Background()

	result, err := registry.FindOrCreateByName(db.Session(ctx),
		[]string{"Rock Alternatywny", "rock-alternatywny", "Rock_Alternatywny"})
	require.NoError(t, err)

	// All three variants normalize to one tag row.
	require.Len(t, result, 1)
	tag, ok := result["rock alternatywny"]
	require.True(t, ok)
	require.Equal(t, "rock alternatywny", tag.Name())

	count, err := registry.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestRegistryCacheBookkeeping(t *testing.T) {
	db := testDB(t)
	registry := persistence.NewTagRegistry(db, nil)
	ctx := context.Background()

	_, err := registry.FindOrCreateByName(db.Session(ctx), []string{"rock", "pop"})
	require.NoError(t, err)
	require.Equal(t, 2, registry.CachedCount())

	registry.ClearCache()
	require.Zero(t, registry.CachedCount())

	// The rows survive a cache clear.
	count, err := registry.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}
