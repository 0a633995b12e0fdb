package venue_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gigradar/gigradar/domain/venue"
)

func TestPopularityFormula(t *testing.T) {
	// rating=4.6, total=1200: confidence caps at 1 because
	// log(1201)/log(501) > 1.
	got := venue.Popularity(4.6, 1200)

	confidence := math.Min(1, math.Log(1201)/math.Log(501))
	bayes := 0.92*confidence + 0.8*(1-confidence)
	want := (0.7*bayes + 0.3*confidence) * 100

	require.InDelta(t, want, got, 1e-9)
	require.GreaterOrEqual(t, got, 80.0)
	require.LessOrEqual(t, got, 95.0)
}

func TestPopularityZeroRatings(t *testing.T) {
	// With no ratings the Bayesian average collapses to the global mean
	// and the quantity boost is zero: 0.7 * 0.8 * 100.
	require.InDelta(t, 56.0, venue.Popularity(0, 0), 1e-9)
}

func TestPopularityMonotoneInRating(t *testing.T) {
	prev := -1.0
	for rating := 0.0; rating <= 5.0; rating += 0.5 {
		score := venue.Popularity(rating, 200)
		require.Greater(t, score, prev, "rating %.1f", rating)
		prev = score
	}
}

func TestPopularityMonotoneInVolumeAboveGlobalMean(t *testing.T) {
	// With rating above the 4.0 global mean, more ratings mean both more
	// confidence in the high rating and a bigger quantity boost.
	prev := -1.0
	for _, total := range []int{0, 1, 10, 50, 100, 400} {
		score := venue.Popularity(4.5, total)
		require.Greater(t, score, prev, "total %d", total)
		prev = score
	}

	// Confidence caps at 500 ratings; beyond that the score plateaus.
	require.InDelta(t, venue.Popularity(4.5, 500), venue.Popularity(4.5, 5000), 1e-9)
}

func TestPopularityBounds(t *testing.T) {
	require.LessOrEqual(t, venue.Popularity(5, 1_000_000), 100.0)
	require.GreaterOrEqual(t, venue.Popularity(0, 0), 0.0)
}

func TestEnrichedComputesScoreAndStampsTime(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rating := 4.6

	v := venue.NewStub("place-1", "Klub Stodoła").Enriched(venue.Attrs{
		CanonicalName:    "Stodoła",
		City:             "Warszawa",
		Rating:           &rating,
		UserRatingsTotal: 1200,
	}, now)

	require.NotNil(t, v.PopularityScore())
	require.InDelta(t, venue.Popularity(4.6, 1200), *v.PopularityScore(), 1e-9)
	require.NotNil(t, v.LastEnriched())
	require.Equal(t, now, *v.LastEnriched())
}

func TestEnrichedNilRatingNilScore(t *testing.T) {
	v := venue.NewStub("place-1", "Somewhere").Enriched(venue.Attrs{}, time.Now())

	require.Nil(t, v.Rating())
	require.Nil(t, v.PopularityScore())
}

func TestStale(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	horizon := 30 * 24 * time.Hour

	stub := venue.NewStub("place-1", "Somewhere")
	require.True(t, stub.Stale(now, horizon))

	fresh := stub.Touched(now.Add(-time.Hour))
	require.False(t, fresh.Stale(now, horizon))

	old := stub.Touched(now.Add(-31 * 24 * time.Hour))
	require.True(t, old.Stale(now, horizon))
}

func TestTouchedMonotone(t *testing.T) {
	later := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	earlier := later.Add(-24 * time.Hour)

	v := venue.NewStub("place-1", "Somewhere").Touched(later).Touched(earlier)

	require.Equal(t, later, *v.LastEnriched())
}
