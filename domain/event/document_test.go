package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gigradar/gigradar/domain/event"
)

func TestParseTimestampSeconds(t *testing.T) {
	got := event.ParseTimestamp("1735689600")

	require.NotNil(t, got)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *got)
}

func TestParseTimestampMilliseconds(t *testing.T) {
	// More than 10 digits means milliseconds; both encodings of the same
	// instant must agree.
	millis := event.ParseTimestamp("1735689600000")
	seconds := event.ParseTimestamp("1735689600")

	require.NotNil(t, millis)
	require.NotNil(t, seconds)
	require.LessOrEqual(t, millis.Sub(*seconds).Abs(), time.Second)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *millis)
}

func TestParseTimestampInvalid(t *testing.T) {
	require.Nil(t, event.ParseTimestamp(""))
	require.Nil(t, event.ParseTimestamp("null"))
	require.Nil(t, event.ParseTimestamp("next tuesday"))
	require.Nil(t, event.ParseTimestamp("12.5"))
}

func TestFromDocumentDefaultsDates(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	e := event.FromDocument(event.Document{
		EventName: "Concert",
		URL:       "https://example.com/concert",
		StartDate: "null",
		EndDate:   "null",
	}, now)

	require.True(t, e.DatesDefaulted())
	require.Equal(t, now, e.StartDate())
	require.Equal(t, now.Add(time.Hour), e.EndDate())
}

func TestFromDocumentKeepsParsedDates(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	e := event.FromDocument(event.Document{
		URL:       "https://example.com/concert",
		StartDate: "1735689600",
		EndDate:   "1735696800",
	}, now)

	require.False(t, e.DatesDefaulted())
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), e.StartDate())
	require.Equal(t, time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC), e.EndDate())
}

func TestParseNames(t *testing.T) {
	got := event.ParseNames("  Artist One ,Artist Two,, Artist One ,")

	require.Equal(t, []string{"Artist One", "Artist Two"}, got)
}

func TestMaterialChangeFrom(t *testing.T) {
	now := time.Now()
	base := event.FromDocument(event.Document{
		EventName:   "Concert",
		URL:         "https://example.com/1",
		Category:    "Music",
		Description: "A concert",
		StartDate:   "1735689600",
		EndDate:     "1735696800",
	}, now)

	renamed := event.FromDocument(event.Document{
		EventName:   "Concert (Rescheduled)",
		URL:         "https://example.com/1",
		Category:    "Music",
		Description: "A concert",
		StartDate:   "1735689600",
		EndDate:     "1735696800",
	}, now)

	relocated := event.FromDocument(event.Document{
		EventName:   "Concert",
		URL:         "https://example.com/1",
		Category:    "Music",
		Description: "A concert",
		Location:    "Elsewhere",
		StartDate:   "1735689600",
		EndDate:     "1735696800",
	}, now)

	require.True(t, base.MaterialChangeFrom(renamed))
	require.False(t, base.MaterialChangeFrom(relocated))
}
