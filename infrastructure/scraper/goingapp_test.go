package scraper

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGoingAppMap(t *testing.T) {
	adapter := NewGoingApp(3000, nil)

	raw := json.RawMessage(`{
		"name_pl": "Festiwal Lato",
		"artists_names": ["Artystka A", "Zespół B"],
		"start_date_timestamp": 1735689600000,
		"end_date_timestamp": 1735696800,
		"thumbnail": "images/okładka wydarzenia/lato.jpg",
		"slug": "festiwal-lato",
		"rundate_slug": "festiwal-lato-czerwiec",
		"locations_names": ["Warszawa", "Kraków"],
		"place_name": "Park Sowińskiego",
		"category_name": "Festiwale",
		"tags_names": ["Rock Alternatywny", "rock-alternatywny", "Festiwal"],
		"description_pl": "Letni festiwal pod gołym niebem."
	}`)

	doc, err := adapter.Map(raw)
	require.NoError(t, err)

	require.Equal(t, "Festiwal Lato", doc.EventName)
	require.Equal(t, "Artystka A, Zespół B", doc.Artists)
	// Milliseconds collapse to seconds; plain seconds pass through.
	require.Equal(t, "1735689600", doc.StartDate)
	require.Equal(t, "1735696800", doc.EndDate)
	require.Equal(t, "https://queue.goingapp.pl/wydarzenie/festiwal-lato/festiwal-lato-czerwiec", doc.URL)
	require.Equal(t, "Warszawa", doc.Location)
	require.Equal(t, "Park Sowińskiego", doc.Place)
	require.Equal(t, "Festiwale", doc.Category)
	// Tag variants already collapse at mapping time.
	require.Equal(t, "rock alternatywny, festiwal", doc.Tags)
	require.Equal(t, "GoingApp", doc.Source)

	// Path segments are percent-encoded, slashes preserved.
	require.Equal(t,
		"https://res.cloudinary.com/dr89d8ldb/image/upload/c_fill,h_350,w_405/f_webp/q_auto:eco/v1/images/ok%C5%82adka%20wydarzenia/lato.jpg",
		doc.Thumbnail)
}

func TestGoingAppMapMissingFields(t *testing.T) {
	adapter := NewGoingApp(3000, nil)

	doc, err := adapter.Map(json.RawMessage(`{"name_pl": "Bez Daty"}`))
	require.NoError(t, err)

	require.Equal(t, "null", doc.StartDate)
	require.Equal(t, "null", doc.EndDate)
	require.Empty(t, doc.URL)
	require.Empty(t, doc.Thumbnail)
}

func TestGoingAppResponseCollector(t *testing.T) {
	collector := newResponseCollector(3)

	body := []byte(`{"results":[{"hits":[{"a":1},{"a":2}]}]}`)
	require.NoError(t, collector.consume(body))
	require.Equal(t, 2, collector.count())

	// The cap bounds collection.
	require.NoError(t, collector.consume(body))
	require.Equal(t, 3, collector.count())

	records := collector.records()
	require.Len(t, records, 3)
}
