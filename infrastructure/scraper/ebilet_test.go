package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// newEbiletServer serves `total` titles through the paged listing API.
func newEbiletServer(t *testing.T, total int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/TitleListing/Search", r.URL.Path)
		top, _ := strconv.Atoi(r.URL.Query().Get("top"))
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))

		var titles []map[string]any
		for i := top; i < min(top+size, total); i++ {
			titles = append(titles, map[string]any{
				"title":  fmt.Sprintf("Event %d", i),
				"linkTo": fmt.Sprintf("/koncerty/event-%d", i),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"titles": titles})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestEbiletFetchPagesUntilEmpty(t *testing.T) {
	server := newEbiletServer(t, 45)
	adapter := NewEbilet(3000, nil, WithEbiletBaseURL(server.URL))

	records, err := adapter.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 45)
}

func TestEbiletFetchHonorsCap(t *testing.T) {
	server := newEbiletServer(t, 100)
	adapter := NewEbilet(30, nil, WithEbiletBaseURL(server.URL))

	records, err := adapter.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 30)
}

func TestEbiletFetchReturnsPartialOnError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"titles": []map[string]any{{"title": "Only One", "linkTo": "/e/1"}},
		})
	}))
	t.Cleanup(server.Close)

	adapter := NewEbilet(3000, nil, WithEbiletBaseURL(server.URL))
	records, err := adapter.Fetch(context.Background())

	require.Error(t, err)
	require.Len(t, records, 1)
}

func TestEbiletMap(t *testing.T) {
	adapter := NewEbilet(3000, nil)

	raw := json.RawMessage(`{
		"title": "Koncert Jesienny",
		"subtitle": "Trasa 2025",
		"categoryName": "Muzyka",
		"subcategoryName": "Rock",
		"dateFrom": "2025-10-04T20:00:00",
		"dateTo": "2025-10-04T23:00:00",
		"imageLandscape": "/img/koncert.jpg",
		"linkTo": "/muzyka/koncert-jesienny",
		"place": "Klub Stodoła",
		"city": "Warszawa",
		"artists": ["Zespół A", "Zespół B"],
		"description": "Jesienny koncert w Stodole."
	}`)

	doc, err := adapter.Map(raw)
	require.NoError(t, err)

	require.Equal(t, "Koncert Jesienny", doc.EventName)
	require.Equal(t, "https://www.ebilet.pl/muzyka/koncert-jesienny", doc.URL)
	require.Equal(t, "https://www.ebilet.pl/img/koncert.jpg", doc.Thumbnail)
	require.Equal(t, "Warszawa", doc.Location)
	require.Equal(t, "Klub Stodoła", doc.Place)
	require.Equal(t, "Muzyka", doc.Category)
	require.Equal(t, "Rock", doc.Tags)
	require.Equal(t, "Zespół A, Zespół B", doc.Artists)
	require.Equal(t, "Ebilet", doc.Source)

	// dateFrom parses as UTC epoch seconds.
	require.Equal(t, "1759608000", doc.StartDate)
}

func TestEbiletMapMissingDates(t *testing.T) {
	adapter := NewEbilet(3000, nil)

	doc, err := adapter.Map(json.RawMessage(`{"title": "No Dates", "linkTo": "/e/2"}`))
	require.NoError(t, err)
	require.Equal(t, "null", doc.StartDate)
	require.Equal(t, "null", doc.EndDate)
}
