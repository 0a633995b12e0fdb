package places

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://places.test/maps/api"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return NewClient("test-key", nil,
		WithBaseURL(testBaseURL),
		WithHTTPClient(httpClient),
	)
}

func TestTextSearchReturnsFirstPlaceID(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/place/textsearch/json",
		httpmock.NewStringResponder(200, `{
			"status": "OK",
			"results": [
				{"place_id": "ChIJ123", "name": "Klub Stodoła"},
				{"place_id": "ChIJ456", "name": "Other"}
			]
		}`))

	placeID, err := client.TextSearch(context.Background(), "Stodoła", "Warszawa")
	require.NoError(t, err)
	require.Equal(t, "ChIJ123", placeID)
}

func TestTextSearchZeroResults(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/place/textsearch/json",
		httpmock.NewStringResponder(200, `{"status": "ZERO_RESULTS", "results": []}`))

	placeID, err := client.TextSearch(context.Background(), "Nowhere", "")
	require.NoError(t, err)
	require.Empty(t, placeID)
}

func TestTextSearchDeniedIsPermanent(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/place/textsearch/json",
		httpmock.NewStringResponder(200, `{"status": "REQUEST_DENIED", "error_message": "bad key"}`))

	_, err := client.TextSearch(context.Background(), "Stodoła", "Warszawa")
	require.ErrorIs(t, err, ErrPermanent)
}

func TestTextSearchQuotaIsTransient(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/place/textsearch/json",
		httpmock.NewStringResponder(200, `{"status": "OVER_QUERY_LIMIT"}`))

	_, err := client.TextSearch(context.Background(), "Stodoła", "Warszawa")
	require.ErrorIs(t, err, ErrTransient)
}

func TestTextSearchServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/place/textsearch/json",
		httpmock.NewStringResponder(503, "unavailable"))

	_, err := client.TextSearch(context.Background(), "Stodoła", "Warszawa")
	require.ErrorIs(t, err, ErrTransient)
}

func TestDetailsParsesAttributes(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/place/details/json",
		httpmock.NewStringResponder(200, `{
			"status": "OK",
			"result": {
				"name": "Klub Stodoła",
				"formatted_address": "Batorego 10, 02-591 Warszawa",
				"website": "https://stodola.pl",
				"formatted_phone_number": "+48 22 825 60 31",
				"rating": 4.6,
				"user_ratings_total": 1200,
				"price_level": 2,
				"types": ["night_club", "point_of_interest"],
				"geometry": {"location": {"lat": 52.209, "lng": 21.008}},
				"photos": [{"photo_reference": "ref-1"}, {"photo_reference": "ref-2"}],
				"reviews": [{"rating": 5}, {"rating": 4}, {"rating": 5}],
				"address_components": [
					{"long_name": "Warszawa", "types": ["locality", "political"]},
					{"long_name": "Polska", "types": ["country", "political"]},
					{"long_name": "02-591", "types": ["postal_code"]},
					{"long_name": "Mokotów", "types": ["sublocality_level_1", "sublocality"]},
					{"long_name": "Stefana Batorego", "types": ["route"]},
					{"long_name": "10", "types": ["street_number"]}
				]
			}
		}`))

	attrs, err := client.Details(context.Background(), "ChIJ123")
	require.NoError(t, err)

	require.Equal(t, "Klub Stodoła", attrs.CanonicalName)
	require.Equal(t, "Batorego 10, 02-591 Warszawa", attrs.Address)
	require.Equal(t, "https://stodola.pl", attrs.Website)
	require.NotNil(t, attrs.Rating)
	require.Equal(t, 4.6, *attrs.Rating)
	require.Equal(t, 1200, attrs.UserRatingsTotal)
	require.NotNil(t, attrs.PriceLevel)
	require.Equal(t, 2, *attrs.PriceLevel)
	require.Equal(t, []string{"night_club", "point_of_interest"}, attrs.Types)
	require.NotNil(t, attrs.Latitude)
	require.InDelta(t, 52.209, *attrs.Latitude, 1e-9)
	require.Equal(t, "ref-1", attrs.PhotoReference)
	require.Equal(t, 3, attrs.ReviewCount)
	require.Equal(t, "Warszawa", attrs.City)
	require.Equal(t, "Polska", attrs.Country)
	require.Equal(t, "02-591", attrs.PostalCode)
	require.Equal(t, "Mokotów", attrs.Neighborhood)
	require.Equal(t, "Stefana Batorego", attrs.Street)
	require.Equal(t, "10", attrs.StreetNumber)
}

func TestDetailsNotOKStatus(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/place/details/json",
		httpmock.NewStringResponder(200, `{"status": "NOT_FOUND"}`))

	_, err := client.Details(context.Background(), "ChIJ123")
	require.ErrorIs(t, err, ErrPermanent)
}
