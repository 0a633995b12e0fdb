package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gigradar/gigradar/application/service"
	"github.com/gigradar/gigradar/domain/event"
	"github.com/gigradar/gigradar/domain/venue"
	"github.com/gigradar/gigradar/infrastructure/api"
	"github.com/gigradar/gigradar/infrastructure/persistence"
	"github.com/gigradar/gigradar/infrastructure/provider"
	"github.com/gigradar/gigradar/internal/config"
	"github.com/gigradar/gigradar/internal/database"
)

const testDimensions = 3

type fixture struct {
	db     database.Database
	events persistence.EventStore
	venues persistence.VenueStore
	router chi.Router
}

// stubEmbedder returns a fixed vector for every text.
type stubEmbedder struct {
	fail bool
}

func (s stubEmbedder) Embed(_ context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	if s.fail {
		return provider.EmbeddingResponse{}, errors.New("provider down")
	}
	out := make([][]float64, len(req.Texts()))
	for i := range out {
		out[i] = []float64{1, 0, 0}
	}
	return provider.NewEmbeddingResponse(out, provider.NewUsage(1, 1)), nil
}

func (stubEmbedder) Dimensions() int { return testDimensions }

func newFixture(t *testing.T, embedder provider.Embedder) *fixture {
	t.Helper()
	db, err := database.New(context.Background(), "sqlite:///"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, persistence.Migrate(db, testDimensions))
	t.Cleanup(func() { _ = db.Close() })

	events := persistence.NewEventStore(db, testDimensions)
	venues := persistence.NewVenueStore(db)
	artists := persistence.NewArtistRegistry(db, nil)
	tags := persistence.NewTagRegistry(db, nil)
	linker := persistence.NewLinker(nil)

	integrator := service.NewIntegrator(db, events, artists, tags, linker, nil, config.NewIntegratorConfig(), nil)
	similarity := service.NewSimilarity(events, embedder, config.NewResilienceConfig(), nil)
	status := service.NewStatus(events, artists, tags, venues, linker, integrator, nil)

	router := chi.NewRouter()
	api.NewEventsRouter(events, venues, similarity, status, integrator, nil, nil).Mount(router)

	return &fixture{db: db, events: events, venues: venues, router: router}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (f *fixture) seedEvent(t *testing.T, url string, withVenue bool) event.Event {
	t.Helper()
	var v *venue.Venue
	if withVenue {
		rating := 4.5
		saved, err := f.venues.Save(context.Background(),
			venue.NewStub("place-1", "Stodoła").Enriched(venue.Attrs{
				CanonicalName:    "Klub Stodoła",
				City:             "Warszawa",
				Rating:           &rating,
				UserRatingsTotal: 500,
			}, time.Now().UTC()))
		require.NoError(t, err)
		v = &saved
	}

	start := time.Now().Add(48 * time.Hour).Unix()
	doc := event.Document{
		EventName:   "Event " + url,
		URL:         url,
		StartDate:   strconv.FormatInt(start, 10),
		EndDate:     strconv.FormatInt(start+3600, 10),
		Category:    "Music",
		Location:    "Warszawa",
		Description: "A concert",
		Source:      "Test",
	}

	var saved event.Event
	err := database.WithTransaction(context.Background(), f.db, func(tx *gorm.DB) error {
		var err error
		saved, err = f.events.Insert(tx, event.FromDocument(doc, time.Now().UTC()).WithVenue(v))
		return err
	})
	require.NoError(t, err)
	return saved
}

func TestListEvents(t *testing.T) {
	f := newFixture(t, stubEmbedder{})
	f.seedEvent(t, "https://example.com/1", true)
	f.seedEvent(t, "https://example.com/2", false) // no venue, not listed

	rec := f.get(t, "/api/events")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data  []api.EventDTO `json:"data"`
		Total int64          `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.EqualValues(t, 1, body.Total)
	require.Len(t, body.Data, 1)
	require.NotNil(t, body.Data[0].Venue)
	require.Equal(t, "Klub Stodoła", body.Data[0].Venue.Name)
}

func TestGetEvent(t *testing.T) {
	f := newFixture(t, stubEmbedder{})
	e := f.seedEvent(t, "https://example.com/1", true)

	rec := f.get(t, "/api/events/"+strconv.FormatInt(e.ID(), 10))
	require.Equal(t, http.StatusOK, rec.Code)

	var dto api.EventDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	require.Equal(t, e.ID(), dto.ID)
	require.Equal(t, "https://example.com/1", dto.URL)
}

func TestGetEventNotFound(t *testing.T) {
	f := newFixture(t, stubEmbedder{})

	rec := f.get(t, "/api/events/9999")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchEventsRequiresQuery(t *testing.T) {
	f := newFixture(t, stubEmbedder{})

	rec := f.get(t, "/api/events/search")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecommendEmptyQueryIsBadRequest(t *testing.T) {
	f := newFixture(t, stubEmbedder{})

	rec := f.get(t, "/api/events/recommend?query=")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecommendReturnsRankedEvents(t *testing.T) {
	f := newFixture(t, stubEmbedder{})
	e := f.seedEvent(t, "https://example.com/1", true)
	require.NoError(t, f.events.SetEmbedding(context.Background(), e.ID(), []float64{1, 0, 0}))

	rec := f.get(t, "/api/events/recommend?query=rock+concert")
	require.Equal(t, http.StatusOK, rec.Code)

	var dtos []api.EventDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dtos))
	require.Len(t, dtos, 1)
	require.Equal(t, e.ID(), dtos[0].ID)
}

func TestRecommendEmptyIndexReturnsEmptyArray(t *testing.T) {
	f := newFixture(t, stubEmbedder{})

	rec := f.get(t, "/api/events/recommend?query=anything")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t, stubEmbedder{})
	f.seedEvent(t, "https://example.com/1", true)

	rec := f.get(t, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var report service.StatusReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.EqualValues(t, 1, report.TotalEvents)
	require.EqualValues(t, 1, report.TotalVenues)
	require.EqualValues(t, 1, report.PendingEmbeddings)
}

func TestClearCachesEndpoint(t *testing.T) {
	f := newFixture(t, stubEmbedder{})

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/caches/clear", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTopVenues(t *testing.T) {
	f := newFixture(t, stubEmbedder{})
	f.seedEvent(t, "https://example.com/1", true)

	rec := f.get(t, "/api/venues/top?city=Warszawa")
	require.Equal(t, http.StatusOK, rec.Code)

	var dtos []api.VenueDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dtos))
	require.Len(t, dtos, 1)
	require.Equal(t, "place-1", dtos[0].PlaceID)

	rec = f.get(t, "/api/venues/top")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
