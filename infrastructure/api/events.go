package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gigradar/gigradar/application/service"
	"github.com/gigradar/gigradar/domain/event"
	"github.com/gigradar/gigradar/domain/venue"
	"github.com/gigradar/gigradar/infrastructure/persistence"
)

// EventDTO is the wire representation of an event.
type EventDTO struct {
	ID          int64     `json:"id"`
	EventName   string    `json:"event_name"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Thumbnail   string    `json:"thumbnail"`
	URL         string    `json:"url"`
	Location    string    `json:"location"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	Artists     []string  `json:"artists"`
	Tags        []string  `json:"tags"`
	Venue       *VenueDTO `json:"venue,omitempty"`
}

// VenueDTO is the wire representation of a venue.
type VenueDTO struct {
	PlaceID         string   `json:"place_id"`
	Name            string   `json:"name"`
	Address         string   `json:"address"`
	City            string   `json:"city"`
	Country         string   `json:"country"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	RatingsTotal    int      `json:"ratings_total"`
	PopularityScore *float64 `json:"popularity_score,omitempty"`
	Website         string   `json:"website,omitempty"`
}

// EventsRouter serves the event read API.
type EventsRouter struct {
	events     persistence.EventStore
	venues     persistence.VenueStore
	similarity *service.Similarity
	status     *service.Status
	integrator *service.Integrator
	clearPlace func()
	logger     *slog.Logger
}

// NewEventsRouter creates an EventsRouter. clearPlaceCache may be nil when
// enrichment is disabled.
func NewEventsRouter(
	events persistence.EventStore,
	venues persistence.VenueStore,
	similarity *service.Similarity,
	status *service.Status,
	integrator *service.Integrator,
	clearPlaceCache func(),
	logger *slog.Logger,
) *EventsRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsRouter{
		events:     events,
		venues:     venues,
		similarity: similarity,
		status:     status,
		integrator: integrator,
		clearPlace: clearPlaceCache,
		logger:     logger,
	}
}

// Mount registers all routes under /api.
func (rt *EventsRouter) Mount(router chi.Router) {
	router.Route("/api", func(r chi.Router) {
		r.Get("/events", rt.ListEvents)
		r.Get("/events/search", rt.SearchEvents)
		r.Get("/events/recommend", rt.Recommend)
		r.Get("/events/{id}", rt.GetEvent)
		r.Get("/venues/top", rt.TopVenues)
		r.Get("/status", rt.Status)
		r.Post("/admin/caches/clear", rt.ClearCaches)
	})
}

// ListEvents handles GET /api/events: paginated, filterable listing of
// upcoming events that have a venue, ordered by start date.
func (rt *EventsRouter) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := persistence.ListQuery{
		Category: r.URL.Query().Get("category"),
		Location: r.URL.Query().Get("location"),
		Artist:   r.URL.Query().Get("artist"),
		Tag:      r.URL.Query().Get("tag"),
		Page:     queryInt(r, "page", 0),
		Size:     queryInt(r, "size", 20),
		SortDesc: r.URL.Query().Get("direction") == "desc",
	}

	events, total, err := rt.events.List(r.Context(), q)
	if err != nil {
		WriteError(w, err, rt.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"data":  toEventDTOs(events),
		"total": total,
		"page":  q.Page,
		"size":  q.Size,
	})
}

// GetEvent handles GET /api/events/{id}.
func (rt *EventsRouter) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event id"})
		return
	}

	e, err := rt.events.ByID(r.Context(), id)
	if err != nil {
		WriteError(w, err, rt.logger)
		return
	}

	WriteJSON(w, http.StatusOK, toEventDTO(e))
}

// SearchEvents handles GET /api/events/search: trivial substring search.
func (rt *EventsRouter) SearchEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter required"})
		return
	}

	events, err := rt.events.Search(r.Context(), query, queryInt(r, "limit", 20))
	if err != nil {
		WriteError(w, err, rt.logger)
		return
	}

	WriteJSON(w, http.StatusOK, toEventDTOs(events))
}

// Recommend handles GET /api/events/recommend: vector similarity over the
// stored embeddings. Responds 400 on an empty query and 503 while the
// embedding provider is open-circuit.
func (rt *EventsRouter) Recommend(w http.ResponseWriter, r *http.Request) {
	events, err := rt.similarity.FindSimilar(r.Context(), r.URL.Query().Get("query"), queryInt(r, "limit", 5))
	if err != nil {
		WriteError(w, err, rt.logger)
		return
	}

	WriteJSON(w, http.StatusOK, toEventDTOs(events))
}

// TopVenues handles GET /api/venues/top?city=: the most popular venues in
// a city.
func (rt *EventsRouter) TopVenues(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city == "" {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "city parameter required"})
		return
	}

	venues, err := rt.venues.TopByCity(r.Context(), city, queryInt(r, "limit", 10))
	if err != nil {
		WriteError(w, err, rt.logger)
		return
	}

	dtos := make([]VenueDTO, len(venues))
	for i, v := range venues {
		dtos[i] = *toVenueDTO(&v)
	}
	WriteJSON(w, http.StatusOK, dtos)
}

// Status handles GET /api/status: aggregated pipeline statistics.
func (rt *EventsRouter) Status(w http.ResponseWriter, r *http.Request) {
	report, err := rt.status.Collect(r.Context())
	if err != nil {
		WriteError(w, err, rt.logger)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// ClearCaches handles POST /api/admin/caches/clear: resets the URL cache,
// the name→ID caches and the place ID cache.
func (rt *EventsRouter) ClearCaches(w http.ResponseWriter, _ *http.Request) {
	rt.integrator.ClearCaches()
	if rt.clearPlace != nil {
		rt.clearPlace()
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "caches cleared"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func toEventDTOs(events []event.Event) []EventDTO {
	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	return dtos
}

func toEventDTO(e event.Event) EventDTO {
	artists := make([]string, len(e.Artists()))
	for i, a := range e.Artists() {
		artists[i] = a.Name()
	}
	tags := make([]string, len(e.Tags()))
	for i, t := range e.Tags() {
		tags[i] = t.Name()
	}

	return EventDTO{
		ID:          e.ID(),
		EventName:   e.Name(),
		StartDate:   e.StartDate(),
		EndDate:     e.EndDate(),
		Thumbnail:   e.Thumbnail(),
		URL:         e.URL(),
		Location:    e.Location(),
		Category:    e.Category(),
		Description: e.Description(),
		Source:      e.Source(),
		Artists:     artists,
		Tags:        tags,
		Venue:       toVenueDTO(e.Venue()),
	}
}

func toVenueDTO(v *venue.Venue) *VenueDTO {
	if v == nil {
		return nil
	}

	name := v.CanonicalName()
	if name == "" {
		name = v.ScrapedName()
	}

	return &VenueDTO{
		PlaceID:         v.PlaceID(),
		Name:            name,
		Address:         v.Address(),
		City:            v.City(),
		Country:         v.Country(),
		Latitude:        v.Latitude(),
		Longitude:       v.Longitude(),
		Rating:          v.Rating(),
		RatingsTotal:    v.UserRatingsTotal(),
		PopularityScore: v.PopularityScore(),
		Website:         v.Website(),
	}
}
