package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/gigradar/gigradar/domain/event"
	"github.com/gigradar/gigradar/infrastructure/persistence"
	"github.com/gigradar/gigradar/infrastructure/provider"
	"github.com/gigradar/gigradar/internal/config"
)

// ErrEmptyQuery indicates an empty recommendation query.
var ErrEmptyQuery = errors.New("query text must not be empty")

// ErrEmbedderUnavailable indicates the embedding provider is
// open-circuit; the read API maps it to 503.
var ErrEmbedderUnavailable = errors.New("embedding provider unavailable")

// Similarity translates free-text queries into ranked events via vector
// nearest-neighbour search. The embed call sits behind its own circuit
// breaker so a dead provider degrades reads fast instead of timing out
// every request.
type Similarity struct {
	events   persistence.EventStore
	embedder provider.Embedder
	breaker  *gobreaker.CircuitBreaker[[]float64]
	logger   *slog.Logger
}

// NewSimilarity creates a Similarity service.
func NewSimilarity(
	events persistence.EventStore,
	embedder provider.Embedder,
	cfg config.ResilienceConfig,
	logger *slog.Logger,
) *Similarity {
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        "embedding",
		MaxRequests: uint32(cfg.BreakerHalfOpen()),
		Timeout:     cfg.BreakerOpenWait(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.BreakerMinCalls()) {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio*100 >= float64(cfg.BreakerFailureRate())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Similarity{
		events:   events,
		embedder: embedder,
		breaker:  gobreaker.NewCircuitBreaker[[]float64](settings),
		logger:   logger,
	}
}

// FindSimilar returns events ordered by ascending cosine distance to the
// query embedding, ties broken by ID. Events already started or lacking a
// venue are filtered out after hydration. An empty result is an empty
// slice, not an error.
func (s *Similarity) FindSimilar(ctx context.Context, queryText string, limit int) ([]event.Event, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 10
	}

	queryVec, err := s.embedQuery(ctx, queryText)
	if err != nil {
		return nil, err
	}

	ids, err := s.events.VectorSearch(ctx, queryVec, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []event.Event{}, nil
	}

	// Hydration does not preserve input order by itself; FindByIDs
	// restores the distance ordering from the ids argument.
	hydrated, err := s.events.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	visible := make([]event.Event, 0, len(hydrated))
	for _, e := range hydrated {
		if e.StartDate().Before(now) {
			continue
		}
		if e.Venue() == nil {
			continue
		}
		visible = append(visible, e)
	}

	s.logger.Debug("similarity query served",
		"matched", len(ids),
		"visible", len(visible),
	)
	return visible, nil
}

func (s *Similarity) embedQuery(ctx context.Context, queryText string) ([]float64, error) {
	vec, err := s.breaker.Execute(func() ([]float64, error) {
		resp, err := s.embedder.Embed(ctx, provider.NewEmbeddingRequest([]string{queryText}))
		if err != nil {
			return nil, err
		}
		embeddings := resp.Embeddings()
		if len(embeddings) != 1 {
			return nil, fmt.Errorf("expected one query vector, got %d", len(embeddings))
		}
		return embeddings[0], nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrEmbedderUnavailable
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil
}
