package persistence

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/gigradar/gigradar/internal/database"
)

// vectorSearchInProcess ranks stored embeddings by cosine distance in Go.
// SQLite has no vector type, so the "[...]" literals written by
// SetEmbedding are parsed and scored here. Ordering matches the PostgreSQL
// path exactly: ascending distance, ties broken by ID.
func (s EventStore) vectorSearchInProcess(ctx context.Context, query []float64, limit int) ([]int64, error) {
	var rows []struct {
		ID        int64
		Embedding string
	}
	err := s.db.Session(ctx).
		Raw(`SELECT id, embedding FROM events WHERE embedding IS NOT NULL`).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}

	type scored struct {
		id       int64
		distance float64
	}
	matches := make([]scored, 0, len(rows))
	for _, row := range rows {
		stored, err := database.ParseVectorOfDim(row.Embedding, len(query))
		if err != nil {
			// A malformed or wrong-dimension literal cannot be ranked;
			// skip it rather than failing the whole query.
			continue
		}
		matches = append(matches, scored{id: row.ID, distance: cosineDistance(query, stored)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].id < matches[j].id
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.id
	}
	return ids, nil
}

// cosineDistance returns 1 - cos(u, v). Zero vectors are maximally
// distant.
func cosineDistance(u, v []float64) float64 {
	var dot, normU, normV float64
	for i := range u {
		dot += u[i] * v[i]
		normU += u[i] * u[i]
		normV += v[i] * v[i]
	}
	if normU == 0 || normV == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normU)*math.Sqrt(normV))
}
