package persistence

import (
	"context"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/gigradar/gigradar/domain/artist"
	"github.com/gigradar/gigradar/internal/database"
)

// ArtistRegistry resolves artist names to persisted artists, creating
// missing ones in batch.
type ArtistRegistry struct {
	registry *nameRegistry
	db       database.Database
}

// NewArtistRegistry creates an ArtistRegistry.
func NewArtistRegistry(db database.Database, logger *slog.Logger) *ArtistRegistry {
	return &ArtistRegistry{
		registry: newNameRegistry("artists", "artist_name", "artist", logger),
		db:       db,
	}
}

// FindOrCreateByName resolves the given names to artists inside the
// supplied session, creating any that do not exist yet. Names are trimmed
// and empty entries dropped; matching is case-sensitive. The returned map
// covers every valid name.
func (r *ArtistRegistry) FindOrCreateByName(tx *gorm.DB, names []string) (map[string]artist.Artist, error) {
	valid := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		valid = append(valid, trimmed)
	}

	ids, err := r.registry.findOrCreate(tx, valid)
	if err != nil {
		return nil, err
	}

	result := make(map[string]artist.Artist, len(ids))
	for name, id := range ids {
		result[name] = artist.Hydrate(id, name)
	}
	return result, nil
}

// Count returns the total number of artists.
func (r *ArtistRegistry) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Session(ctx).Model(&ArtistModel{}).Count(&count).Error
	return count, err
}

// CachedCount returns the number of cached name→ID entries.
func (r *ArtistRegistry) CachedCount() int {
	return r.registry.cachedCount()
}

// ClearCache drops the in-process cache.
func (r *ArtistRegistry) ClearCache() {
	r.registry.clear()
}
