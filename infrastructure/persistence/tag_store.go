package persistence

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/gigradar/gigradar/domain/tag"
	"github.com/gigradar/gigradar/internal/database"
)

// TagRegistry resolves tag names to persisted tags, creating missing ones
// in batch. Names are normalized before lookup, so spelling variants of
// the same tag land on one row.
type TagRegistry struct {
	registry *nameRegistry
	db       database.Database
}

// NewTagRegistry creates a TagRegistry.
func NewTagRegistry(db database.Database, logger *slog.Logger) *TagRegistry {
	return &TagRegistry{
		registry: newNameRegistry("tags", "tag_name", "tag", logger),
		db:       db,
	}
}

// FindOrCreateByName resolves the given names to tags inside the supplied
// session, creating any that do not exist yet. The returned map is keyed
// by normalized name; inputs that normalize to the empty string are
// dropped.
func (r *TagRegistry) FindOrCreateByName(tx *gorm.DB, names []string) (map[string]tag.Tag, error) {
	normalized := tag.NormalizeAll(names)

	ids, err := r.registry.findOrCreate(tx, normalized)
	if err != nil {
		return nil, err
	}

	result := make(map[string]tag.Tag, len(ids))
	for name, id := range ids {
		result[name] = tag.Hydrate(id, name)
	}
	return result, nil
}

// Count returns the total number of tags.
func (r *TagRegistry) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Session(ctx).Model(&TagModel{}).Count(&count).Error
	return count, err
}

// CachedCount returns the number of cached name→ID entries.
func (r *TagRegistry) CachedCount() int {
	return r.registry.cachedCount()
}

// ClearCache drops the in-process cache.
func (r *TagRegistry) ClearCache() {
	r.registry.clear()
}
