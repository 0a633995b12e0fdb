package persistence

import (
	"fmt"
	"log/slog"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/gigradar/gigradar/internal/database"
)

// nameRegistry is the shared find-or-create core behind the artist and tag
// registries: an in-process name→ID cache in front of one batched lookup
// and one batched insert, all joining the caller's transaction. Concurrent
// inserts of the same name are resolved by re-reading after a unique
// violation, never by failing the caller.
type nameRegistry struct {
	cache  *gocache.Cache
	table  string
	column string
	label  string
	logger *slog.Logger
}

func newNameRegistry(table, column, label string, logger *slog.Logger) *nameRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &nameRegistry{
		cache:  gocache.New(gocache.NoExpiration, 0),
		table:  table,
		column: column,
		label:  label,
		logger: logger,
	}
}

type nameRow struct {
	ID   int64
	Name string
}

// findOrCreate resolves every name to an ID, creating missing rows inside
// the supplied session. The returned map covers every supplied name.
func (r *nameRegistry) findOrCreate(tx *gorm.DB, names []string) (map[string]int64, error) {
	result := make(map[string]int64, len(names))
	if len(names) == 0 {
		return result, nil
	}

	var misses []string
	for _, name := range names {
		if id, ok := r.cache.Get(name); ok {
			result[name] = id.(int64)
		} else {
			misses = append(misses, name)
		}
	}
	if len(misses) == 0 {
		return result, nil
	}

	found, err := r.lookup(tx, misses)
	if err != nil {
		return nil, err
	}
	missing := r.merge(result, misses, found)
	if len(missing) == 0 {
		return result, nil
	}

	if err := r.insert(tx, missing); err != nil {
		return nil, err
	}

	// Re-read regardless of insert outcome: it resolves both our own
	// freshly generated IDs and rows a concurrent worker slipped in.
	found, err = r.lookup(tx, missing)
	if err != nil {
		return nil, err
	}
	missing = r.merge(result, missing, found)
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s registry failed to resolve %d names", r.label, len(missing))
	}

	return result, nil
}

func (r *nameRegistry) lookup(tx *gorm.DB, names []string) (map[string]int64, error) {
	var rows []nameRow
	query := fmt.Sprintf(`SELECT id, %s AS name FROM %s WHERE %s IN ?`, r.column, r.table, r.column)
	if err := tx.Raw(query, names).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: lookup %s names: %w", database.ErrBackendUnavailable, r.label, err)
	}

	found := make(map[string]int64, len(rows))
	for _, row := range rows {
		found[row.Name] = row.ID
	}
	return found, nil
}

// merge moves found names into result, populates the cache, and returns
// the names still unresolved.
func (r *nameRegistry) merge(result map[string]int64, names []string, found map[string]int64) []string {
	var missing []string
	for _, name := range names {
		if id, ok := found[name]; ok {
			result[name] = id
			r.cache.SetDefault(name, id)
		} else {
			missing = append(missing, name)
		}
	}
	return missing
}

func (r *nameRegistry) insert(tx *gorm.DB, names []string) error {
	rows := make([]map[string]any, len(names))
	for i, name := range names {
		rows[i] = map[string]any{r.column: name}
	}

	// The savepoint keeps a unique violation from poisoning the caller's
	// transaction on PostgreSQL.
	err := tx.Transaction(func(inner *gorm.DB) error {
		return inner.Table(r.table).Create(&rows).Error
	})
	if err != nil {
		if database.IsDuplicateKey(err) {
			// Another worker created some of these names concurrently;
			// the follow-up read picks them all up.
			r.logger.Debug("concurrent insert detected", "registry", r.label)
			return nil
		}
		return fmt.Errorf("%w: insert %s names: %w", database.ErrBackendUnavailable, r.label, err)
	}
	return nil
}

// cachedCount returns the number of cached name→ID entries.
func (r *nameRegistry) cachedCount() int {
	return r.cache.ItemCount()
}

// clear drops the cache.
func (r *nameRegistry) clear() {
	r.cache.Flush()
}
