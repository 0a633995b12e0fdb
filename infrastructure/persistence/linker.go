package persistence

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/gigradar/gigradar/internal/database"
)

// Linker batch-inserts event relationship pairs. Linking is idempotent:
// pairs already present are skipped, and duplicate-key races with
// concurrent writers are swallowed and counted.
type Linker struct {
	logger *slog.Logger
	races  atomic.Int64
}

// NewLinker creates a Linker.
func NewLinker(logger *slog.Logger) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{logger: logger}
}

// LinkArtists links the given artists to an event inside the supplied
// transaction.
func (l *Linker) LinkArtists(tx *gorm.DB, eventID int64, artistIDs []int64) error {
	return l.link(tx, "event_artists", "artist_id", eventID, artistIDs)
}

// LinkTags links the given tags to an event inside the supplied
// transaction.
func (l *Linker) LinkTags(tx *gorm.DB, eventID int64, tagIDs []int64) error {
	return l.link(tx, "event_tags", "tag_id", eventID, tagIDs)
}

// Races returns the number of duplicate-key insertions lost to concurrent
// writers and swallowed.
func (l *Linker) Races() int64 {
	return l.races.Load()
}

func (l *Linker) link(tx *gorm.DB, table, column string, eventID int64, ids []int64) error {
	if eventID == 0 || len(ids) == 0 {
		return nil
	}

	var existing []int64
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE event_id = ?`, column, table)
	if err := tx.Raw(query, eventID).Scan(&existing).Error; err != nil {
		return fmt.Errorf("read existing %s pairs: %w", table, err)
	}

	present := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		present[id] = struct{}{}
	}

	rows := make([]map[string]any, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := present[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, map[string]any{"event_id": eventID, column: id})
	}
	if len(rows) == 0 {
		return nil
	}

	// Each insert runs under its own savepoint so a duplicate-key error
	// does not poison the surrounding transaction on PostgreSQL.
	batchErr := tx.Transaction(func(inner *gorm.DB) error {
		return inner.Table(table).Create(&rows).Error
	})
	if batchErr != nil {
		if !database.IsDuplicateKey(batchErr) {
			return fmt.Errorf("insert %s pairs: %w", table, batchErr)
		}
		// A concurrent writer got there first for at least one pair;
		// insert the remainder one by one, swallowing duplicates.
		for _, row := range rows {
			err := tx.Transaction(func(inner *gorm.DB) error {
				return inner.Table(table).Create(&row).Error
			})
			if err != nil {
				if database.IsDuplicateKey(err) {
					l.races.Add(1)
					continue
				}
				return fmt.Errorf("insert %s pair: %w", table, err)
			}
		}
	}

	l.logger.Debug("linked relationships",
		"table", table,
		"event_id", eventID,
		"inserted", len(rows),
	)
	return nil
}
