package persistence

import (
	"fmt"
	"log/slog"

	"github.com/gigradar/gigradar/internal/database"
)

// Migrate creates or updates the schema, including the native vector
// column on events. AutoMigrate manages every ORM-mapped column; the
// embedding column is raw DDL because GORM never sees it.
func Migrate(db database.Database, dimensions int) error {
	if err := db.GORM().AutoMigrate(
		&EventModel{},
		&ArtistModel{},
		&TagModel{},
		&EventArtistModel{},
		&EventTagModel{},
		&PlaceModel{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if db.IsPostgres() {
		return migrateVectorPostgres(db, dimensions)
	}
	return migrateVectorSQLite(db)
}

func migrateVectorPostgres(db database.Database, dimensions int) error {
	gdb := db.GORM()

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS vector`).Error; err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	addColumn := fmt.Sprintf(
		`ALTER TABLE events ADD COLUMN IF NOT EXISTS embedding vector(%d)`, dimensions)
	if err := gdb.Exec(addColumn).Error; err != nil {
		return fmt.Errorf("add embedding column: %w", err)
	}

	// Verify the existing column dimension matches configuration; all
	// stored vectors in a deployment must agree.
	var dbDimension int
	result := gdb.Raw(`
		SELECT a.atttypmod
		FROM pg_attribute a
		JOIN pg_class c ON a.attrelid = c.oid
		WHERE c.relname = 'events' AND a.attname = 'embedding'
	`).Scan(&dbDimension)
	if result.Error != nil {
		return fmt.Errorf("check embedding dimension: %w", result.Error)
	}
	if result.RowsAffected > 0 && dbDimension > 0 && dbDimension != dimensions {
		return fmt.Errorf("embedding column has dimension %d, configured %d", dbDimension, dimensions)
	}

	indexSQL := `
CREATE INDEX IF NOT EXISTS events_embedding_idx
ON events
USING ivfflat (embedding vector_cosine_ops)
WITH (lists = 100)`
	if err := gdb.Exec(indexSQL).Error; err != nil {
		// ivfflat refuses to build on an empty table in some versions;
		// the index is an optimization, not a correctness requirement.
		slog.Warn("failed to create embedding index", "error", err)
	}

	return nil
}

// migrateVectorSQLite adds a plain text embedding column holding the same
// "[1.0,2.0,...]" literal the pgvector path uses. Similarity search on
// SQLite parses the literals and ranks in process.
func migrateVectorSQLite(db database.Database) error {
	gdb := db.GORM()

	var count int64
	err := gdb.Raw(
		`SELECT COUNT(*) FROM pragma_table_info('events') WHERE name = 'embedding'`,
	).Scan(&count).Error
	if err != nil {
		return fmt.Errorf("check embedding column: %w", err)
	}
	if count > 0 {
		return nil
	}

	if err := gdb.Exec(`ALTER TABLE events ADD COLUMN embedding TEXT`).Error; err != nil {
		return fmt.Errorf("add embedding column: %w", err)
	}
	return nil
}
