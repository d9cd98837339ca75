package storage

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS folders (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS recipes (
		id          BIGSERIAL PRIMARY KEY,
		title       TEXT NOT NULL,
		ingredients TEXT[] NOT NULL DEFAULT '{}',
		steps       TEXT[] NOT NULL DEFAULT '{}',
		tips        TEXT[] NOT NULL DEFAULT '{}',
		servings    TEXT NOT NULL DEFAULT '',
		prep_time   TEXT NOT NULL DEFAULT '',
		cook_time   TEXT NOT NULL DEFAULT '',
		source_url  TEXT NOT NULL,
		folder_id   BIGINT REFERENCES folders(id) ON DELETE SET NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS recipe_tags (
		recipe_id BIGINT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
		tag_id    BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (recipe_id, tag_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recipes_created_at ON recipes (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_recipes_folder ON recipes (folder_id)`,
}

// EnsureSchema creates the tables the repository needs. Statements are
// idempotent so startup can run this unconditionally.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
