package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// Migrations are valid for both SQLite and PostgreSQL. goose records the
// applied versions in its own table, so opening an existing database only
// runs what is missing.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrate brings the schema up to the latest migration.
func (s *Store) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	p, err := goose.NewProvider(s.dialect.goose, s.db, fsys)
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Upserts keep the record data and the modification time.
const (
	upsertEntityConfig = `INSERT INTO entity_configs (class_name, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT (class_name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`

	upsertFieldConfig = `INSERT INTO field_configs (class_name, field_name, data, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (class_name, field_name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`
)
