package postgres

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"agenda/backend/internal/store/postgres/migrations"
)

func NewMigrator(db *bun.DB) *migrate.Migrator {
	return migrate.NewMigrator(db, migrations.Migrations)
}

// MigrateUp applies pending migrations under the migrator lock and returns the applied group.
func MigrateUp(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	m := NewMigrator(db)
	if err := m.Init(ctx); err != nil {
		return nil, err
	}
	if err := m.Lock(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = m.Unlock(ctx) }()

	return m.Migrate(ctx)
}

func MigrateRollback(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	m := NewMigrator(db)
	if err := m.Init(ctx); err != nil {
		return nil, err
	}
	if err := m.Lock(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = m.Unlock(ctx) }()

	return m.Rollback(ctx)
}

func MigrationStatus(ctx context.Context, db *bun.DB) (migrate.MigrationSlice, error) {
	m := NewMigrator(db)
	if err := m.Init(ctx); err != nil {
		return nil, err
	}
	return m.MigrationsWithStatus(ctx)
}
