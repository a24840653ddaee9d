package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationLockID serializes concurrent migrators through pg_advisory_xact_lock.
const migrationLockID = 727_274_001

// Migrator is the subset of pgxpool.Pool needed to apply migrations.
type Migrator interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Migration is one embedded SQL file. Version is the file name without extension.
type Migration struct {
	Version string
	SQL     string
}

// Migrations returns the embedded migrations in application order.
func Migrations() ([]Migration, error) {
	return loadMigrations(migrationFiles, "migrations")
}

func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		data, err := fs.ReadFile(fsys, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", e.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version: strings.TrimSuffix(e.Name(), ".sql"),
			SQL:     string(data),
		})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// Migrate applies every embedded migration that has not been recorded in
// schema_migrations. Each migration runs in its own transaction.
// Returns the number of migrations applied.
func Migrate(ctx context.Context, db Migrator) (int, error) {
	migrations, err := Migrations()
	if err != nil {
		return 0, err
	}
	return apply(ctx, db, migrations)
}

func apply(ctx context.Context, db Migrator, migrations []Migration) (int, error) {
	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		ok, err := applyOne(ctx, db, m)
		if err != nil {
			return applied, fmt.Errorf("migration %s: %w", m.Version, err)
		}
		if ok {
			applied++
			log.Info().Str("version", m.Version).Msg("migration applied")
		}
	}
	return applied, nil
}

func applyOne(ctx context.Context, db Migrator, m Migration) (bool, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
		return false, fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`,
		m.Version,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}
