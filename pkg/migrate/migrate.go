package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationsDir = "migrations"

// Up applies all pending migrations against a postgres database.
func Up(ctx context.Context, sqlDB *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, embedMigrations)
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Status returns a human-readable list of migrations and their state.
func Status(ctx context.Context, sqlDB *sql.DB) ([]string, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, embedMigrations)
	if err != nil {
		return nil, fmt.Errorf("creating goose provider: %w", err)
	}
	results, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading migration status: %w", err)
	}
	lines := make([]string, 0, len(results))
	for _, res := range results {
		state := "pending"
		if res.State == goose.StateApplied {
			state = "applied"
		}
		lines = append(lines, fmt.Sprintf("%s %s", state, res.Source.Path))
	}
	return lines, nil
}
