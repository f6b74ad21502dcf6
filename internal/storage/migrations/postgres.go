package migrations

import (
	"context"
	"fmt"

	"prediction-feed/internal/storage/postgres"
)

// RunPostgresMigrations applies every embedded Postgres migration in order.
// Migrations use IF NOT EXISTS and are safe to re-run.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := load(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range files {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}
