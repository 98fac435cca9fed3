package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order at startup. Each statement must be
// idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS tvl_points (
		chain        TEXT             NOT NULL,
		day          TEXT             NOT NULL,
		tvl          DOUBLE PRECISION NOT NULL,
		unix_seconds BIGINT           NOT NULL DEFAULT 0,
		PRIMARY KEY (chain, day)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tvl_points_chain_day ON tvl_points (chain, day DESC)`,
}

// Apply runs all schema migrations against the database.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
