// Package postgres implements the durable TVL archive backed by PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/tvl_service/internal/app/domain/tvl"
	"github.com/R3E-Network/tvl_service/internal/app/storage"
)

// Store implements storage.ArchiveStore backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.ArchiveStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL, applies pool settings and verifies the
// connection.
func Open(dsn string, maxOpen, maxIdle, connMaxLifetimeSeconds int) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if connMaxLifetimeSeconds > 0 {
		db.SetConnMaxLifetime(time.Duration(connMaxLifetimeSeconds) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

type pointRow struct {
	Day  string  `db:"day"`
	TVL  float64 `db:"tvl"`
	Unix int64   `db:"unix_seconds"`
}

// UpsertPoints writes daily samples for a chain, replacing the stored TVL
// when the day already exists.
func (s *Store) UpsertPoints(ctx context.Context, chain string, points []tvl.Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO tvl_points (chain, day, tvl, unix_seconds)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chain, day) DO UPDATE SET tvl = EXCLUDED.tvl, unix_seconds = EXCLUDED.unix_seconds
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, chain, p.Date, p.TVL, p.Unix); err != nil {
			return fmt.Errorf("upsert point %s %s: %w", chain, p.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListPoints returns the most recent daily samples for a chain, newest
// first. A non-positive limit returns the full history.
func (s *Store) ListPoints(ctx context.Context, chain string, limit int) ([]tvl.Point, error) {
	query := `
		SELECT day, tvl, unix_seconds
		FROM tvl_points
		WHERE chain = $1
		ORDER BY day DESC
	`
	args := []any{chain}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	var rows []pointRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list points %s: %w", chain, err)
	}

	points := make([]tvl.Point, len(rows))
	for i, r := range rows {
		points[i] = tvl.Point{Date: r.Day, TVL: r.TVL, Unix: r.Unix}
	}
	return points, nil
}
