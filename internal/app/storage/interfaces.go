// Package storage defines the persistence interfaces used by the TVL service.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/R3E-Network/tvl_service/internal/app/domain/tvl"
)

// ErrNotFound is returned when a cached series is absent or expired.
var ErrNotFound = errors.New("series not found")

// SnapshotStore caches fetched TVL series per chain with a TTL.
type SnapshotStore interface {
	GetSeries(ctx context.Context, chain string) (tvl.Series, error)
	PutSeries(ctx context.Context, series tvl.Series, ttl time.Duration) error
}

// ArchiveStore persists daily TVL points durably for later readback.
type ArchiveStore interface {
	UpsertPoints(ctx context.Context, chain string, points []tvl.Point) error
	ListPoints(ctx context.Context, chain string, limit int) ([]tvl.Point, error)
}
