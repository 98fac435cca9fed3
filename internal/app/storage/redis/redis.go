// Package redis provides a Redis-backed SnapshotStore so cache contents
// survive restarts and can be shared between replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/R3E-Network/tvl_service/internal/app/domain/tvl"
	"github.com/R3E-Network/tvl_service/internal/app/storage"
)

const keyPrefix = "tvl:series:"

// Store caches series in Redis as JSON values with native expiry.
type Store struct {
	client *goredis.Client
}

var _ storage.SnapshotStore = (*Store)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr string, db int) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *goredis.Client) *Store {
	return &Store{client: client}
}

// GetSeries loads the cached series for a chain.
func (s *Store) GetSeries(ctx context.Context, chain string) (tvl.Series, error) {
	raw, err := s.client.Get(ctx, keyPrefix+chain).Bytes()
	if errors.Is(err, goredis.Nil) {
		return tvl.Series{}, storage.ErrNotFound
	}
	if err != nil {
		return tvl.Series{}, fmt.Errorf("redis get %s: %w", chain, err)
	}

	var series tvl.Series
	if err := json.Unmarshal(raw, &series); err != nil {
		return tvl.Series{}, fmt.Errorf("decode cached series %s: %w", chain, err)
	}
	return series, nil
}

// PutSeries stores a series under the chain key with the given expiry.
func (s *Store) PutSeries(ctx context.Context, series tvl.Series, ttl time.Duration) error {
	raw, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("encode series %s: %w", series.Chain, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, keyPrefix+series.Chain, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", series.Chain, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
