// Package tvl implements the chain TVL service: cache-through retrieval of
// daily TVL series from the upstream provider and derivation of the
// summaries served by the HTTP API.
package tvl

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	domain "github.com/R3E-Network/tvl_service/internal/app/domain/tvl"
	"github.com/R3E-Network/tvl_service/internal/app/metrics"
	"github.com/R3E-Network/tvl_service/internal/app/storage"
	"github.com/R3E-Network/tvl_service/pkg/logger"
)

// ErrUnknownChain is returned when a chain is not in the registry.
var ErrUnknownChain = errors.New("unknown chain")

// ErrUpstream wraps upstream fetch failures.
var ErrUpstream = errors.New("upstream fetch failed")

// ErrNoData is returned when no chain yields any data.
var ErrNoData = errors.New("no data available")

// Config carries the service dependencies.
type Config struct {
	Chains   []string
	Snapshot storage.SnapshotStore
	Archive  storage.ArchiveStore
	Fetcher  Fetcher
	CacheTTL time.Duration
	Workers  int
	Log      *logger.Logger
}

// Service serves chain TVL summaries.
type Service struct {
	chains   []string
	chainSet map[string]struct{}
	store    storage.SnapshotStore
	archive  storage.ArchiveStore
	fetcher  Fetcher
	ttl      time.Duration
	workers  int
	log      *logger.Logger
}

// New constructs the service.
func New(cfg Config) (*Service, error) {
	if cfg.Snapshot == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	chains := cfg.Chains
	if len(chains) == 0 {
		chains = domain.DefaultChains
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	log := cfg.Log
	if log == nil {
		log = logger.NewDefault("tvl")
	}

	chainSet := make(map[string]struct{}, len(chains))
	for _, c := range chains {
		chainSet[c] = struct{}{}
	}

	return &Service{
		chains:   append([]string(nil), chains...),
		chainSet: chainSet,
		store:    cfg.Snapshot,
		archive:  cfg.Archive,
		fetcher:  cfg.Fetcher,
		ttl:      ttl,
		workers:  workers,
		log:      log,
	}, nil
}

// Chains returns the configured chain registry.
func (s *Service) Chains() []string {
	return append([]string(nil), s.chains...)
}

// Known reports whether the chain is in the registry.
func (s *Service) Known(chain string) bool {
	_, ok := s.chainSet[chain]
	return ok
}

// Series returns the daily series for a chain, serving from cache when a
// fresh snapshot exists and fetching from upstream otherwise.
func (s *Service) Series(ctx context.Context, chain string) (domain.Series, error) {
	if !s.Known(chain) {
		return domain.Series{}, fmt.Errorf("%w: %s (supported: %s)", ErrUnknownChain, chain, strings.Join(s.chains, ", "))
	}

	series, err := s.store.GetSeries(ctx, chain)
	if err == nil {
		metrics.RecordCacheLookup(true)
		return series, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		s.log.WithError(err).WithField("chain", chain).Warn("snapshot store read failed")
	}
	metrics.RecordCacheLookup(false)

	series, err = s.Refresh(ctx, chain)
	if err != nil {
		if archived, ok := s.fromArchive(ctx, chain); ok {
			s.log.WithError(err).WithField("chain", chain).Warn("upstream unavailable, serving archived history")
			return archived, nil
		}
		return domain.Series{}, err
	}
	return series, nil
}

// fromArchive reconstructs a series from the durable archive. The result is
// not cached, so the next request retries upstream.
func (s *Service) fromArchive(ctx context.Context, chain string) (domain.Series, bool) {
	if s.archive == nil {
		return domain.Series{}, false
	}
	points, err := s.archive.ListPoints(ctx, chain, 0)
	if err != nil {
		s.log.WithError(err).WithField("chain", chain).Warn("archive read failed")
		return domain.Series{}, false
	}
	if len(points) == 0 {
		return domain.Series{}, false
	}
	// The archive returns newest first; series are kept ascending.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return domain.Series{Chain: chain, Points: points, FetchedAt: time.Now()}, true
}

// Refresh fetches a chain from upstream unconditionally and updates the
// cache and, when configured, the archive.
func (s *Service) Refresh(ctx context.Context, chain string) (domain.Series, error) {
	start := time.Now()
	series, err := s.fetcher.Fetch(ctx, chain)
	metrics.RecordUpstreamFetch(chain, err == nil, time.Since(start))
	if err != nil {
		return domain.Series{}, fmt.Errorf("%w: %s: %v", ErrUpstream, chain, err)
	}

	if err := s.store.PutSeries(ctx, series, s.ttl); err != nil {
		s.log.WithError(err).WithField("chain", chain).Warn("snapshot store write failed")
	}
	if s.archive != nil {
		if err := s.archive.UpsertPoints(ctx, chain, series.Points); err != nil {
			s.log.WithError(err).WithField("chain", chain).Warn("archive write failed")
		}
	}
	return series, nil
}

// Summary returns the latest TVL, 24h movement and bounded history for one
// chain.
func (s *Service) Summary(ctx context.Context, chain string) (domain.Summary, error) {
	series, err := s.Series(ctx, chain)
	if err != nil {
		return domain.Summary{}, err
	}
	summary, ok := summarize(series)
	if !ok {
		return domain.Summary{}, fmt.Errorf("%w for chain %s", ErrNoData, chain)
	}
	return summary, nil
}

// Overview fetches all chains concurrently and aggregates the latest
// summaries, sorted by TVL descending. Chains that fail are skipped.
func (s *Service) Overview(ctx context.Context) (domain.Overview, error) {
	seriesByChain := s.collect(ctx)

	summaries := make([]domain.Summary, 0, len(seriesByChain))
	var total float64
	for _, series := range seriesByChain {
		summary, ok := summarize(series)
		if !ok {
			continue
		}
		summaries = append(summaries, summary)
		total += summary.TVL
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].TVL > summaries[j].TVL })

	return domain.Overview{
		Timestamp: time.Now().Format(domain.TimestampFormat),
		TotalTVL:  total,
		Chains:    summaries,
	}, nil
}

// WriteCSV streams a combined chain,date,tvl CSV for all chains, sorted by
// chain then date ascending. Returns ErrNoData when nothing could be
// fetched.
func (s *Service) WriteCSV(ctx context.Context, w io.Writer) error {
	seriesByChain := s.collect(ctx)

	type row struct {
		chain string
		date  string
		tvl   float64
	}
	var rows []row
	for _, series := range seriesByChain {
		for _, p := range series.Points {
			rows = append(rows, row{chain: series.Chain, date: p.Date, tvl: p.TVL})
		}
	}
	if len(rows) == 0 {
		return ErrNoData
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].chain != rows[j].chain {
			return rows[i].chain < rows[j].chain
		}
		return rows[i].date < rows[j].date
	})

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"chain", "date", "tvl"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		record := []string{r.chain, r.date, strconv.FormatFloat(r.tvl, 'f', -1, 64)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// RefreshAll re-fetches every chain to keep the cache warm. Failures are
// logged and counted, not fatal.
func (s *Service) RefreshAll(ctx context.Context) {
	var failed atomic.Int64
	s.forEachChain(ctx, func(ctx context.Context, chain string) {
		if _, err := s.Refresh(ctx, chain); err != nil {
			failed.Add(1)
			s.log.WithError(err).WithField("chain", chain).Warn("refresh failed")
		}
	})
	if n := failed.Load(); n > 0 {
		s.log.WithField("failed", n).
			WithField("total", len(s.chains)).
			Warn("cache refresh finished with failures")
	}
}

// collect retrieves the series for every chain using the worker pool,
// dropping chains that fail or are empty.
func (s *Service) collect(ctx context.Context) []domain.Series {
	var mu sync.Mutex
	var out []domain.Series

	s.forEachChain(ctx, func(ctx context.Context, chain string) {
		series, err := s.Series(ctx, chain)
		if err != nil {
			s.log.WithError(err).WithField("chain", chain).Warn("chain skipped")
			return
		}
		if series.Empty() {
			return
		}
		mu.Lock()
		out = append(out, series)
		mu.Unlock()
	})
	return out
}

// forEachChain runs fn for every registered chain over a bounded worker
// pool.
func (s *Service) forEachChain(ctx context.Context, fn func(ctx context.Context, chain string)) {
	jobs := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chain := range jobs {
				fn(ctx, chain)
			}
		}()
	}

	for _, chain := range s.chains {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- chain:
		}
	}
	close(jobs)
	wg.Wait()
}

// summarize derives the API summary from an ascending series. Returns false
// when the series is empty.
func summarize(series domain.Series) (domain.Summary, bool) {
	n := len(series.Points)
	if n == 0 {
		return domain.Summary{}, false
	}

	latest := series.Points[n-1]

	var change, percent float64
	if n > 1 {
		yesterday := series.Points[n-2]
		change = latest.TVL - yesterday.TVL
		if yesterday.TVL > 0 {
			percent = change / yesterday.TVL * 100
		}
	}

	limit := domain.HistoryLimit
	if n < limit {
		limit = n
	}
	history := make([]domain.Point, limit)
	for i := 0; i < limit; i++ {
		history[i] = series.Points[n-1-i]
	}

	return domain.Summary{
		Chain:            series.Chain,
		LatestDate:       latest.Date,
		TVL:              latest.TVL,
		Change24h:        change,
		PercentChange24h: percent,
		History:          history,
	}, true
}
