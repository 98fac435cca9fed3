package tvl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/tvl_service/internal/app/system"
	"github.com/R3E-Network/tvl_service/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// Refresher keeps the snapshot cache warm by re-fetching every chain on a
// cron schedule, so API requests rarely pay the upstream latency.
type Refresher struct {
	service *Service
	log     *logger.Logger
	spec    string
	timeout time.Duration

	mu      sync.Mutex
	wg      sync.WaitGroup
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// NewRefresher creates a lifecycle-managed cache refresher. The spec uses
// cron syntax, including descriptors like "@every 1h".
func NewRefresher(service *Service, spec string, log *logger.Logger) (*Refresher, error) {
	if service == nil {
		return nil, fmt.Errorf("service is required")
	}
	if spec == "" {
		spec = "@every 1h"
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse refresh spec %q: %w", spec, err)
	}
	if log == nil {
		log = logger.NewDefault("tvl-refresher")
	}
	return &Refresher{
		service: service,
		log:     log,
		spec:    spec,
		timeout: 2 * time.Minute,
	}, nil
}

func (r *Refresher) Name() string { return "tvl-refresher" }

// Start warms the cache once immediately, then refreshes on the schedule.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.cron = cron.New()
	if _, err := r.cron.AddFunc(r.spec, func() { r.run(runCtx) }); err != nil {
		cancel()
		r.cron = nil
		r.cancel = nil
		r.mu.Unlock()
		return fmt.Errorf("schedule refresh: %w", err)
	}
	r.running = true
	cr := r.cron
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(runCtx)
	}()
	cr.Start()

	r.log.WithField("spec", r.spec).Info("tvl refresher started")
	return nil
}

// Stop halts the schedule and waits for an in-flight refresh to finish.
func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cr := r.cron
	cancel := r.cancel
	r.running = false
	r.cron = nil
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	stopCtx := cr.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	// cron only tracks scheduled runs; the initial warm-up needs its own
	// wait.
	warmDone := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(warmDone)
	}()
	select {
	case <-warmDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("tvl refresher stopped")
	return nil
}

func (r *Refresher) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	r.service.RefreshAll(ctx)
}
