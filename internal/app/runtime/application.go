// Package runtime wires the TVL service components and manages the HTTP
// server lifecycle.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"github.com/R3E-Network/tvl_service/internal/app/httpapi"
	"github.com/R3E-Network/tvl_service/internal/app/metrics"
	tvlsvc "github.com/R3E-Network/tvl_service/internal/app/services/tvl"
	"github.com/R3E-Network/tvl_service/internal/app/storage"
	"github.com/R3E-Network/tvl_service/internal/app/storage/memory"
	"github.com/R3E-Network/tvl_service/internal/app/storage/postgres"
	redisstore "github.com/R3E-Network/tvl_service/internal/app/storage/redis"
	"github.com/R3E-Network/tvl_service/internal/app/system"
	"github.com/R3E-Network/tvl_service/internal/config"
	"github.com/R3E-Network/tvl_service/internal/middleware"
	"github.com/R3E-Network/tvl_service/pkg/logger"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	httpServer *http.Server
	services   []system.Service
	closers    []func() error
}

// NewApplication constructs an application instance with default wiring.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	app := &Application{cfg: cfg, log: log}

	snapshot, err := app.buildSnapshotStore()
	if err != nil {
		return nil, fmt.Errorf("configure snapshot store: %w", err)
	}

	archive, err := app.buildArchiveStore()
	if err != nil {
		return nil, fmt.Errorf("configure archive store: %w", err)
	}

	fetcher, err := tvlsvc.NewHTTPFetcher(
		&http.Client{Timeout: cfg.Upstream.Timeout},
		cfg.Upstream.BaseURL,
		log.WithField("component", "tvl-fetcher"),
	)
	if err != nil {
		return nil, fmt.Errorf("configure fetcher: %w", err)
	}

	svc, err := tvlsvc.New(tvlsvc.Config{
		Chains:   cfg.Chains,
		Snapshot: snapshot,
		Archive:  archive,
		Fetcher:  fetcher,
		CacheTTL: cfg.Cache.TTL,
		Workers:  cfg.Upstream.Workers,
		Log:      log.WithField("component", "tvl"),
	})
	if err != nil {
		return nil, fmt.Errorf("configure tvl service: %w", err)
	}

	if cfg.Cache.RefreshSpec != "" {
		refresher, err := tvlsvc.NewRefresher(svc, cfg.Cache.RefreshSpec, log.WithField("component", "tvl-refresher"))
		if err != nil {
			return nil, fmt.Errorf("configure refresher: %w", err)
		}
		app.services = append(app.services, refresher)
	}

	handler := httpapi.NewHandler(svc, Version, log.WithField("component", "httpapi"))
	app.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      app.buildMiddleware(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return app, nil
}

// buildMiddleware assembles the request pipeline: tracing, CORS, rate
// limiting, metrics, and the /metrics endpoint itself.
func (a *Application) buildMiddleware(handler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", handler)

	var h http.Handler = mux
	h = metrics.InstrumentHandler(h)
	if a.cfg.Limits.RPS > 0 {
		limiter := middleware.NewRateLimiter(a.cfg.Limits.RPS, a.cfg.Limits.Burst, a.log.WithField("component", "ratelimit"))
		stopCleanup := limiter.StartCleanup(10 * time.Minute)
		a.closers = append(a.closers, func() error {
			stopCleanup()
			return nil
		})
		h = limiter.Handler(h)
	}
	h = middleware.NewCORSMiddleware([]string{"*"}).Handler(h)
	h = middleware.NewTracingMiddleware(a.log.WithField("component", "http")).Handler(h)
	return h
}

func (a *Application) buildSnapshotStore() (storage.SnapshotStore, error) {
	if a.cfg.Cache.RedisAddr == "" {
		return memory.New(), nil
	}

	store, err := redisstore.New(context.Background(), a.cfg.Cache.RedisAddr, a.cfg.Cache.RedisDB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	a.log.WithField("addr", a.cfg.Cache.RedisAddr).Info("using redis snapshot store")
	return store, nil
}

func (a *Application) buildArchiveStore() (storage.ArchiveStore, error) {
	if a.cfg.Database.DSN == "" {
		return nil, nil
	}

	db, err := postgres.Open(
		a.cfg.Database.DSN,
		a.cfg.Database.MaxOpenConns,
		a.cfg.Database.MaxIdleConns,
		a.cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := postgres.Apply(ctx, db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	a.closers = append(a.closers, db.Close)
	a.log.Info("using postgres archive store")
	return postgres.New(db), nil
}

// Run starts the background services and the HTTP server, blocking until
// the context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	for _, svc := range a.services {
		if err := svc.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server, background services and store
// connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	for _, svc := range a.services {
		if err := svc.Stop(shutdownCtx); err != nil {
			a.log.WithError(err).Warnf("error stopping %s", svc.Name())
		}
	}

	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.log.WithError(err).Warn("error closing resource")
		}
	}
	return nil
}
