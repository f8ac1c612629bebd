// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/match-crawler/internal/config"
	"github.com/JakeFAU/match-crawler/internal/logging"
	"github.com/JakeFAU/match-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/match-crawler/internal/queue/memory"
	"github.com/JakeFAU/match-crawler/internal/riot"
	"github.com/JakeFAU/match-crawler/internal/storage/sqlite"
	"github.com/JakeFAU/match-crawler/internal/version"
	"github.com/JakeFAU/match-crawler/internal/worker"
)

// App holds the shared, long-lived services for one process. Storage is opened
// eagerly; the Riot gateway and orchestrator are built on first use so read-only
// commands run without an API key.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *sqlite.Store
	httpClient *http.Client

	mu           sync.Mutex
	oracle       *version.Oracle
	gateway      *riot.Gateway
	orchestrator *worker.Orchestrator
}

// Option customises an App.
type Option func(*App)

// WithLogger replaces the logger built from cfg.Logging.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithHTTPClient overrides the client used for Riot and version lookups.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) { a.httpClient = c }
}

// New builds the logger and opens storage. It fails fast if either cannot start.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		logger, err := logging.NewWithLevel(cfg.Logging.Development, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		a.logger = logger
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: cfg.Riot.Timeout()}
	}

	store, err := sqlite.Open(ctx, sqlite.Config{
		Path:          cfg.Storage.Path,
		CacheSizeKB:   cfg.Storage.CacheSizeKB,
		MmapSizeBytes: cfg.Storage.MmapSizeBytes,
		BusyTimeoutMS: cfg.Storage.BusyTimeoutMS,
		MaxOpenConns:  cfg.Storage.MaxOpenConns,
	}, a.logger.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.store = store
	return a, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the SQLite store.
func (a *App) Store() *sqlite.Store { return a.store }

// Oracle returns the version oracle. It needs no API key.
func (a *App) Oracle() *version.Oracle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.oracleLocked()
}

func (a *App) oracleLocked() *version.Oracle {
	if a.oracle == nil {
		a.oracle = version.New(a.httpClient, a.cfg.Riot.VersionsURL, a.cfg.Crawler.FallbackVersion, a.logger.Named("version"))
	}
	return a.oracle
}

// Orchestrator returns the crawl orchestrator, building the rate-limited gateway on
// first call. It returns config.ErrMissingAPIKey when no key is configured.
func (a *App) Orchestrator() (*worker.Orchestrator, error) {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.orchestrator != nil {
		return a.orchestrator, nil
	}

	rc := a.cfg.Riot
	limiter := ratelimit.New(ratelimit.Config{
		MinInterval:    rc.MinInterval,
		WindowRequests: rc.WindowRequests,
		Window:         rc.Window,
	})
	a.gateway = riot.NewGateway(a.httpClient, limiter, riot.GatewayConfig{
		APIKey:            rc.APIKey,
		MaxConcurrent:     rc.MaxConcurrent,
		DefaultRetryAfter: rc.DefaultRetryAfterSeconds,
	}, a.logger.Named("riot"))
	client := riot.NewClient(a.gateway, riot.NewEndpoints(rc.PlatformBase, rc.RoutingBase, rc.Routing), a.cfg.Crawler.MatchQueue)

	cc := a.cfg.Crawler
	a.orchestrator = worker.New(
		client,
		a.gateway,
		a.oracleLocked(),
		a.store,
		worker.Config{
			BatchSize:           cc.BatchSize,
			MaxMatchesPerPlayer: cc.MaxMatchesPerPlayer,
			Freshness:           cc.Freshness(),
			MatchFetchDelay:     cc.MatchFetchDelay,
			ProgressEvery:       cc.ProgressEvery,
			SeedCap:             cc.SeedCap,
			SeedTierCap:         cc.SeedTierCap,
			SeedConcurrency:     rc.MaxConcurrent,
			PersistOverflow:     cc.PersistOverflow,
			KeepRawPayload:      cc.KeepRawPayload,
		},
		a.logger.Named("worker"),
		worker.WithQueue(memory.NewQueue(cc.QueueCapacity)),
	)
	return a.orchestrator, nil
}

// Close persists any pending crawl queue and releases storage. It is called by a
// cobra hook after the command finishes.
func (a *App) Close(ctx context.Context) error {
	a.mu.Lock()
	orch := a.orchestrator
	a.mu.Unlock()

	var errs []error
	if orch != nil {
		if err := orch.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("save crawl queue: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	// Sync fails on stdout/stderr for some platforms; nothing useful to do about it.
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
