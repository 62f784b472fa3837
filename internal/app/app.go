package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/elsai-console/internal/common"
	"github.com/joseph-ayodele/elsai-console/internal/export"
	"github.com/joseph-ayodele/elsai-console/internal/extract"
	"github.com/joseph-ayodele/elsai-console/internal/intake"
	"github.com/joseph-ayodele/elsai-console/internal/prompts"
	"github.com/joseph-ayodele/elsai-console/internal/repository"
	"github.com/joseph-ayodele/elsai-console/internal/server"
	"github.com/joseph-ayodele/elsai-console/internal/telemetry"
)

// LoadConfig reads the secret store (environment, then dotenv files) and validates it.
func LoadConfig() (*common.Config, error) {
	store, err := common.LoadSecretStore()
	if err != nil {
		return nil, err
	}
	cfg := common.LoadConfig(store)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App holds the components built from one Config.
type App struct {
	Config     *common.Config
	Logger     *slog.Logger
	Metrics    *telemetry.Metrics
	Runs       repository.Recorder
	Cache      prompts.Cache
	Stager     *intake.Stager
	Dispatcher *extract.Dispatcher
	Prompts    *prompts.Fetcher
	Export     *export.Service
}

// New wires the components. The prompt cache is optional: if Redis is
// unreachable the fetcher runs uncached.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := telemetry.NewMetrics()

	runs, err := repository.Open(ctx, repository.Config{
		DSN:         cfg.History.DSN,
		MaxConns:    cfg.History.MaxConns,
		DialTimeout: cfg.History.DialTimeout,
	}, logger)
	if err != nil {
		return nil, common.NewAppError(common.CodeConfigError, "open run history", err)
	}

	var cache prompts.Cache = prompts.NoopCache{}
	if cfg.Cache.RedisURL != "" && cfg.Cache.PromptTTL > 0 {
		rc, err := prompts.NewRedisCache(ctx, cfg.Cache.RedisURL)
		if err != nil {
			logger.Warn("app.prompt_cache_unavailable", "error", err)
		} else {
			cache = rc
			logger.Info("app.prompt_cache_enabled", "ttl", cfg.Cache.PromptTTL)
		}
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Runs:    runs,
		Cache:   cache,
		Stager: intake.NewStager(intake.Config{
			TempDir:      cfg.Upload.TempDir,
			MaxBytes:     cfg.Upload.MaxBytes,
			SniffContent: cfg.Upload.SniffContent,
		}, logger),
		Dispatcher: extract.NewDispatcher(cfg.Backends, logger,
			extract.WithConcurrency(cfg.Server.MaxConcurrentExtractions),
			extract.WithTimeout(cfg.Server.ExtractTimeout),
			extract.WithRecorder(runs),
			extract.WithMetrics(metrics),
		),
		Prompts: prompts.NewFetcher(cfg.Pezzo, logger,
			prompts.WithCache(cache, cfg.Cache.PromptTTL),
			prompts.WithMetrics(metrics),
		),
		Export: export.NewService(logger),
	}

	for _, b := range a.Dispatcher.Backends() {
		if !b.Configured {
			logger.Info("app.backend_unconfigured", "backend", b.Label, "missing", b.Missing)
		}
	}
	return a, nil
}

// Deps exposes the components to the HTTP and gRPC surfaces.
func (a *App) Deps() server.Deps {
	return server.Deps{
		Dispatcher: a.Dispatcher,
		Stager:     a.Stager,
		Prompts:    a.Prompts,
		Runs:       a.Runs,
		Export:     a.Export,
		Metrics:    a.Metrics,
	}
}

func (a *App) Close() error {
	return errors.Join(a.Runs.Close(), a.Cache.Close())
}
