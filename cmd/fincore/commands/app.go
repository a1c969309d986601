package commands

import (
	"context"
	"fmt"

	"github.com/wonny/fincore/internal/analytics"
	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/internal/export"
	"github.com/wonny/fincore/internal/ingest"
	"github.com/wonny/fincore/internal/store"
	"github.com/wonny/fincore/pkg/config"
	"github.com/wonny/fincore/pkg/database"
	"github.com/wonny/fincore/pkg/logger"
	"github.com/wonny/fincore/pkg/redis"
)

// app holds the shared dependencies of a command run
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	store *store.Postgres
	redis *redis.Client
	cache *redis.Cache
}

// newApp loads config and connects to PostgreSQL and (if enabled) Redis
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Debug("Connected to database")

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		// analytics still works uncached
		log.WithError(err).Warn("Redis unavailable, caching disabled")
		rc = redis.Disabled()
	}

	return &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		store: store.NewPostgres(db.Pool),
		redis: rc,
		cache: redis.NewCache(rc, "fincore"),
	}, nil
}

func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("close redis")
	}
	a.db.Close()
}

func (a *app) service() *analytics.Service {
	return analytics.NewService(a.store, a.store, a.store, a.cache, a.cfg.Cache, a.log)
}

func (a *app) manifest() (*ingest.Manifest, error) {
	if a.cfg.Import.Manifest == "" {
		return ingest.DefaultManifest(), nil
	}
	m, err := ingest.LoadManifest(a.cfg.Import.Manifest)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	return m, nil
}

func (a *app) importer(stocks contracts.StockRepository, statements contracts.StatementRepository) (*ingest.Importer, error) {
	m, err := a.manifest()
	if err != nil {
		return nil, err
	}
	return ingest.NewImporter(stocks, statements, m, a.cfg.Import.BaseDir, a.log), nil
}

func (a *app) exporter(dir string, workers int) *export.Exporter {
	if dir == "" {
		dir = a.cfg.Export.Dir
	}
	if workers <= 0 {
		workers = a.cfg.Export.Workers
	}
	return export.NewExporter(a.store, a.store, dir, workers, a.log)
}
