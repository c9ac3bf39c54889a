package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/catalog"
	"github.com/noah-isme/toko-checkout/internal/checkout"
	"github.com/noah-isme/toko-checkout/internal/config"
	"github.com/noah-isme/toko-checkout/internal/db"
	"github.com/noah-isme/toko-checkout/internal/health"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/pricing"
	"github.com/noah-isme/toko-checkout/internal/ratelimit"
	"github.com/noah-isme/toko-checkout/internal/resilience"
)

// Dependencies enumerates the connections and catalog chain shared by the HTTP layer.
type Dependencies struct {
	Store   catalog.Store
	Lookup  pricing.CatalogLookup
	Catalog *catalog.Service
	Redis   *redis.Client
	Limiter ratelimit.Limiter
	Breaker *resilience.Breaker
	// PingDB probes the catalog database; nil for the memory backend.
	PingDB func(ctx context.Context) error

	closers []func() error
}

// Options tune Build beyond what Config carries.
type Options struct {
	ServiceName    string
	MetricsEnabled bool
	Logger         zerolog.Logger
}

// Build opens the configured catalog backend and optional Redis, applies
// migrations when enabled and assembles the lookup chain:
// breaker/retry guard, then Redis cache, then the store.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *Dependencies, err error) {
	deps := &Dependencies{}
	defer func() {
		if err != nil {
			_ = deps.Close()
		}
	}()
	logger := opts.Logger

	if err := deps.openStore(ctx, cfg, opts); err != nil {
		return nil, err
	}

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		deps.closers = append(deps.closers, client.Close)
		if err := redisotel.InstrumentTracing(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if opts.MetricsEnabled {
			if err := redisotel.InstrumentMetrics(client); err != nil {
				logger.Error().Err(err).Msg("instrument redis metrics")
			}
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.Redis = client
	}

	breakerLogger := logger.With().Str("component", "breaker").Logger()
	deps.Breaker = resilience.NewBreaker(resilience.BreakerConfig{
		Target:       "catalog",
		MinRequests:  cfg.CircuitMinRequests,
		FailureRatio: cfg.CircuitFailureRatio,
		OpenFor:      cfg.CircuitOpenFor,
		Logger:       &breakerLogger,
	})
	var lookup pricing.CatalogLookup = catalog.NewGuardedLookup(deps.Store, deps.Breaker, resilience.Policy{
		MaxAttempts: cfg.CatalogRetryAttempts,
		BaseBackoff: 50 * time.Millisecond,
		Jitter:      0.2,
	})

	var cache *catalog.Cache
	if deps.Redis != nil {
		cache = catalog.NewCache(deps.Redis, cfg.CatalogCacheTTL)
		lookup = catalog.NewCachedLookup(catalog.CachedLookupConfig{Next: lookup, Cache: cache, Logger: logger})
	}
	deps.Lookup = lookup
	deps.Catalog = catalog.NewService(catalog.ServiceConfig{Lister: deps.Store, Cache: cache, Logger: logger})

	var limiterClient redis.UniversalClient
	if deps.Redis != nil {
		limiterClient = deps.Redis
	}
	limiter, err := ratelimit.NewFixedWindow(cfg.RateLimitCheckout, limiterClient, "checkout_rl")
	if err != nil {
		return nil, err
	}
	deps.Limiter = limiter
	return deps, nil
}

func (d *Dependencies) openStore(ctx context.Context, cfg *config.Config, opts Options) error {
	switch cfg.CatalogBackend {
	case config.BackendPostgres:
		if cfg.DBAutoMigrate {
			if err := db.Up(db.Postgres, cfg.DatabaseURL); err != nil {
				return err
			}
		}
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("parse database config: %w", err)
		}
		poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
		if poolConfig.ConnConfig.RuntimeParams == nil {
			poolConfig.ConnConfig.RuntimeParams = map[string]string{}
		}
		poolConfig.ConnConfig.RuntimeParams["application_name"] = opts.ServiceName
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		d.Store = catalog.NewPostgresStore(pool, cfg.CatalogLookupTimeout)
		d.PingDB = pool.Ping
	case config.BackendMySQL:
		if cfg.DBAutoMigrate {
			if err := db.Up(db.MySQL, cfg.MySQLDSN); err != nil {
				return err
			}
		}
		sqlDB, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return fmt.Errorf("open mysql: %w", err)
		}
		d.closers = append(d.closers, sqlDB.Close)
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("ping mysql: %w", err)
		}
		d.Store = catalog.NewMySQLStore(sqlDB, cfg.CatalogLookupTimeout)
		d.PingDB = sqlDB.PingContext
	case config.BackendMemory:
		store := catalog.NewMemoryStore()
		res, err := catalog.Seed(ctx, store, cfg.CatalogSeedDir)
		if err != nil {
			return fmt.Errorf("seed memory catalog from %s: %w", cfg.CatalogSeedDir, err)
		}
		opts.Logger.Info().Int("prices", res.Prices).Int("offers", res.Offers).Str("dir", cfg.CatalogSeedDir).Msg("catalog_seeded")
		d.Store = store
	default:
		return fmt.Errorf("unsupported catalog backend %q", cfg.CatalogBackend)
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (d *Dependencies) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// Handlers builds the pricing engine, checkout service and HTTP handlers on top of d.
func (d *Dependencies) Handlers(logger zerolog.Logger) (*checkout.Handler, *catalog.Handler, error) {
	engine, err := pricing.NewEngine(pricing.EngineConfig{Catalog: d.Lookup, Logger: &logger})
	if err != nil {
		return nil, nil, err
	}
	svc := checkout.NewService(engine, logger)
	return checkout.NewHandler(svc), catalog.NewHandler(catalog.HandlerConfig{Service: d.Catalog}), nil
}

// Checker exposes d to the readiness probe.
func (d *Dependencies) Checker() health.Deps {
	checker := health.Deps{DB: d.PingDB}
	if d.Redis != nil {
		checker.Redis = d.Redis
	}
	return checker
}

// InvalidateCache drops cached lookups for every priced code plus the cached
// listings. It is a no-op without Redis.
func (d *Dependencies) InvalidateCache(ctx context.Context) error {
	if d.Redis == nil {
		return nil
	}
	rows, err := d.Store.ListPrices(ctx)
	if err != nil {
		return err
	}
	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, row.Code)
	}
	var errs []error
	if cached, ok := d.Lookup.(*catalog.CachedLookup); ok {
		errs = append(errs, cached.Invalidate(ctx, codes...))
	}
	errs = append(errs, d.Catalog.InvalidateListings(ctx))
	return errors.Join(errs...)
}
