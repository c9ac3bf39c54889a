package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/noah-isme/toko-checkout/internal/app"
	"github.com/noah-isme/toko-checkout/internal/catalog"
	"github.com/noah-isme/toko-checkout/internal/config"
	"github.com/noah-isme/toko-checkout/internal/db"
	"github.com/noah-isme/toko-checkout/internal/lock"
	"github.com/noah-isme/toko-checkout/internal/obs"
)

func main() {
	var (
		dir         = flag.String("dir", "", "directory holding prices.csv and offers.csv; defaults to CATALOG_SEED_DIR")
		runMigrate  = flag.Bool("migrate", true, "apply schema migrations before seeding")
		migrateOnly = flag.Bool("migrate-only", false, "apply migrations and exit without seeding")
		lockTTL     = flag.Duration("lock-ttl", time.Minute, "lease on the seeding lock when Redis is configured")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var dialect db.Dialect
	var dsn string
	switch cfg.CatalogBackend {
	case config.BackendPostgres:
		dialect, dsn = db.Postgres, cfg.DatabaseURL
	case config.BackendMySQL:
		dialect, dsn = db.MySQL, cfg.MySQLDSN
	default:
		log.Fatalf("catalog backend %q has no persistent store to seed", cfg.CatalogBackend)
	}

	if *runMigrate || *migrateOnly {
		if err := db.Up(dialect, dsn); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Printf("migrations applied (%s)", dialect)
	}
	if *migrateOnly {
		return
	}

	seedDir := strings.TrimSpace(*dir)
	if seedDir == "" {
		seedDir = cfg.CatalogSeedDir
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Migrations already ran above.
	cfg.DBAutoMigrate = false
	deps, err := app.Build(ctx, cfg, app.Options{
		ServiceName: "toko-checkout-seeder",
		Logger:      obs.NewLogger("console", "warn"),
	})
	if err != nil {
		log.Fatalf("connect catalog: %v", err)
	}
	defer deps.Close()

	seed := func(ctx context.Context) error {
		res, err := catalog.Seed(ctx, deps.Store, seedDir)
		if err != nil {
			return err
		}
		log.Printf("seeded %d prices and %d offers from %s", res.Prices, res.Offers, seedDir)
		if err := deps.InvalidateCache(ctx); err != nil {
			log.Printf("invalidate catalog cache: %v", err)
		}
		return nil
	}

	if deps.Redis != nil {
		locker := lock.Locker{Client: deps.Redis}
		err = locker.WithLock(ctx, "catalog-seed", *lockTTL, seed)
	} else {
		err = seed(ctx)
	}
	if err != nil {
		log.Fatalf("seed catalog from %s: %v", seedDir, err)
	}
}
