// Command subsyncd serves the billing webhook, checkout and portal endpoints
// and keeps per-user subscription records in sync with Stripe.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/subsync/modules/billing"
	"github.com/dmitrymomot/subsync/pkg/archive"
	"github.com/dmitrymomot/subsync/pkg/config"
	"github.com/dmitrymomot/subsync/pkg/email"
	"github.com/dmitrymomot/subsync/pkg/httpserver"
	"github.com/dmitrymomot/subsync/pkg/logger"
	"github.com/dmitrymomot/subsync/pkg/mongo"
	"github.com/dmitrymomot/subsync/pkg/pg"
	"github.com/dmitrymomot/subsync/pkg/redis"
	"github.com/dmitrymomot/subsync/pkg/requestid"
	"github.com/dmitrymomot/subsync/pkg/subscription"
	"github.com/dmitrymomot/subsync/pkg/tier"
	"github.com/dmitrymomot/subsync/pkg/webhook"
	"github.com/dmitrymomot/subsync/svc/notify"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("subsyncd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var app appConfig
	if err := config.Load(&app); err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(app.environment(), app.AppName),
		logger.WithContextExtractors(logger.RequestIDExtractor(), logger.UserIDExtractor()),
	)
	slog.SetDefault(log)

	catalog, err := tier.Load(app.CatalogPath)
	if err != nil {
		return err
	}

	var billingCfg subscription.Config
	if err := config.Load(&billingCfg); err != nil {
		return err
	}
	defaults := subscription.DefaultsFor(catalog, billingCfg)

	store, checks, cleanup, err := openStore(ctx, app, defaults, log)
	if err != nil {
		return err
	}
	defer cleanup()

	var stripeCfg subscription.StripeConfig
	if err := config.Load(&stripeCfg); err != nil {
		return err
	}
	gateway, err := subscription.NewStripeGateway(stripeCfg, log)
	if err != nil {
		return err
	}

	var metrics *billing.Metrics
	publishers := []subscription.Publisher{}
	if app.MetricsEnabled {
		metrics = billing.NewMetrics(app.AppName)
		publishers = append(publishers, metrics)
	}
	if app.NotifyEnabled {
		notifier, err := newNotifier(app, gateway, catalog, log)
		if err != nil {
			return err
		}
		publishers = append(publishers, notifier)
	}

	engine, err := newEngine(store, catalog, gateway, billingCfg, subscription.Publishers(publishers...), log)
	if err != nil {
		return err
	}

	var entCfg subscription.EntitlementsConfig
	if err := config.Load(&entCfg); err != nil {
		return err
	}
	entitlements, err := subscription.NewEntitlements(entCfg, store, catalog)
	if err != nil {
		return err
	}

	archiver, err := newArchiver(ctx)
	if err != nil {
		return err
	}

	module := billing.New(engine, webhook.NewVerifier(stripeCfg.WebhookSecret),
		billing.WithArchiver(archiver),
		billing.WithEntitlements(entitlements),
		billing.WithMetrics(metrics),
		billing.WithLogger(log),
		billing.WithAccountHooks(engine, app.HooksToken),
	)

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if app.TrustUserHeader {
		r.Use(billing.HeaderUser)
	}
	r.Get("/health/live", httpserver.HealthCheckHandler(log))
	r.Get("/health/ready", httpserver.HealthCheckHandler(log, checks...))
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}
	r.Mount(app.MountPath, module.Handle())

	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return err
	}
	return httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log)).Run(ctx, r)
}

func openStore(ctx context.Context, app appConfig, defaults subscription.Defaults, log *slog.Logger) (subscription.Store, []httpserver.Check, func(), error) {
	var (
		store   subscription.Store
		checks  []httpserver.Check
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch app.StoreDriver {
	case driverMemory:
		store = subscription.NewMemoryStore(defaults)
		checks = append(checks, httpserver.Required("memory", func(context.Context) error { return nil }))
	case driverPostgres:
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, cleanup, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, cleanup, err
		}
		closers = append(closers, pool.Close)
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx, pool, cfg, subscription.Migrations, subscription.MigrationsDir, log); err != nil {
				return nil, nil, cleanup, err
			}
		}
		store = subscription.NewPostgresStore(pool, defaults)
		checks = append(checks, httpserver.Required("postgres", pg.Healthcheck(pool, subscription.PostgresTable)))
	case driverMongo:
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, cleanup, err
		}
		db, err := mongo.NewWithDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, cleanup, err
		}
		closers = append(closers, func() { _ = db.Client().Disconnect(context.Background()) })
		ms := subscription.NewMongoStore(db, subscription.DefaultMongoCollection, defaults)
		if err := ms.EnsureIndexes(ctx); err != nil {
			return nil, nil, cleanup, err
		}
		store = ms
		checks = append(checks, httpserver.Required("mongo", mongo.Healthcheck(db.Client())))
	default:
		return nil, nil, cleanup, fmt.Errorf("unknown STORE_DRIVER %q", app.StoreDriver)
	}

	if app.RedisIndex {
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, cleanup, err
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, cleanup, err
		}
		closers = append(closers, func() { _ = client.Close() })
		index := subscription.NewRedisIndex(client, cfg.KeyPrefix, app.RedisIndexTTL)
		store = subscription.NewIndexedStore(store, index, log)
		checks = append(checks, httpserver.Optional("redis", redis.Healthcheck(client, cfg.KeyPrefix+"healthcheck")))
	}

	return store, checks, cleanup, nil
}

// newEngine checks the billing tiers against the catalog and builds the engine.
// Email resolution reads the addresses the register hook saved in the store.
func newEngine(store subscription.Store, catalog tier.Catalog, gateway subscription.Gateway, cfg subscription.Config, pub subscription.Publisher, log *slog.Logger) (*subscription.Engine, error) {
	if err := cfg.Validate(catalog); err != nil {
		return nil, err
	}
	return subscription.NewEngine(store, catalog, gateway,
		subscription.WithConfig(cfg),
		subscription.WithPublisher(pub),
		subscription.WithUserDirectory(subscription.NewStoreDirectory(store)),
		subscription.WithLogger(log),
	), nil
}

func newNotifier(app appConfig, gateway *subscription.StripeGateway, catalog tier.Catalog, log *slog.Logger) (*notify.Notifier, error) {
	var cfg email.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	sender, err := email.New(cfg)
	if err != nil {
		return nil, err
	}
	return notify.New(sender, gateway, catalog,
		notify.WithLogger(log),
		notify.WithAppName(app.AppName),
		notify.WithSupportEmail(cfg.SupportEmail),
	), nil
}

func newArchiver(ctx context.Context) (archive.Archiver, error) {
	var cfg archive.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return archive.Discard{}, nil
	}
	return archive.New(ctx, cfg)
}
