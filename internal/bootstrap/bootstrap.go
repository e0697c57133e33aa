// Package bootstrap wires configuration, storage and services into a
// runnable application. Both the API server and mintctl build on it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"hero-mint-service/config"
	"hero-mint-service/internal/adapter/events"
	"hero-mint-service/internal/adapter/generator"
	httpHandler "hero-mint-service/internal/adapter/http/handler"
	"hero-mint-service/internal/adapter/storage/memory"
	pgStorage "hero-mint-service/internal/adapter/storage/postgres"
	redisStorage "hero-mint-service/internal/adapter/storage/redis"
	"hero-mint-service/internal/core/ports"
	"hero-mint-service/internal/service"
	"hero-mint-service/pkg/metrics"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Repositories bundles one storage driver's implementations.
type Repositories struct {
	Wallets    ports.WalletRepository
	Ledger     ports.LedgerRepository
	Requests   ports.MintRequestRepository
	Assets     ports.AssetRepository
	Receipts   ports.ReceiptRepository
	Audit      ports.AuditRepository
	Transactor ports.DBTransactor
	Health     ports.HealthChecker
}

// App is the fully wired application.
type App struct {
	Config     *config.Config
	Repos      Repositories
	Metrics    *metrics.Metrics
	TokenSvc   ports.TokenService
	LedgerSvc  ports.LedgerService
	MintSvc    ports.MintService
	AssetSvc   ports.AssetService
	Reconciler ports.Reconciler
	JobLock    ports.JobLock // nil without Redis
	Router     *gin.Engine

	log     zerolog.Logger
	closers []func() error
}

// Options overrides parts of the wiring, mostly for tests.
type Options struct {
	// Redis replaces the client built from cfg.Redis.
	Redis *goredis.Client
	// Generator replaces the generator built from cfg.Generator.
	Generator ports.AssetGenerator
	// OpenAPISpecPath is read for /swagger/spec; a missing file only disables it.
	OpenAPISpecPath string
}

// Build wires the application described by cfg.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*App, error) {
	app := &App{
		Config:  cfg,
		Metrics: metrics.New(),
		log:     log,
	}

	repos, err := app.openStorage(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Repos = repos

	healthCheckers := []ports.HealthChecker{repos.Health}

	// Redis-backed helpers are optional; interfaces stay nil when disabled.
	var (
		cache          ports.IdempotencyCache
		nonces         ports.NonceStore
		rateLimitStore *redisStorage.RateLimitStore
	)
	rdb := opts.Redis
	if rdb == nil && cfg.Redis.Enabled {
		rdb, err = redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.closers = append(app.closers, rdb.Close)
	}
	if rdb != nil {
		cache = redisStorage.NewIdempotencyCache(rdb)
		nonces = redisStorage.NewNonceStore(rdb)
		app.JobLock = redisStorage.NewJobLock(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: no outcome cache, nonce fast path or rate limiting")
	}

	gen := opts.Generator
	if gen == nil {
		gen, err = generator.New(cfg.Generator, log)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init generator: %w", err)
		}
	}

	publisher := events.New(cfg.Events, log)
	app.closers = append(app.closers, publisher.Close)

	app.TokenSvc = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(repos.Audit, log)
	ledgerSvc := service.NewLedgerService(repos.Wallets, repos.Ledger, auditSvc, repos.Transactor, cfg.Ledger.ProvisionBalance, app.Metrics, log)
	app.LedgerSvc = ledgerSvc
	dedup := service.NewDeduplicator(repos.Receipts, cache, cfg.Mint.OutcomeCacheTTL, log)

	app.MintSvc = service.NewMintService(service.MintDeps{
		Ledger:     ledgerSvc,
		Dedup:      dedup,
		Requests:   repos.Requests,
		Assets:     repos.Assets,
		Receipts:   repos.Receipts,
		Audit:      auditSvc,
		Generator:  gen,
		Nonces:     nonces,
		Events:     publisher,
		Transactor: repos.Transactor,
		Metrics:    app.Metrics,
	}, service.MintOptions{
		PublicBaseURL:       cfg.Mint.PublicBaseURL,
		DefaultCollectionID: cfg.Mint.DefaultCollectionID,
		NonceTTL:            cfg.Mint.NonceTTL,
		MaxPriceCredits:     cfg.Mint.MaxPriceCredits,
	}, log)
	app.AssetSvc = service.NewAssetService(repos.Assets, auditSvc, repos.Transactor, log)
	app.Reconciler = service.NewReconcileService(repos.Wallets, repos.Ledger, cfg.Reconcile.PageSize, app.Metrics, log)

	var spec []byte
	if opts.OpenAPISpecPath != "" {
		if spec, err = os.ReadFile(opts.OpenAPISpecPath); err != nil {
			log.Warn().Err(err).Msg("OpenAPI document not found, Swagger UI will be unavailable")
		}
	}

	app.Router = httpHandler.SetupRouter(httpHandler.RouterDeps{
		MintSvc:        app.MintSvc,
		AssetSvc:       app.AssetSvc,
		LedgerSvc:      app.LedgerSvc,
		TokenSvc:       app.TokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		Metrics:        app.Metrics,
		OpenAPISpec:    spec,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	return app, nil
}

func (a *App) openStorage(ctx context.Context) (Repositories, error) {
	switch a.Config.Storage.Driver {
	case "memory":
		a.log.Warn().Msg("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return Repositories{
			Wallets:    memory.NewWalletRepo(store),
			Ledger:     memory.NewLedgerRepo(store),
			Requests:   memory.NewMintRequestRepo(store),
			Assets:     memory.NewAssetRepo(store),
			Receipts:   memory.NewReceiptRepo(store),
			Audit:      memory.NewAuditRepo(store),
			Transactor: store,
			Health:     store,
		}, nil
	case "postgres":
		if a.Config.Database.AutoMigrate {
			if err := Migrate(a.Config.Database, a.log); err != nil {
				return Repositories{}, err
			}
		}
		pool, err := pgStorage.NewPool(ctx, a.Config.Database, a.log)
		if err != nil {
			return Repositories{}, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		return Repositories{
			Wallets:    pgStorage.NewWalletRepo(pool),
			Ledger:     pgStorage.NewLedgerRepo(pool),
			Requests:   pgStorage.NewMintRequestRepo(pool),
			Assets:     pgStorage.NewAssetRepo(pool),
			Receipts:   pgStorage.NewReceiptRepo(pool),
			Audit:      pgStorage.NewAuditRepo(pool),
			Transactor: pgStorage.NewTransactor(pool),
			Health:     pgStorage.NewHealthCheck(pool),
		}, nil
	default:
		return Repositories{}, fmt.Errorf("unknown storage driver %q", a.Config.Storage.Driver)
	}
}

// Migrate applies all pending schema migrations.
func Migrate(cfg config.DatabaseConfig, log zerolog.Logger) error {
	m, err := pgStorage.NewMigrator(cfg.MigrateURL(), log)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck
	return m.Up()
}

// NewCron returns the reconciliation scheduler, or nil when disabled.
func (a *App) NewCron() *service.CronService {
	if !a.Config.Reconcile.Enabled {
		return nil
	}
	return service.NewCronService(a.Reconciler, a.JobLock, a.Config.Reconcile.LockTTL, a.log)
}

// Close releases every resource opened by Build, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
