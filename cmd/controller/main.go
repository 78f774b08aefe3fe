package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/arakoodev/cliscale/app/controller"
	"github.com/arakoodev/cliscale/core/config"
	"github.com/arakoodev/cliscale/core/logger"
	"github.com/arakoodev/cliscale/core/server"
	"github.com/arakoodev/cliscale/core/session"
	"github.com/arakoodev/cliscale/core/token"
	"github.com/arakoodev/cliscale/integration/database/pg"
	"github.com/arakoodev/cliscale/integration/database/redis"
	"github.com/arakoodev/cliscale/integration/orchestrator/kube"
	"github.com/arakoodev/cliscale/migrations"
	"github.com/arakoodev/cliscale/pkg/ratelimiter"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg Config
	config.MustLoad(&cfg)

	logOpts := []logger.Option{logger.WithProduction(cfg.AppName), logger.WithLevel(logger.ParseLevel(cfg.LogLevel)), logger.SetAsDefault()}
	if cfg.AppEnv == "development" {
		logOpts[0] = logger.WithDevelopment(cfg.AppName)
	}
	log := logger.New(logOpts...)

	if ensureWriteTimeout(&cfg.Server, cfg.Session.ResolveTimeout) {
		log.Warn("Server write timeout raised above the endpoint resolve budget",
			logger.Key("write_timeout", cfg.Server.WriteTimeout))
	}

	pool, err := pg.Connect(ctx, cfg.DB)
	if err != nil {
		log.Error("Failed to connect to database", logger.Component("database"), logger.Error(err))
		os.Exit(1)
	}
	if err := pg.MigrateFS(ctx, pool, migrations.FS, cfg.DB, log.With(logger.Component("database.migration"))); err != nil {
		log.Error("Failed to migrate database", logger.Component("database.migration"), logger.Error(err))
		os.Exit(1)
	}

	store := pg.NewSessionStore(pool)
	defer store.Close()

	signer, err := loadSigner(cfg.Controller)
	if err != nil {
		log.Error("Failed to load signing key", logger.Component("signer"), logger.Error(err))
		os.Exit(1)
	}

	kubeClient, err := kube.NewClientset(cfg.Kube)
	if err != nil {
		log.Error("Failed to create kubernetes client", logger.Component("orchestrator"), logger.Error(err))
		os.Exit(1)
	}
	driver, err := kube.NewDriver(kubeClient, cfg.Kube, kube.WithLogger(log.With(logger.Component("orchestrator"))))
	if err != nil {
		log.Error("Failed to create kubernetes driver", logger.Component("orchestrator"), logger.Error(err))
		os.Exit(1)
	}
	if err := driver.EnsureNetworkPolicy(ctx); err != nil {
		// Without the policy workers would accept traffic from anything
		// in the cluster; refuse to serve.
		log.Error("Failed to apply worker network policy", logger.Component("orchestrator"), logger.Error(err))
		os.Exit(1)
	}

	resolver := session.NewResolver(store, driver,
		session.WithResolverLogger(log.With(logger.Component("session.resolver"))))

	svc, err := session.NewService(store, driver, signer, cfg.Session,
		session.WithServiceLogger(log.With(logger.Component("session"))),
		session.WithResolver(resolver))
	if err != nil {
		log.Error("Failed to create session service", logger.Component("session"), logger.Error(err))
		os.Exit(1)
	}

	pruner := session.NewPruner(store,
		session.WithPrunerLogger(log.With(logger.Component("session.pruner"))))

	eg, ctx := errgroup.WithContext(ctx)

	limiter, err := buildLimiter(ctx, cfg.Controller, eg, log)
	if err != nil {
		log.Error("Failed to create rate limiter", logger.Component("ratelimiter"), logger.Error(err))
		os.Exit(1)
	}

	app, err := controller.New(cfg.Controller, svc, store, signer, limiter,
		controller.WithLogger(log.With(logger.Component("http"))))
	if err != nil {
		log.Error("Failed to create controller app", logger.Component("http"), logger.Error(err))
		os.Exit(1)
	}

	srv, err := server.NewFromConfig(cfg.Server, server.WithLogger(log.With(logger.Component("server"))))
	if err != nil {
		log.Error("Failed to create server", logger.Component("server"), logger.Error(err))
		os.Exit(1)
	}

	eg.Go(srv.Run(ctx, app.Router()))
	eg.Go(pruner.Run(ctx))
	eg.Go(resolver.Run(ctx))

	if err := eg.Wait(); err != nil {
		log.Error("Controller terminated", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Controller stopped")
}

// loadSigner reads the RSA private key from config: inline PEM wins,
// then the file path.
func loadSigner(cfg controller.Config) (*token.Signer, error) {
	switch {
	case cfg.SigningKeyPEM != "":
		return token.NewSignerFromPEM([]byte(cfg.SigningKeyPEM))
	case cfg.SigningKeyFile != "":
		pemBytes, err := os.ReadFile(cfg.SigningKeyFile)
		if err != nil {
			return nil, err
		}
		return token.NewSignerFromPEM(pemBytes)
	default:
		return nil, errors.New("JWT_PRIVATE_KEY or JWT_PRIVATE_KEY_FILE must be set")
	}
}

// buildLimiter picks the rate limiter backend: a shared Redis window when
// REDIS_URL is set, the per-replica memory store otherwise.
func buildLimiter(ctx context.Context, cfg controller.Config, eg *errgroup.Group, log *slog.Logger) (ratelimiter.RateLimiter, error) {
	limiterCfg := ratelimiter.Config{Limit: cfg.RateLimit, Window: cfg.RateLimitWindow}

	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, redis.Config{ConnectionURL: cfg.RedisURL})
		if err != nil {
			return nil, err
		}
		return ratelimiter.NewLimiter(ratelimiter.NewRedisStore(client), limiterCfg)
	}

	memStore := ratelimiter.NewMemoryStore(
		ratelimiter.WithMemoryStoreLogger(log.With(logger.Component("ratelimiter"))))
	eg.Go(memStore.Run(ctx))
	return ratelimiter.NewLimiter(memStore, limiterCfg)
}
