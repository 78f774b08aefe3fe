package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/arakoodev/cliscale/app/gateway"
	"github.com/arakoodev/cliscale/core/config"
	"github.com/arakoodev/cliscale/core/logger"
	"github.com/arakoodev/cliscale/core/proxy"
	"github.com/arakoodev/cliscale/core/server"
	"github.com/arakoodev/cliscale/core/token"
	"github.com/arakoodev/cliscale/integration/database/pg"
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

	pool, err := pg.Connect(ctx, cfg.DB)
	if err != nil {
		log.Error("Failed to connect to database", logger.Component("database"), logger.Error(err))
		os.Exit(1)
	}

	store := pg.NewSessionStore(pool)
	defer store.Close()

	verifier, err := buildVerifier(ctx, cfg.Gateway)
	if err != nil {
		log.Error("Failed to create token verifier", logger.Component("token"), logger.Error(err))
		os.Exit(1)
	}

	relay := proxy.New(cfg.Proxy, proxy.WithLogger(log.With(logger.Component("proxy"))))

	app, err := gateway.New(cfg.Gateway, store, verifier, relay,
		gateway.WithLogger(log.With(logger.Component("http"))))
	if err != nil {
		log.Error("Failed to create gateway app", logger.Component("http"), logger.Error(err))
		os.Exit(1)
	}

	srv, err := server.NewFromConfig(cfg.Server, server.WithLogger(log.With(logger.Component("server"))))
	if err != nil {
		log.Error("Failed to create server", logger.Component("server"), logger.Error(err))
		os.Exit(1)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(srv.Run(ctx, app.Router()))

	if err := eg.Wait(); err != nil {
		log.Error("Gateway terminated", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Gateway stopped")
}

// buildVerifier picks the verification path: the controller's JWKS
// endpoint when configured, a locally shared public key otherwise.
func buildVerifier(ctx context.Context, cfg gateway.Config) (token.Verifier, error) {
	switch {
	case cfg.JWKSURL != "":
		return token.NewJWKSVerifier(ctx, cfg.JWKSURL)
	case cfg.PublicKeyPEM != "":
		block, _ := pem.Decode([]byte(cfg.PublicKeyPEM))
		if block == nil {
			return nil, errors.New("JWT_PUBLIC_KEY is not valid PEM")
		}
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse JWT_PUBLIC_KEY: %w", err)
		}
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("JWT_PUBLIC_KEY is %T, expected RSA", parsed)
		}
		return token.NewVerifier(pub), nil
	default:
		return nil, errors.New("JWKS_URL or JWT_PUBLIC_KEY must be set")
	}
}
