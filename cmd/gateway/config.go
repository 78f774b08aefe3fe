package main

import (
	"github.com/arakoodev/cliscale/app/gateway"
	"github.com/arakoodev/cliscale/core/proxy"
	"github.com/arakoodev/cliscale/core/server"
	"github.com/arakoodev/cliscale/integration/database/pg"
)

// Config aggregates every gateway process setting; each component keeps
// its own env tags.
type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"cliscale-gateway"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Server  server.Config
	DB      pg.Config
	Proxy   proxy.Config
	Gateway gateway.Config
}
