package main

import (
	"time"

	"github.com/arakoodev/cliscale/app/controller"
	"github.com/arakoodev/cliscale/core/server"
	"github.com/arakoodev/cliscale/core/session"
	"github.com/arakoodev/cliscale/integration/database/pg"
	"github.com/arakoodev/cliscale/integration/orchestrator/kube"
)

// Config aggregates every controller process setting; each component
// keeps its own env tags.
type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"cliscale-controller"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Server     server.Config
	DB         pg.Config
	Session    session.Config
	Kube       kube.Config
	Controller controller.Config
}

// writeTimeoutMargin pads the server write timeout past the in-request
// endpoint-resolve budget. http.Server arms the connection write deadline
// before the handler runs, so a pending response written after riding out
// the full resolve window still needs room on the wire.
const writeTimeoutMargin = 15 * time.Second

// ensureWriteTimeout widens the server write timeout when the resolve
// budget would outlive it. Reports whether an adjustment was made.
func ensureWriteTimeout(srv *server.Config, resolve time.Duration) bool {
	if resolve <= 0 {
		resolve = 30 * time.Second // the session service default when unset
	}
	if srv.WriteTimeout > resolve {
		return false
	}
	srv.WriteTimeout = resolve + writeTimeoutMargin
	return true
}
