// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package automatically loads .env files on first use and uses the
// caarlos0/env library for parsing environment variables into struct fields.
//
// Basic usage:
//
//	import "github.com/arakoodev/cliscale/core/config"
//
//	type StoreConfig struct {
//		ConnURL  string `env:"PG_CONN_URL,required"`
//		MaxConns int    `env:"PG_MAX_CONNS" envDefault:"20"`
//	}
//
//	func main() {
//		var store StoreConfig
//
//		// Load with error handling
//		if err := config.Load(&store); err != nil {
//			log.Fatal(err)
//		}
//
//		// Or panic on failure (useful for startup)
//		config.MustLoad(&store)
//	}
//
// Each configuration type is loaded only once per process, so components
// sharing a config struct observe the same values without re-reading the
// environment.
package config
