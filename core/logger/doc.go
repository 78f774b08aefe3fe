// Package logger provides structured logging built on Go's standard slog
// package, with environment presets and typed attribute helpers shared by
// every component of the service.
//
// # Usage
//
// Create loggers using the factory function with configuration options:
//
//	log := logger.New(
//		logger.WithProduction("controller"),
//		logger.WithLevel(slog.LevelDebug),
//	)
//
//	log.Info("server starting",
//		logger.Component("server"),
//		logger.Event("startup"),
//	)
//
// Without options the logger discards output, so packages can log
// unconditionally and stay silent unless the application wires a logger in.
//
// # Attribute helpers
//
// Helpers return an empty slog.Attr for zero values, which slog drops from
// the record. This keeps call sites free of nil checks:
//
//	log.Error("create session failed",
//		logger.Error(err),
//		logger.SessionID(sessionID),
//		logger.RequestID(reqID),
//	)
package logger
