// Package server wraps http.Server with graceful shutdown, thread-safe
// lifecycle management, and production-ready defaults.
//
// # Basic Usage
//
// Create a server and run it until the context is canceled:
//
//	srv, err := server.New(":8080")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//
//	if err := srv.Start(ctx, handler); err != nil {
//		log.Fatal(err)
//	}
//
// # Configuration
//
// Servers are usually built from an environment-backed Config:
//
//	var cfg server.Config
//	srv, err := server.NewFromConfig(cfg, server.WithLogger(log))
//
// Individual settings can be overridden with functional options:
//
//	srv, err := server.New(":8080",
//		server.WithShutdownTimeout(60*time.Second),
//		server.WithLogger(log),
//	)
//
// # Graceful Shutdown
//
// Start blocks until the context is canceled or the listener fails, then
// drains in-flight requests for up to the shutdown timeout. Run returns a
// closure suitable for errgroup.Group:
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(srv.Run(ctx, handler))
//	if err := g.Wait(); err != nil {
//		log.Error("server failed", logger.Error(err))
//	}
//
// # Defaults
//
//   - ReadTimeout: 15 seconds
//   - WriteTimeout: 15 seconds
//   - IdleTimeout: 60 seconds
//   - MaxHeaderBytes: 1MB
//   - Shutdown timeout: 30 seconds
//
// The Server type is safe for concurrent use.
package server
