// Package pg provides PostgreSQL connection management with migrations and
// health checking built on the pgx driver.
//
// The package wraps pgx with application-level retry logic, connection pool
// tuning, and integrated schema migration support using goose. Connection
// establishment uses exponential backoff so simultaneous service restarts do
// not overwhelm a recovering database.
//
// # Configuration
//
// All settings load from environment variables through the Config struct:
//
//	cfg, err := config.Load[pg.Config]()
//
// PG_CONN_URL is required; pool sizing, retry, and migration settings have
// production defaults (20 max connections, 3 connection attempts with 5s
// initial backoff).
//
// # Usage
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.MigrateFS(ctx, pool, migrations.FS, cfg, log); err != nil {
//		return err
//	}
//
// Migrations normally ship embedded in the binary via MigrateFS; Migrate
// reads from cfg.MigrationsPath on disk for development workflows. Both
// bridge the pgx pool into database/sql for goose and run pending
// migrations exactly once at startup.
//
// # Health Checking
//
// Healthcheck returns a probe function performing a SELECT 1 round trip:
//
//	check := pg.Healthcheck(pool)
//	if err := check(ctx); err != nil {
//		// database unreachable
//	}
//
// # Error Classification
//
// Store implementations classify driver errors with the helper predicates
// instead of matching error strings:
//
//	pg.IsNotFoundError(err)     // pgx.ErrNoRows
//	pg.IsDuplicateKeyError(err) // unique constraint violation
//	pg.IsTransientError(err)    // safe to retry: network, serialization, shutdown states
//
// IsTransientError drives the retry policy for durable writes: transient
// failures may be retried a bounded number of times, everything else
// (including context expiry) fails immediately.
package pg
