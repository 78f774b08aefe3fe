// Package session implements the worker session domain: admission of job
// requests, the durable session and token-record mapping shared by the
// controller and gateway planes, TTL pruning, and background endpoint
// resolution.
//
// # Model
//
// A Session is one admitted job request. Its worker endpoint starts empty
// and is filled exactly once when the orchestrator reports where the worker
// landed; a session is routable while the endpoint is known and the TTL has
// not passed. A TokenRecord is the durable one-shot key backing a
// capability token: it is inserted at mint and deleted by the first
// successful consumption, which is what makes tokens single-use across
// replicas.
//
// # Store
//
// Store is the only state shared between planes. The controller writes
// sessions and token records; the gateway consumes token records and reads
// sessions. Implementations: MemoryStore here (tests, single-process
// development) and the PostgreSQL store in integration/database/pg
// (production). Store implementations wrap retriable driver failures with
// ErrTransient; the Service retries those at most twice per write.
//
// # Service
//
// Service implements the controller operations. CreateSession validates the
// request, submits the worker, and performs the durable write order: insert
// the session row, mint the token, insert the token record, then resolve
// and fill the endpoint within a bounded budget. A resolution timeout
// degrades to pending status rather than failing: the session and token are
// already durable, and the Resolver continues in the background while the
// gateway polls briefly at attach time.
//
//	svc, err := session.NewService(store, driver, signer, cfg,
//		session.WithServiceLogger(log),
//		session.WithResolver(resolver),
//	)
//
// # Background tasks
//
// Pruner deletes expired rows from both tables on an interval; Resolver
// fills endpoints that outlived the in-request budget. Both follow the
// Start/Stop/Run lifecycle and compose with errgroup:
//
//	g.Go(pruner.Run(ctx))
//	g.Go(resolver.Run(ctx))
package session
