// Package ratelimiter provides sliding window rate limiting with pluggable
// storage backends.
//
// The sliding window log algorithm keeps a per-key log of admitted request
// timestamps. A request is admitted only while fewer than Limit requests
// fall inside the trailing Window. Unlike fixed windows, there is no burst
// at window boundaries: the limit holds over every interval of the
// configured length.
//
// # Core Types
//
// RateLimiter is the contract consumed by middleware:
//   - Allow(ctx, key): record one request and report the decision
//
// Limiter implements RateLimiter on top of a Store, with configurable
// limit and window, and administrative Reset.
//
// # Usage
//
// Basic limiter setup:
//
//	store := ratelimiter.NewMemoryStore()
//
//	// 5 requests per sliding 60-second window.
//	limiter, err := ratelimiter.NewLimiter(store, ratelimiter.Config{
//		Limit:  5,
//		Window: time.Minute,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := limiter.Allow(ctx, clientIP)
//	if err != nil {
//		// Store failure; decide whether to fail open or closed.
//		return
//	}
//	if !result.Allowed() {
//		log.Printf("rate limited, retry after %s", result.RetryAfter())
//		return
//	}
//
// # Storage Backends
//
// MemoryStore keeps window logs in process memory. It is fast and
// dependency-free but not shared across instances. A background cleanup
// goroutine evicts keys idle for over an hour; run it with the errgroup
// pattern:
//
//	g.Go(store.Run(ctx))
//
// RedisStore shares window state across instances using a sorted set per
// key. The count-and-admit step executes as a single server-side script,
// so concurrent requests from multiple instances are counted exactly:
//
//	store := ratelimiter.NewRedisStore(redisClient)
//	limiter, err := ratelimiter.NewLimiter(store, cfg)
//
// # Result Semantics
//
// Result.Remaining is the allowance left after the current request and is
// negative when the request was denied; Allowed() is equivalent to
// Remaining >= 0. ResetAt is when the oldest recorded request leaves the
// window, which is the earliest instant a denied caller may succeed.
// Clamp Remaining at zero when exposing it in response headers.
//
// # Error Handling
//
//   - ErrInvalidConfig: non-positive limit or window, or missing store
//   - ErrStoreUnavailable: the backend failed; wraps the cause
//
// A denied request is not an error: inspect Result.Allowed().
package ratelimiter
