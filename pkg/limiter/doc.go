// Package limiter makes accept/reject decisions for inbound API requests,
// bucketed by a caller-derived key (usually the client IP), using one of
// three interchangeable algorithms.
//
// The primary entry point is the Limiter facade:
//
//	l, err := limiter.New(limiter.Config{
//		Name:        "search",
//		Algorithm:   limiter.SlidingWindow,
//		Window:      10 * time.Second,
//		MaxRequests: 20,
//	})
//	dec, err := l.Allow(ctx, key)
//
// The returned Decision says whether the request may proceed, how many
// requests remain, and timing hints for rate-limit headers (Retry-After,
// X-RateLimit-Reset). BuildDenyResponse renders a denial as a complete 429
// with the standard headers and a JSON body.
//
// # Algorithms
//
// Three strategies share the Strategy interface; a Limiter holds exactly
// one, picked by Config.Algorithm at construction:
//
//   - FixedWindow: a per-key counter that resets every Window. O(1) state,
//     cheapest, but an interval straddling a window boundary can admit up
//     to twice MaxRequests. That boundary burst is documented behavior,
//     preserved because callers may depend on the exact threshold
//     semantics.
//
//   - SlidingWindow: a per-key log of request timestamps, pruned to the
//     trailing Window on every evaluation. Exact - no boundary weakness -
//     at O(MaxRequests) memory per key. Prefer it for short windows where
//     precision matters.
//
//   - TokenBucket: a per-key reservoir of fractional tokens refilled at
//     RefillRate up to BucketCapacity, one token spent per admitted
//     request. Absorbs controlled bursts while enforcing a long-term
//     average rate.
//
// # Keys
//
// Identity is an opaque string. ClientKey derives it from the
// X-Forwarded-For chain with the peer address as fallback; FingerprintKey
// appends a truncated user-agent. Keys are approximate by design: NAT and
// shared proxies collapse clients onto one key, and requests with no
// derivable origin share the "unknown" bucket. Install a custom KeyFunc
// with WithKeyFunc.
//
// # State and memory
//
// Each in-memory strategy owns a Store: a concurrency-safe key-to-state map
// with a per-entry lock, so the read-modify-write for one key is serialized
// while different keys proceed in parallel. A janitor goroutine sweeps on a
// fixed interval and evicts entries idle past a safety threshold, bounding
// memory against attacker-controlled key cardinality. Close the Limiter at
// shutdown to stop the janitor.
//
// # Redis backends
//
// NewRedisFixedWindow, NewRedisSlidingWindow, and NewRedisTokenBucket run
// the same three algorithms against Redis for deployments where several
// replicas must enforce one shared budget. Each performs its cycle inside a
// Lua script invoked via EVALSHA, and sets PEXPIRE so Redis bounds its own
// memory. Install one with WithStrategy:
//
//	strategy, err := limiter.NewRedisTokenBucket(client, cfg,
//		limiter.WithRedisPrefix("myapp:rate:"),
//		limiter.WithRedisTimeout(2*time.Second),
//	)
//	l, err := limiter.New(cfg, limiter.WithStrategy(strategy))
//
// The in-memory strategies never return an error; the Redis ones surface
// connectivity failures directly and the caller decides fail-open versus
// fail-closed. This package does not impose that policy.
//
// # Decision semantics
//
//   - Allowed reports whether the current request is permitted.
//   - Remaining is the whole number of requests left after this decision.
//   - RetryAfter is 0 when allowed; when denied, the approximate wait until
//     a request would be admitted.
//   - ResetTime is the absolute instant the key's window resets or its next
//     token lands.
//
// Over-limit is a modeled outcome, never an error: the limiter must not be
// the reason an otherwise-fine request turns into a 500.
package limiter
