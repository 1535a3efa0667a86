package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Algorithm selects which rate-limiting strategy a Limiter runs.
type Algorithm string

const (
	// FixedWindow counts requests in a window that resets wholesale.
	FixedWindow Algorithm = "fixed_window"
	// SlidingWindow keeps exact request timestamps inside a trailing window.
	SlidingWindow Algorithm = "sliding_window"
	// TokenBucket accrues fractional tokens up to a capacity and spends one
	// per admitted request.
	TokenBucket Algorithm = "token_bucket"
)

// Validation errors returned by Config.Validate.
var (
	ErrInvalidAlgorithm   = errors.New("unknown algorithm")
	ErrInvalidWindow      = errors.New("window must be positive")
	ErrInvalidMaxRequests = errors.New("max requests must be positive")
	ErrInvalidCapacity    = errors.New("bucket capacity must be positive")
	ErrInvalidRefillRate  = errors.New("refill rate must be positive")
)

// Config is the immutable policy for one endpoint class. It is validated
// once at construction; evaluation never re-checks it.
type Config struct {
	// Name identifies the endpoint class ("search", "booking", ...) and is
	// used for metrics tags, stats, and Redis key namespacing.
	Name string

	// Algorithm picks the strategy. Ignored when a custom Strategy is
	// injected via WithStrategy.
	Algorithm Algorithm

	// Window is the measurement interval for the window strategies and the
	// implied refill period for the token bucket.
	Window time.Duration

	// MaxRequests is the number of requests admitted per Window.
	MaxRequests int64

	// BucketCapacity is the token bucket's burst allowance. Zero means
	// MaxRequests.
	BucketCapacity int64

	// RefillRate is tokens earned per second. Zero means
	// MaxRequests / Window, so the bucket's steady-state throughput matches
	// an equivalent fixed window.
	RefillRate float64
}

// withDefaults fills in the fields left at zero.
func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Algorithm == "" {
		c.Algorithm = FixedWindow
	}
	if c.BucketCapacity == 0 {
		c.BucketCapacity = c.MaxRequests
	}
	if c.RefillRate == 0 && c.Window > 0 {
		c.RefillRate = float64(c.MaxRequests) / c.Window.Seconds()
	}
	return c
}

// Validate reports the first configuration error. Call sites are expected
// to fail fast: a Limiter is never constructed from an invalid Config.
func (c Config) Validate() error {
	switch c.Algorithm {
	case FixedWindow, SlidingWindow, TokenBucket:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAlgorithm, c.Algorithm)
	}
	if c.Window <= 0 {
		return ErrInvalidWindow
	}
	if c.MaxRequests <= 0 {
		return ErrInvalidMaxRequests
	}
	if c.Algorithm == TokenBucket {
		if c.BucketCapacity <= 0 {
			return ErrInvalidCapacity
		}
		if c.RefillRate <= 0 {
			return ErrInvalidRefillRate
		}
	}
	return nil
}

// idleTTL is how long a key's state may sit untouched before the eviction
// sweep drops it: long enough that a legitimately returning client would
// have started from fresh state anyway.
func (c Config) idleTTL() time.Duration {
	if c.Algorithm == TokenBucket && c.RefillRate > 0 {
		return time.Duration(float64(c.BucketCapacity) / c.RefillRate * float64(time.Second))
	}
	return 2 * c.Window
}

// Decision is the outcome of evaluating one request. Over-limit is a normal
// decision (Allowed false), never an error.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Remaining is the number of requests left before the limit, after this
	// decision is applied. Floored to a whole number for the token bucket.
	Remaining int64

	// RetryAfter is zero when allowed; when denied it is the time until the
	// caller can expect another request to be admitted.
	RetryAfter time.Duration

	// ResetTime is when the current window resets, or for the token bucket
	// the instant the next token is expected.
	ResetTime time.Time
}

// Strategy evaluates a single request for a key at the given instant.
// Implementations must be safe for concurrent use and must serialize the
// read-modify-write for any one key.
type Strategy interface {
	Evaluate(ctx context.Context, key string, now time.Time) (Decision, error)
}

// Optional capabilities a Strategy may expose to its Limiter.
type keyCounter interface{ keys() int }
type keyResetter interface{ reset(key string) }
type closer interface{ close() }
