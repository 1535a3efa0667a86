package limiter

import (
	"context"
	_ "embed"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

//go:embed fixed_window.lua
var fixedWindowScript string

//go:embed sliding_window.lua
var slidingWindowScript string

//go:embed token_bucket.lua
var tokenBucketScript string

const (
	defaultRedisPrefix  = "ratelimit:"
	defaultRedisTimeout = 5 * time.Second
)

// RedisOption configures a Redis-backed strategy.
type RedisOption func(*RedisStrategy)

// WithRedisPrefix sets the key prefix (default "ratelimit:").
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStrategy) { s.prefix = prefix }
}

// WithRedisTimeout caps each Redis round trip (default 5s) so a slow or
// partitioned Redis cannot stall the request path indefinitely.
func WithRedisTimeout(d time.Duration) RedisOption {
	return func(s *RedisStrategy) { s.timeout = d }
}

// RedisStrategy runs one of the three algorithms against Redis, so several
// replicas enforce a single shared budget per key. The read-compute-write
// cycle runs inside a Lua script loaded at construction and invoked via
// EVALSHA; Redis serializes scripts, which gives the same per-key atomicity
// the in-memory store provides with its per-entry locks.
//
// If Redis restarts and drops its script cache, Evaluate returns a NOSCRIPT
// error until the strategy is reconstructed.
type RedisStrategy struct {
	client  *redis.Client
	cfg     Config
	sha     string
	prefix  string
	timeout time.Duration
	args    func(cfg Config, now time.Time) []interface{}
}

// NewRedisFixedWindow builds the fixed-window counter on Redis.
func NewRedisFixedWindow(client *redis.Client, cfg Config, opts ...RedisOption) (*RedisStrategy, error) {
	cfg.Algorithm = FixedWindow
	return newRedisStrategy(client, cfg, fixedWindowScript, windowArgs, opts...)
}

// NewRedisSlidingWindow builds the sliding-window log on a Redis sorted
// set. Each admitted request is stored under a unique member so two
// requests sharing a millisecond cannot collapse into one entry.
func NewRedisSlidingWindow(client *redis.Client, cfg Config, opts ...RedisOption) (*RedisStrategy, error) {
	cfg.Algorithm = SlidingWindow
	return newRedisStrategy(client, cfg, slidingWindowScript, slidingWindowArgs, opts...)
}

// NewRedisTokenBucket builds the token bucket on a Redis hash holding the
// fractional balance and the last refill instant.
func NewRedisTokenBucket(client *redis.Client, cfg Config, opts ...RedisOption) (*RedisStrategy, error) {
	cfg.Algorithm = TokenBucket
	return newRedisStrategy(client, cfg, tokenBucketScript, tokenBucketArgs, opts...)
}

func newRedisStrategy(client *redis.Client, cfg Config, script string, args func(Config, time.Time) []interface{}, opts ...RedisOption) (*RedisStrategy, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &RedisStrategy{
		client:  client,
		cfg:     cfg,
		prefix:  defaultRedisPrefix,
		timeout: defaultRedisTimeout,
		args:    args,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis ping failed")
	}
	sha, err := client.ScriptLoad(ctx, script).Result()
	if err != nil {
		return nil, errors.Wrap(err, "load rate limit script")
	}
	s.sha = sha
	return s, nil
}

// Evaluate runs the strategy's script for key. The context flows through to
// Redis so callers can cancel and enforce deadlines during partial outages.
func (s *RedisStrategy) Evaluate(ctx context.Context, key string, now time.Time) (Decision, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.client.EvalSha(ctx, s.sha, []string{s.storageKey(key)}, s.args(s.cfg, now)...).Result()
	if err != nil {
		return Decision{}, errors.Wrap(err, "evaluate rate limit")
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 4 {
		return Decision{}, errors.New("invalid script response format")
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	retryMs := convertToFloat(values[2])
	resetMs := convertToFloat(values[3])

	return Decision{
		Allowed:    allowed == 1,
		Remaining:  remaining,
		RetryAfter: time.Duration(retryMs * float64(time.Millisecond)),
		ResetTime:  time.UnixMilli(int64(resetMs)),
	}, nil
}

// reset clears the shared state for key.
func (s *RedisStrategy) reset(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_ = s.client.Del(ctx, s.storageKey(key)).Err()
}

func (s *RedisStrategy) storageKey(key string) string {
	return s.prefix + s.cfg.Name + ":" + key
}

func windowArgs(cfg Config, now time.Time) []interface{} {
	return []interface{}{
		cfg.MaxRequests,              // ARGV[1]
		cfg.Window.Milliseconds(),    // ARGV[2]
		now.UnixMilli(),              // ARGV[3]
		cfg.idleTTL().Milliseconds(), // ARGV[4]
	}
}

func slidingWindowArgs(cfg Config, now time.Time) []interface{} {
	return append(windowArgs(cfg, now), uuid.NewString()) // ARGV[5]
}

func tokenBucketArgs(cfg Config, now time.Time) []interface{} {
	return []interface{}{
		cfg.RefillRate,                       // ARGV[1]
		cfg.BucketCapacity,                   // ARGV[2]
		float64(now.UnixMicro()) / 1e6,       // ARGV[3]
		cfg.idleTTL().Milliseconds(),         // ARGV[4]
	}
}

// convertToFloat handles the three shapes a Lua number can come back as:
// integers arrive as int64, and scripts return fractional values as strings
// because the Redis protocol truncates floats.
func convertToFloat(val interface{}) float64 {
	switch v := val.(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}
