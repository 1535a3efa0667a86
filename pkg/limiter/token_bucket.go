package limiter

import (
	"context"
	"time"
)

// bucketState is one key's reservoir: a fractional token balance and the
// instant it was last refilled.
type bucketState struct {
	tokens     float64
	lastRefill time.Time
}

// tokenBucketStrategy refills each key's bucket lazily on access: there is
// no timer, just the elapsed time since the last evaluation. Tokens stay
// real-valued until a decision is made; flooring before the capacity clamp
// would undercount legitimate burst allowance.
type tokenBucketStrategy struct {
	cfg   Config
	store *Store[bucketState]
}

func newTokenBucket(cfg Config, sweepInterval time.Duration, clock Clock) *tokenBucketStrategy {
	return &tokenBucketStrategy{
		cfg:   cfg,
		store: NewStore[bucketState](cfg.idleTTL(), sweepInterval, clock),
	}
}

func (t *tokenBucketStrategy) Evaluate(_ context.Context, key string, now time.Time) (Decision, error) {
	capacity := float64(t.cfg.BucketCapacity)
	dec := t.store.Update(key, now, func(st bucketState, exists bool) (bucketState, Decision) {
		if !exists {
			st = bucketState{tokens: capacity, lastRefill: now}
		} else {
			elapsed := now.Sub(st.lastRefill).Seconds()
			if elapsed < 0 {
				elapsed = 0
			}
			st.tokens += elapsed * t.cfg.RefillRate
			if st.tokens > capacity {
				st.tokens = capacity
			}
			st.lastRefill = now
		}
		if st.tokens < 0 {
			// Impossible under the arithmetic above; clamp rather than let
			// a logic error turn into a stuck key.
			st.tokens = 0
		}

		if st.tokens >= 1 {
			st.tokens--
			return st, Decision{Allowed: true, Remaining: int64(st.tokens), ResetTime: now}
		}

		wait := time.Duration(float64(time.Second) / t.cfg.RefillRate)
		return st, Decision{Remaining: int64(st.tokens), RetryAfter: wait, ResetTime: now.Add(wait)}
	})
	return dec, nil
}

func (t *tokenBucketStrategy) keys() int        { return t.store.Len() }
func (t *tokenBucketStrategy) reset(key string) { t.store.Delete(key) }
func (t *tokenBucketStrategy) close()           { t.store.Stop() }
