package limiter

import (
	"context"
	"time"
)

// timestampLog holds the request instants still inside the trailing window.
type timestampLog struct {
	times []time.Time
}

// slidingWindowStrategy keeps an exact log of request timestamps per key.
// It has no boundary-burst weakness, at the cost of O(MaxRequests) memory
// per key instead of O(1). Pruning happens inline on every evaluation, so
// it needs no separate maintenance step.
type slidingWindowStrategy struct {
	cfg   Config
	store *Store[timestampLog]
}

func newSlidingWindow(cfg Config, sweepInterval time.Duration, clock Clock) *slidingWindowStrategy {
	return &slidingWindowStrategy{
		cfg:   cfg,
		store: NewStore[timestampLog](cfg.idleTTL(), sweepInterval, clock),
	}
}

func (s *slidingWindowStrategy) Evaluate(_ context.Context, key string, now time.Time) (Decision, error) {
	dec := s.store.Update(key, now, func(st timestampLog, _ bool) (timestampLog, Decision) {
		windowStart := now.Add(-s.cfg.Window)

		// Prune in place, reusing the slice's backing array.
		kept := st.times[:0]
		for _, t := range st.times {
			if !t.Before(windowStart) {
				kept = append(kept, t)
			}
		}
		st.times = kept

		if int64(len(st.times)) < s.cfg.MaxRequests {
			st.times = append(st.times, now)
			return st, Decision{
				Allowed:   true,
				Remaining: s.cfg.MaxRequests - int64(len(st.times)),
				ResetTime: now.Add(s.cfg.Window),
			}
		}

		// Denied requests are never recorded, so abusive traffic cannot
		// push the reset further out.
		resetAt := st.times[0].Add(s.cfg.Window)
		return st, Decision{RetryAfter: resetAt.Sub(now), ResetTime: resetAt}
	})
	return dec, nil
}

func (s *slidingWindowStrategy) keys() int        { return s.store.Len() }
func (s *slidingWindowStrategy) reset(key string) { s.store.Delete(key) }
func (s *slidingWindowStrategy) close()           { s.store.Stop() }
