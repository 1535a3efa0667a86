package limiter

import (
	"context"
	"time"
)

// windowState tracks one key's count inside its current fixed window.
type windowState struct {
	count   int64
	resetAt time.Time
}

// fixedWindowStrategy is the cheapest strategy: O(1) state per key and a
// counter that resets wholesale when the window elapses. Known trade-off:
// up to 2x MaxRequests can land inside an interval straddling a window
// boundary. Callers that need exactness pick SlidingWindow instead.
type fixedWindowStrategy struct {
	cfg   Config
	store *Store[windowState]
}

func newFixedWindow(cfg Config, sweepInterval time.Duration, clock Clock) *fixedWindowStrategy {
	return &fixedWindowStrategy{
		cfg:   cfg,
		store: NewStore[windowState](cfg.idleTTL(), sweepInterval, clock),
	}
}

func (f *fixedWindowStrategy) Evaluate(_ context.Context, key string, now time.Time) (Decision, error) {
	dec := f.store.Update(key, now, func(st windowState, exists bool) (windowState, Decision) {
		// A request landing exactly on the boundary opens the next window.
		if !exists || !now.Before(st.resetAt) {
			st = windowState{count: 1, resetAt: now.Add(f.cfg.Window)}
			return st, Decision{Allowed: true, Remaining: f.cfg.MaxRequests - 1, ResetTime: st.resetAt}
		}
		if st.count < f.cfg.MaxRequests {
			st.count++
			return st, Decision{Allowed: true, Remaining: f.cfg.MaxRequests - st.count, ResetTime: st.resetAt}
		}
		return st, Decision{RetryAfter: st.resetAt.Sub(now), ResetTime: st.resetAt}
	})
	return dec, nil
}

func (f *fixedWindowStrategy) keys() int        { return f.store.Len() }
func (f *fixedWindowStrategy) reset(key string) { f.store.Delete(key) }
func (f *fixedWindowStrategy) close()           { f.store.Stop() }
