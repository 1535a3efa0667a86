package limiter

import (
	"context"
	"net/http"
	"time"
)

// Limiter gates requests for one endpoint class. It owns a strategy, the
// strategy's state store, and a clock; applications construct one Limiter
// per class at startup and Close it at shutdown. There are no package-level
// singletons.
type Limiter struct {
	cfg      Config
	strategy Strategy
	clock    Clock
	keyFn    KeyFunc
	recorder MetricsRecorder
	onLimit  func(key string, dec Decision)
	tags     map[string]string
}

// Stats is a snapshot of a limiter's tracked state, exposed for
// observability endpoints.
type Stats struct {
	Class string `json:"class"`
	Keys  int    `json:"keys"`
}

// New validates cfg, fills its defaults, and constructs the Limiter.
// Invalid configuration fails here, never at evaluation time.
func New(cfg Config, opts ...Option) (*Limiter, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		clock:         realClock{},
		keyFn:         ClientKey,
		recorder:      &NoOpMetricsRecorder{},
		sweepInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}

	strategy := o.strategy
	if strategy == nil {
		switch cfg.Algorithm {
		case SlidingWindow:
			strategy = newSlidingWindow(cfg, o.sweepInterval, o.clock)
		case TokenBucket:
			strategy = newTokenBucket(cfg, o.sweepInterval, o.clock)
		default:
			strategy = newFixedWindow(cfg, o.sweepInterval, o.clock)
		}
	}

	return &Limiter{
		cfg:      cfg,
		strategy: strategy,
		clock:    o.clock,
		keyFn:    o.keyFn,
		recorder: o.recorder,
		onLimit:  o.onLimit,
		tags: map[string]string{
			"class":     cfg.Name,
			"algorithm": string(cfg.Algorithm),
		},
	}, nil
}

// Allow evaluates one request for key. Over-limit is reported through the
// Decision, not the error; a non-nil error means the strategy itself failed
// (only possible with remote backends) and the caller picks fail-open or
// fail-closed.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	start := time.Now()
	dec, err := l.strategy.Evaluate(ctx, key, l.clock.Now())
	l.recorder.Add(metricCall, 1, l.tags)
	l.recorder.Observe(metricLatency, float64(time.Since(start).Microseconds()), l.tags)
	if err != nil {
		return Decision{}, err
	}
	if !dec.Allowed {
		l.recorder.Add(metricDenied, 1, l.tags)
		if l.onLimit != nil {
			l.onLimit(key, dec)
		}
	}
	return dec, nil
}

// AllowRequest derives the key from the request and evaluates it under the
// request's context.
func (l *Limiter) AllowRequest(r *http.Request) (Decision, error) {
	return l.Allow(r.Context(), l.keyFn(r))
}

// Config returns the limiter's effective configuration, defaults applied.
func (l *Limiter) Config() Config {
	return l.cfg
}

// Reset clears the stored state for key, if the strategy keeps any.
func (l *Limiter) Reset(key string) {
	if r, ok := l.strategy.(keyResetter); ok {
		r.reset(key)
	}
}

// Stats reports the number of tracked keys. Strategies without local state
// (remote backends) report zero.
func (l *Limiter) Stats() Stats {
	st := Stats{Class: l.cfg.Name}
	if c, ok := l.strategy.(keyCounter); ok {
		st.Keys = c.keys()
	}
	return st
}

// Close releases the strategy's background resources (the store janitor).
func (l *Limiter) Close() {
	if c, ok := l.strategy.(closer); ok {
		c.close()
	}
}
