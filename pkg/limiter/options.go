package limiter

import "time"

// options collects the knobs New accepts beyond the Config itself.
type options struct {
	clock         Clock
	keyFn         KeyFunc
	recorder      MetricsRecorder
	onLimit       func(key string, dec Decision)
	sweepInterval time.Duration
	strategy      Strategy
}

// Option configures a Limiter at construction time.
type Option func(*options)

// WithClock substitutes the time source. Tests use this to drive window
// resets and token refill deterministically.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithKeyFunc replaces the default ClientKey extraction.
func WithKeyFunc(fn KeyFunc) Option {
	return func(o *options) { o.keyFn = fn }
}

// WithRecorder injects a metrics backend.
func WithRecorder(r MetricsRecorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithOnLimitReached registers a callback invoked for every denied
// request, with the offending key and the deny decision. Useful for audit
// logging; it runs on the request path, so keep it cheap.
func WithOnLimitReached(fn func(key string, dec Decision)) Option {
	return func(o *options) { o.onLimit = fn }
}

// WithSweepInterval overrides how often the store's janitor runs
// (default DefaultSweepInterval).
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepInterval = d }
}

// WithStrategy bypasses the Config.Algorithm switch and installs a custom
// Strategy, for example a Redis-backed one.
func WithStrategy(s Strategy) Option {
	return func(o *options) { o.strategy = s }
}
