package limiter

// MetricsRecorder receives counters and latency observations from a
// Limiter. Implementations bridge to whatever metrics backend the
// application runs; the limiter itself stays backend-agnostic.
type MetricsRecorder interface {
	Add(name string, value float64, tags map[string]string)
	Observe(name string, value float64, tags map[string]string)
}

// Metric names emitted by Limiter.Allow.
const (
	metricCall    = "ratelimit.call"
	metricDenied  = "ratelimit.denied"
	metricLatency = "ratelimit.latency"
)

// NoOpMetricsRecorder is a placeholder that does nothing.
// It ensures we never have to check 'if recorder != nil' in the hot path.
type NoOpMetricsRecorder struct{}

func (n *NoOpMetricsRecorder) Add(name string, value float64, tags map[string]string)     {}
func (n *NoOpMetricsRecorder) Observe(name string, value float64, tags map[string]string) {}
