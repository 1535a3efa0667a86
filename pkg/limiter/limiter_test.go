package limiter

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"zero max requests", Config{Algorithm: FixedWindow, Window: time.Minute}, ErrInvalidMaxRequests},
		{"negative window", Config{Algorithm: FixedWindow, Window: -time.Second, MaxRequests: 5}, ErrInvalidWindow},
		{"unknown algorithm", Config{Algorithm: "leaky_bucket", Window: time.Minute, MaxRequests: 5}, ErrInvalidAlgorithm},
		{"negative refill rate", Config{Algorithm: TokenBucket, Window: time.Minute, MaxRequests: 5, RefillRate: -1}, ErrInvalidRefillRate},
		{"negative capacity", Config{Algorithm: TokenBucket, Window: time.Minute, MaxRequests: 5, BucketCapacity: -10}, ErrInvalidCapacity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLimiter_EndToEndDenyResponse(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, Config{Name: "strict", Algorithm: FixedWindow, Window: time.Minute, MaxRequests: 3}, clock)
	ctx := context.Background()

	for i, want := range []int64{2, 1, 0} {
		dec, err := l.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !dec.Allowed || dec.Remaining != want {
			t.Fatalf("call %d: got allowed=%v remaining=%d, want allowed=true remaining=%d", i+1, dec.Allowed, dec.Remaining, want)
		}
	}

	dec, _ := l.Allow(ctx, "1.2.3.4")
	if dec.Allowed {
		t.Fatal("4th call should be denied")
	}

	resp := l.BuildDenyResponse(dec)
	if resp.Status != 429 {
		t.Errorf("expected status 429, got %d", resp.Status)
	}
	if got := resp.Headers.Get("Retry-After"); got != "60" {
		t.Errorf("expected Retry-After 60, got %q", got)
	}
	if got := resp.Headers.Get("X-RateLimit-Limit"); got != "3" {
		t.Errorf("expected X-RateLimit-Limit 3, got %q", got)
	}
	if got := resp.Headers.Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", got)
	}
	reset, err := time.Parse(time.RFC3339, resp.Headers.Get("X-RateLimit-Reset"))
	if err != nil {
		t.Fatalf("X-RateLimit-Reset is not RFC3339: %v", err)
	}
	if !reset.Equal(clock.Now().Add(time.Minute)) {
		t.Errorf("reset header %v does not match window end %v", reset, clock.Now().Add(time.Minute))
	}
	if resp.Body.Error != "Too many requests" || resp.Body.RetryAfter != 60 {
		t.Errorf("unexpected body: %+v", resp.Body)
	}
}

func TestLimiter_AllowRequestUsesKeyFunc(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, Config{Algorithm: FixedWindow, Window: time.Minute, MaxRequests: 1}, clock)

	first := httptest.NewRequest("GET", "/search", nil)
	first.Header.Set("X-Forwarded-For", "203.0.113.7")
	second := httptest.NewRequest("GET", "/search", nil)
	second.Header.Set("X-Forwarded-For", "198.51.100.2")

	if dec, _ := l.AllowRequest(first); !dec.Allowed {
		t.Fatal("first client should be allowed")
	}
	if dec, _ := l.AllowRequest(second); !dec.Allowed {
		t.Fatal("second client should have its own budget")
	}
	if dec, _ := l.AllowRequest(first); dec.Allowed {
		t.Fatal("first client's second request should be denied")
	}
}

func TestLimiter_OnLimitReachedCallback(t *testing.T) {
	clock := newFakeClock()
	var gotKey string
	var gotDec Decision
	l, err := New(
		Config{Algorithm: FixedWindow, Window: time.Minute, MaxRequests: 1},
		WithClock(clock),
		WithSweepInterval(time.Hour),
		WithOnLimitReached(func(key string, dec Decision) {
			gotKey, gotDec = key, dec
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()
	ctx := context.Background()

	l.Allow(ctx, "203.0.113.7")
	if gotKey != "" {
		t.Fatal("callback must not fire on allowed requests")
	}
	l.Allow(ctx, "203.0.113.7")
	if gotKey != "203.0.113.7" {
		t.Errorf("expected callback with offending key, got %q", gotKey)
	}
	if gotDec.Allowed || gotDec.RetryAfter <= 0 {
		t.Errorf("callback decision should be a denial, got %+v", gotDec)
	}
}

// mockRecorder captures metrics in memory for assertion.
type mockRecorder struct {
	counters map[string]float64
	timings  map[string][]float64
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{counters: map[string]float64{}, timings: map[string][]float64{}}
}

func (m *mockRecorder) Add(name string, value float64, tags map[string]string) {
	m.counters[name] += value
}

func (m *mockRecorder) Observe(name string, value float64, tags map[string]string) {
	m.timings[name] = append(m.timings[name], value)
}

func TestLimiter_Metrics(t *testing.T) {
	clock := newFakeClock()
	mock := newMockRecorder()
	l, err := New(
		Config{Name: "search", Algorithm: FixedWindow, Window: time.Minute, MaxRequests: 1},
		WithClock(clock),
		WithSweepInterval(time.Hour),
		WithRecorder(mock),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()
	ctx := context.Background()

	l.Allow(ctx, "203.0.113.7")
	l.Allow(ctx, "203.0.113.7")

	if got := mock.counters["ratelimit.call"]; got != 2 {
		t.Errorf("expected 'ratelimit.call' counter to be 2, got %v", got)
	}
	if got := mock.counters["ratelimit.denied"]; got != 1 {
		t.Errorf("expected 'ratelimit.denied' counter to be 1, got %v", got)
	}
	if len(mock.timings["ratelimit.latency"]) != 2 {
		t.Errorf("expected 2 latency observations, got %d", len(mock.timings["ratelimit.latency"]))
	}
}

func TestLimiter_StatsAndReset(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, Config{Name: "booking", Algorithm: SlidingWindow, Window: time.Minute, MaxRequests: 5}, clock)
	ctx := context.Background()

	l.Allow(ctx, "203.0.113.7")
	l.Allow(ctx, "198.51.100.2")

	st := l.Stats()
	if st.Class != "booking" {
		t.Errorf("expected class 'booking', got %q", st.Class)
	}
	if st.Keys != 2 {
		t.Errorf("expected 2 tracked keys, got %d", st.Keys)
	}

	l.Reset("203.0.113.7")
	if got := l.Stats().Keys; got != 1 {
		t.Errorf("expected 1 key after reset, got %d", got)
	}
}

func BenchmarkLimiter_Allow(b *testing.B) {
	l, err := New(Config{Algorithm: TokenBucket, Window: time.Second, MaxRequests: 1000, BucketCapacity: 100000})
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	defer l.Close()
	ctx := context.Background()

	for i := 0; i < b.N; i++ {
		l.Allow(ctx, "203.0.113.7")
	}
}
