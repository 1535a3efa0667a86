package limiter

import (
	"context"
	"testing"
	"time"
)

func TestSlidingWindow_Exactness(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, Config{Algorithm: SlidingWindow, Window: 10 * time.Second, MaxRequests: 5}, clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if dec, _ := l.Allow(ctx, "203.0.113.7"); !dec.Allowed {
			t.Fatalf("request %d at t=0 was unexpectedly denied", i+1)
		}
	}

	clock.Advance(9999 * time.Millisecond)
	if dec, _ := l.Allow(ctx, "203.0.113.7"); dec.Allowed {
		t.Fatal("request at t=9999ms should be denied; the t=0 entries are still in the window")
	}

	clock.Advance(2 * time.Millisecond)
	if dec, _ := l.Allow(ctx, "203.0.113.7"); !dec.Allowed {
		t.Fatal("request at t=10001ms should be allowed; the t=0 entries have aged out")
	}
}

func TestSlidingWindow_DenialDoesNotLengthenLog(t *testing.T) {
	clock := newFakeClock()
	s := newSlidingWindow(Config{Algorithm: SlidingWindow, Window: 10 * time.Second, MaxRequests: 2}.withDefaults(), time.Hour, clock)
	defer s.close()
	ctx := context.Background()

	s.Evaluate(ctx, "203.0.113.7", clock.Now())
	s.Evaluate(ctx, "203.0.113.7", clock.Now())

	for i := 0; i < 3; i++ {
		dec, _ := s.Evaluate(ctx, "203.0.113.7", clock.Now())
		if dec.Allowed {
			t.Fatalf("denial %d unexpectedly allowed", i+1)
		}
	}

	log, ok := s.store.Peek("203.0.113.7")
	if !ok {
		t.Fatal("expected stored log for key")
	}
	if len(log.times) != 2 {
		t.Errorf("rejections must not append: expected log length 2, got %d", len(log.times))
	}
}

func TestSlidingWindow_RetryAfterFromOldestEntry(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, Config{Algorithm: SlidingWindow, Window: 10 * time.Second, MaxRequests: 2}, clock)
	ctx := context.Background()

	l.Allow(ctx, "203.0.113.7")
	clock.Advance(4 * time.Second)
	l.Allow(ctx, "203.0.113.7")

	dec, _ := l.Allow(ctx, "203.0.113.7")
	if dec.Allowed {
		t.Fatal("expected denial")
	}
	// Oldest entry is 4s old; it leaves the window 6s from now.
	if got := RetryAfterSeconds(dec.RetryAfter); got != 6 {
		t.Errorf("expected Retry-After of 6s, got %d", got)
	}
}

func TestSlidingWindow_RollingAdmission(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, Config{Algorithm: SlidingWindow, Window: 10 * time.Second, MaxRequests: 2}, clock)
	ctx := context.Background()

	l.Allow(ctx, "203.0.113.7")
	clock.Advance(6 * time.Second)
	l.Allow(ctx, "203.0.113.7")

	// t=11s: the first entry has aged out, so one slot is free again.
	clock.Advance(5 * time.Second)
	dec, _ := l.Allow(ctx, "203.0.113.7")
	if !dec.Allowed {
		t.Fatal("expected admission once the oldest entry left the window")
	}
	if dec.Remaining != 0 {
		t.Errorf("expected 0 remaining, got %d", dec.Remaining)
	}
}
