package limiter

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSweepInterval is how often a store's janitor scans for idle
// entries. The sweep runs regardless of traffic so a burst of one-shot
// keys cannot grow the map unchecked for longer than one interval.
const DefaultSweepInterval = time.Minute

// storeEntry holds one key's state behind its own lock, so requests for
// different keys never contend with each other.
type storeEntry[S any] struct {
	mu        sync.Mutex
	populated bool
	state     S
	lastTouch atomic.Int64 // unix nanos, read lock-free by the janitor
}

// Store is a concurrency-safe map of key to per-strategy state with
// background eviction of idle entries. Each strategy owns exactly one
// Store; the state type is the strategy's own.
type Store[S any] struct {
	entries  sync.Map // string -> *storeEntry[S]
	maxIdle  time.Duration
	clock    Clock
	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a store whose janitor evicts entries untouched for
// maxIdle, scanning every sweepInterval until Stop is called.
func NewStore[S any](maxIdle, sweepInterval time.Duration, clock Clock) *Store[S] {
	if clock == nil {
		clock = realClock{}
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	s := &Store[S]{
		maxIdle: maxIdle,
		clock:   clock,
		stop:    make(chan struct{}),
	}
	go s.janitor(sweepInterval)
	return s
}

// Update runs fn for key while holding that key's lock, so the whole
// read-compute-write cycle is atomic with respect to other requests for the
// same key. fn receives the current state and whether one existed; the
// state it returns is stored back. The Decision passes through unchanged.
func (s *Store[S]) Update(key string, now time.Time, fn func(state S, exists bool) (S, Decision)) Decision {
	v, _ := s.entries.LoadOrStore(key, &storeEntry[S]{})
	e := v.(*storeEntry[S])
	e.lastTouch.Store(now.UnixNano())

	e.mu.Lock()
	defer e.mu.Unlock()
	next, dec := fn(e.state, e.populated)
	e.state = next
	e.populated = true
	return dec
}

// Peek returns the stored state for key without mutating it.
func (s *Store[S]) Peek(key string) (S, bool) {
	var zero S
	v, ok := s.entries.Load(key)
	if !ok {
		return zero, false
	}
	e := v.(*storeEntry[S])
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.populated {
		return zero, false
	}
	return e.state, true
}

// Delete removes the state for key, if any.
func (s *Store[S]) Delete(key string) {
	s.entries.Delete(key)
}

// Len reports how many keys currently hold state.
func (s *Store[S]) Len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// EvictExpired removes every entry untouched for longer than the store's
// idle threshold and reports how many were dropped. The janitor calls this
// on its interval; tests call it directly with a fake clock.
func (s *Store[S]) EvictExpired(now time.Time) int {
	cutoff := now.Add(-s.maxIdle).UnixNano()
	removed := 0
	s.entries.Range(func(k, v any) bool {
		e := v.(*storeEntry[S])
		if e.lastTouch.Load() >= cutoff {
			return true
		}
		e.mu.Lock()
		// Re-check under the lock so an Update that raced the scan keeps
		// its entry.
		if e.lastTouch.Load() < cutoff {
			s.entries.Delete(k)
			removed++
		}
		e.mu.Unlock()
		return true
	})
	return removed
}

// Stop terminates the janitor goroutine. Safe to call more than once.
func (s *Store[S]) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store[S]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.EvictExpired(s.clock.Now())
		case <-s.stop:
			return
		}
	}
}
