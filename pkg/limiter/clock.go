package limiter

import "time"

// Clock provides the current time for strategies and stores. Tests inject
// a fake to make window and refill arithmetic deterministic.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}
