// Package ratelimit guards Manager.Invoke against runaway call volume
// from a single embedding host. Grounded on
// internal/middleware/ratelimit.go's per-key limiter map and cleanup
// pass, with the hand-rolled sliding window swapped for
// golang.org/x/time/rate's token bucket.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter rate-limits Invoke calls per procedure name so one runaway
// caller cannot starve others sharing the same Manager.
type Limiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	buckets  map[string]*bucket
}

type bucket struct {
	limiter    *rate.Limiter
	lastTouch  time.Time
}

// New builds a Limiter allowing rps invocations per second per
// procedure name, with the given burst allowance.
func New(rps float64, burst int) *Limiter {
	return &Limiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether an invocation of the named procedure may proceed
// right now, per spec.md SPEC_FULL.md §4.5's invoke rate limiting.
func (l *Limiter) Allow(procedure string) bool {
	l.mu.Lock()
	b, ok := l.buckets[procedure]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[procedure] = b
	}
	b.lastTouch = time.Now()
	l.mu.Unlock()

	return b.limiter.Allow()
}

// Cleanup evicts per-procedure buckets that have not been touched since
// before cutoff, bounding memory use when the set of called procedure
// names grows over the life of a long-running host process.
func (l *Limiter) Cleanup(olderThan time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	for name, b := range l.buckets {
		if b.lastTouch.Before(cutoff) {
			delete(l.buckets, name)
		}
	}
}
