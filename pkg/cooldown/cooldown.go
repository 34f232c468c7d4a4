// Package cooldown throttles curation work per source domain. Batch
// composition must not hammer a single regulator's site, so each domain
// gets its own bucket.
package cooldown

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter blocks until the given domain may be worked on again.
type Limiter interface {
	Wait(ctx context.Context, domain string) error
}

// Local is a per-process limiter with one token bucket per domain.
type Local struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	interval rate.Limit
	burst    int
}

// NewLocal builds a limiter admitting one pass per domain every
// intervalSeconds, with a burst of one.
func NewLocal(intervalSeconds float64) *Local {
	if intervalSeconds <= 0 {
		intervalSeconds = 1
	}
	return &Local{
		buckets:  make(map[string]*rate.Limiter),
		interval: rate.Limit(1 / intervalSeconds),
		burst:    1,
	}
}

func (l *Local) Wait(ctx context.Context, domain string) error {
	l.mu.Lock()
	b, ok := l.buckets[domain]
	if !ok {
		b = rate.NewLimiter(l.interval, l.burst)
		l.buckets[domain] = b
	}
	l.mu.Unlock()
	return b.Wait(ctx)
}
