package gateway

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// keyedLimiter rations outbound bank calls per debit account. Entries idle
// longer than idleTTL are evicted on the next access, so the map cannot grow
// without bound.
type keyedLimiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	entries map[string]*limiterEntry
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiter(rps float64, burst int) *keyedLimiter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = int(rps)
	}
	return &keyedLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		entries: map[string]*limiterEntry{},
	}
}

func (k *keyedLimiter) Wait(ctx context.Context, key string) error {
	k.mu.Lock()
	now := time.Now()
	e, ok := k.entries[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(k.rps, k.burst)}
		k.entries[key] = e
	}
	e.lastSeen = now
	if len(k.entries) > 64 {
		k.evictLocked(now)
	}
	lim := e.lim
	k.mu.Unlock()

	return lim.Wait(ctx)
}

func (k *keyedLimiter) evictLocked(now time.Time) {
	for key, e := range k.entries {
		if now.Sub(e.lastSeen) > k.idleTTL {
			delete(k.entries, key)
		}
	}
}
