package api

import (
	"sync"
	"time"
)

// RateLimiter implements per-client sliding-window admission control for
// the public verify endpoint. State is in-process only; it resets on
// restart and is not shared across nodes.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter admits at most max requests per client per window.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Allow prunes timestamps older than the window, then admits and records
// the request unless the client already hit the limit. Rejected attempts
// are not recorded, so a throttled client recovers as soon as the window
// slides past its earlier requests.
func (rl *RateLimiter) Allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	kept := rl.hits[addr][:0]
	for _, t := range rl.hits[addr] {
		if now.Sub(t) < rl.window {
			kept = append(kept, t)
		}
	}

	if len(kept) >= rl.max {
		rl.hits[addr] = kept
		return false
	}

	rl.hits[addr] = append(kept, now)
	return true
}

// Cleanup removes clients with no requests inside the window, bounding
// memory across many one-off clients.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for addr, hits := range rl.hits {
		stale := true
		for _, t := range hits {
			if now.Sub(t) < rl.window {
				stale = false
				break
			}
		}
		if stale {
			delete(rl.hits, addr)
		}
	}
}
