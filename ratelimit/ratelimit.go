// Package ratelimit implements per-caller-per-endpoint throttling (§5:
// "Rate-limiting state... is mutable per-process state with its own lock"),
// backed by golang.org/x/time/rate the way the retrieval pack's sibling
// service-layer repos use it for their own gateway limiters.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter tracks one token-bucket limiter per (caller, endpoint) pair,
// created lazily and never evicted within a process lifetime — matching
// the spec's "process-local with explicit lifecycle" guidance rather than
// a distributed store.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func New(requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(requestsPerSecond),
		burst:   burst,
	}
}

// Allow reports whether the (caller, endpoint) pair may proceed right now.
func (l *Limiter) Allow(caller, endpoint string) bool {
	return l.bucketFor(caller, endpoint).Allow()
}

func (l *Limiter) bucketFor(caller, endpoint string) *rate.Limiter {
	key := caller + "|" + endpoint
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		l.buckets[key] = b
	}
	return b
}

// Reserve returns how long the caller must wait before its next request to
// endpoint would be allowed, for surfacing a Retry-After header.
func (l *Limiter) Reserve(caller, endpoint string) time.Duration {
	r := l.bucketFor(caller, endpoint).Reserve()
	if !r.OK() {
		return 0
	}
	delay := r.Delay()
	r.Cancel()
	return delay
}
