// Package ratelimit implements the ingress limiter the API Boundary
// Adapter applies per conversation, ahead of the Router. The core never
// imports this package directly -- rate limiting is an external
// collaborator per the coordination design.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter gates requests per conversation id using a token bucket per key,
// replacing a hand-rolled bucket with golang.org/x/time/rate.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

// New builds a Limiter allowing ratePerSecond sustained requests with
// burst headroom, per conversation id.
func New(ratePerSecond float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(ratePerSecond),
		burst:   burst,
	}
}

// Allow reports whether a request for conversationID may proceed now, and
// decrements its bucket if so.
func (l *Limiter) Allow(conversationID string) bool {
	return l.bucketFor(conversationID).Allow()
}

// Remaining returns an approximate number of tokens left in
// conversationID's bucket, surfaced to callers as a rate-limit header.
func (l *Limiter) Remaining(conversationID string) int {
	return int(l.bucketFor(conversationID).Tokens())
}

func (l *Limiter) bucketFor(conversationID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[conversationID]
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		l.buckets[conversationID] = b
	}
	return b
}
