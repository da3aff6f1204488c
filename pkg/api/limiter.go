package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// Debug-listener budget used when the configured rps or burst is not
// positive. The surface is read-only and cheap, so the defaults only guard
// against tight polling loops.
const (
	defaultDebugRPS   = 5
	defaultDebugBurst = 10
)

// rateGate enforces a per-client request budget on the debug listener.
// Clients are keyed by remote host; a key seen for the first time starts
// with a full bucket.
type rateGate struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newRateGate(rps float64, burst int) *rateGate {
	if rps <= 0 {
		rps = defaultDebugRPS
	}
	if burst <= 0 {
		burst = defaultDebugBurst
	}
	return &rateGate{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

func (g *rateGate) allow(client string) bool {
	g.mu.Lock()
	bucket, ok := g.buckets[client]
	if !ok {
		bucket = rate.NewLimiter(g.limit, g.burst)
		g.buckets[client] = bucket
	}
	g.mu.Unlock()
	return bucket.Allow()
}
