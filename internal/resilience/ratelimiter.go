package resilience

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
)

// RateLimiter combines a token bucket (burst capacity, steady refill) with
// a hard cap per sliding window, so a client can neither burst past
// capacity nor sustain more than maxPerWindow requests in any window.
type RateLimiter struct {
	mu sync.Mutex

	capacity   int64
	fillRate   float64
	available  float64
	lastRefill time.Time

	windowStart  time.Time
	windowDur    time.Duration
	windowCount  int64
	maxPerWindow int64
}

func NewRateLimiter(capacity int64, fillRate float64, windowDur time.Duration, maxPerWindow int64) *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		capacity:     capacity,
		fillRate:     fillRate,
		available:    float64(capacity),
		lastRefill:   now,
		windowStart:  now,
		windowDur:    windowDur,
		maxPerWindow: maxPerWindow,
	}
}

func (r *RateLimiter) Allow() bool {
	return r.AllowN(1)
}

func (r *RateLimiter) AllowN(n int64) bool {
	if n <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.refill(now)

	if now.Sub(r.windowStart) >= r.windowDur {
		r.windowStart = now
		r.windowCount = 0
	}

	counter := otel.Meter("taskgraph")
	if r.maxPerWindow > 0 && r.windowCount+n > r.maxPerWindow {
		c, _ := counter.Int64Counter("taskgraph_ratelimiter_window_drops_total")
		c.Add(context.Background(), 1)
		return false
	}

	if float64(n) > r.available {
		c, _ := counter.Int64Counter("taskgraph_ratelimiter_token_drops_total")
		c.Add(context.Background(), 1)
		return false
	}

	r.available -= float64(n)
	r.windowCount += n
	return true
}

// ReserveAfter reports how long the caller must wait for n tokens.
func (r *RateLimiter) ReserveAfter(n int64) time.Duration {
	if n <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill(time.Now())
	if r.available >= float64(n) {
		return 0
	}
	shortfall := float64(n) - r.available
	return time.Duration(shortfall / r.fillRate * float64(time.Second))
}

func (r *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(r.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	refill := elapsed * r.fillRate
	if refill > 0 {
		r.available = minFloat(float64(r.capacity), r.available+refill)
		r.lastRefill = now
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
