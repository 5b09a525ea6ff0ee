// Package resilience provides retry, circuit-breaking, and rate-limiting
// helpers for the ambient I/O this repo performs outside the scheduler
// core — currently just the gh:pr remote gate client in internal/ghgate.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
)

// Retry runs fn up to attempts times with exponential backoff and full
// jitter, stopping early on success or context cancellation.
func Retry[T any](ctx context.Context, attempts int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	if attempts <= 0 {
		return zero, nil
	}

	meter := otel.Meter("taskgraph")
	attemptCounter, _ := meter.Int64Counter("taskgraph_retry_attempts_total")
	successCounter, _ := meter.Int64Counter("taskgraph_retry_success_total")
	failCounter, _ := meter.Int64Counter("taskgraph_retry_fail_total")

	cur := baseDelay
	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := fn()
		attemptCounter.Add(ctx, 1)
		if err == nil {
			successCounter.Add(ctx, 1)
			return v, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}

		if cur > 60*time.Second {
			cur = 60 * time.Second
		}
		sleep := time.Duration(rand.Int63n(int64(cur) + 1))
		select {
		case <-ctx.Done():
			failCounter.Add(ctx, 1)
			return zero, ctx.Err()
		case <-time.After(sleep):
		}
		cur *= 2
	}
	failCounter.Add(ctx, 1)
	return zero, lastErr
}
