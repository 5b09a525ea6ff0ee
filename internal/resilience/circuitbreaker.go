package resilience

import (
	"context"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
)

// CircuitBreaker opens based on the failure rate over a rolling window of
// fixed-size buckets and admits probe requests while half-open.
type CircuitBreaker struct {
	mu sync.Mutex

	minSamples        int
	failureRateOpen   float64
	halfOpenAfter     time.Duration
	maxHalfOpenProbes int

	dynamicThreshold float64
	minThreshold     float64
	maxThreshold     float64
	lastEval         time.Time
	evalInterval     time.Duration

	state          breakerState
	openedAt       time.Time
	window         *slidingWindow
	halfOpenProbes int
}

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// NewCircuitBreaker builds a breaker that opens once at least minSamples
// requests have landed in the window and the failure rate reaches
// failureRateOpen, cooling down for halfOpenAfter before probing again.
// The open threshold adapts within [0.5x, 1.5x] of failureRateOpen based
// on recently observed failure rate, so a brief spike trips sooner and a
// long quiet period raises tolerance instead of flapping.
func NewCircuitBreaker(windowSize time.Duration, buckets, minSamples int, failureRateOpen float64, halfOpenAfter time.Duration, maxHalfOpenProbes int) *CircuitBreaker {
	if buckets <= 0 {
		buckets = 1
	}
	rate := math.Min(math.Max(failureRateOpen, 0), 1)
	return &CircuitBreaker{
		minSamples:        minSamples,
		failureRateOpen:   rate,
		halfOpenAfter:     halfOpenAfter,
		maxHalfOpenProbes: maxHalfOpenProbes,
		state:             stateClosed,
		window:            newSlidingWindow(windowSize, buckets),
		minThreshold:      math.Min(math.Max(rate*0.5, 0.05), rate),
		maxThreshold:      math.Min(0.95, math.Max(rate*1.5, rate)),
		evalInterval:      5 * time.Second,
		dynamicThreshold:  rate,
	}
}

// Allow reports whether a request may proceed right now.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateOpen:
		if time.Since(c.openedAt) < c.halfOpenAfter {
			return false
		}
		c.state = stateHalfOpen
		c.halfOpenProbes = 1
	case stateHalfOpen:
		if c.halfOpenProbes >= c.maxHalfOpenProbes {
			return false
		}
		c.halfOpenProbes++
	}
	return true
}

// RecordResult feeds one outcome into the window and re-evaluates state.
func (c *CircuitBreaker) RecordResult(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window.add(success)
	c.adapt()

	switch c.state {
	case stateClosed:
		total, failures := c.window.stats()
		if total >= c.minSamples && float64(failures)/float64(total) >= c.dynamicThreshold {
			c.open()
		}
	case stateHalfOpen:
		if !success {
			c.open()
		} else if c.halfOpenProbes >= c.maxHalfOpenProbes {
			c.close()
		}
	}
}

func (c *CircuitBreaker) adapt() {
	if time.Since(c.lastEval) < c.evalInterval {
		return
	}
	c.lastEval = time.Now()
	total, failures := c.window.stats()
	if total == 0 {
		return
	}
	fr := float64(failures) / float64(total)
	if fr > c.failureRateOpen {
		c.dynamicThreshold = math.Max(c.minThreshold, c.dynamicThreshold*0.7)
	} else {
		c.dynamicThreshold = math.Min(c.maxThreshold, c.dynamicThreshold*1.05)
	}
}

func (c *CircuitBreaker) open() {
	c.state = stateOpen
	c.openedAt = time.Now()
	counter, _ := otel.Meter("taskgraph").Int64Counter("taskgraph_circuit_open_total")
	counter.Add(context.Background(), 1)
}

func (c *CircuitBreaker) close() {
	c.state = stateClosed
	c.openedAt = time.Time{}
	c.window.reset()
	counter, _ := otel.Meter("taskgraph").Int64Counter("taskgraph_circuit_closed_total")
	counter.Add(context.Background(), 1)
}

type slidingWindow struct {
	interval time.Duration
	buckets  int
	data     []bucket
	nowFn    func() time.Time
}

// bucket accumulates outcomes for one interval slot; interval records
// which absolute interval number it holds so a reused ring slot can be
// told apart from stale data left by a previous lap around the ring.
type bucket struct {
	success, fail int
	interval      int64
}

func newSlidingWindow(size time.Duration, buckets int) *slidingWindow {
	return &slidingWindow{
		interval: size / time.Duration(buckets),
		buckets:  buckets,
		data:     make([]bucket, buckets),
		nowFn:    time.Now,
	}
}

func (w *slidingWindow) intervalNumber(now time.Time) int64 {
	return now.UnixNano() / w.interval.Nanoseconds()
}

func (w *slidingWindow) index(now time.Time) int {
	return int(w.intervalNumber(now) % int64(w.buckets))
}

func (w *slidingWindow) add(success bool) {
	now := w.nowFn()
	iv := w.intervalNumber(now)
	idx := int(iv % int64(w.buckets))
	if w.data[idx].interval != iv {
		w.data[idx] = bucket{interval: iv}
	}
	if success {
		w.data[idx].success++
	} else {
		w.data[idx].fail++
	}
}

// stats sums only buckets still inside the window; a bucket whose
// interval has rolled out (`buckets` or more intervals behind now) is
// stale data from a previous lap around the ring and is skipped.
func (w *slidingWindow) stats() (total, failures int) {
	curIv := w.intervalNumber(w.nowFn())
	for _, b := range w.data {
		if curIv-b.interval >= int64(w.buckets) {
			continue
		}
		total += b.success + b.fail
		failures += b.fail
	}
	return
}

func (w *slidingWindow) reset() {
	for i := range w.data {
		w.data[i] = bucket{}
	}
}
