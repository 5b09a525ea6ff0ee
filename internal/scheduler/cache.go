package scheduler

import "time"

// cacheLayer holds the three caches described in spec §4.3: cached
// in-degree, cached effective priority, and the ready-set. Each has an
// "entries" map and a "valid" set; a name is authoritative only when
// present in the valid set. The ready set additionally tracks a single
// valid flag plus an optional TTL.
type cacheLayer struct {
	indeg      map[string]int
	indegValid map[string]struct{}

	eff      map[string]Priority
	effValid map[string]struct{}

	ready      map[string]struct{}
	readyValid bool
	readyAt    time.Time
	readyTTL   time.Duration // 0 disables time-based expiry
}

func newCacheLayer(readyTTL time.Duration) *cacheLayer {
	return &cacheLayer{
		indeg:      make(map[string]int),
		indegValid: make(map[string]struct{}),
		eff:        make(map[string]Priority),
		effValid:   make(map[string]struct{}),
		ready:      make(map[string]struct{}),
		readyTTL:   readyTTL,
	}
}

func (c *cacheLayer) invalidateIndeg(name string) {
	delete(c.indegValid, name)
}

func (c *cacheLayer) setIndeg(name string, v int) {
	c.indeg[name] = v
	c.indegValid[name] = struct{}{}
}

func (c *cacheLayer) indegIsValid(name string) (int, bool) {
	v, ok := c.indegValid[name]
	_ = v
	if !ok {
		return 0, false
	}
	return c.indeg[name], true
}

func (c *cacheLayer) invalidateEff(name string) {
	delete(c.effValid, name)
}

func (c *cacheLayer) setEff(name string, p Priority) {
	c.eff[name] = p
	c.effValid[name] = struct{}{}
}

func (c *cacheLayer) effIsValid(name string) (Priority, bool) {
	if _, ok := c.effValid[name]; !ok {
		return 0, false
	}
	return c.eff[name], true
}

func (c *cacheLayer) invalidateReady() {
	c.readyValid = false
}

func (c *cacheLayer) readyStale(now time.Time) bool {
	if !c.readyValid {
		return true
	}
	if c.readyTTL == 0 {
		return false
	}
	return now.Sub(c.readyAt) > c.readyTTL
}

func (c *cacheLayer) markReadyFresh(at time.Time) {
	c.readyValid = true
	c.readyAt = at
}

func (c *cacheLayer) readyAdd(name string) {
	c.ready[name] = struct{}{}
}

func (c *cacheLayer) readyRemove(name string) {
	delete(c.ready, name)
}

func (c *cacheLayer) readyContains(name string) bool {
	_, ok := c.ready[name]
	return ok
}

// diagnostics snapshot for Statistics().
type cacheDiagnostics struct {
	readyCacheValid      bool
	priorityCacheSize    int
	indegreeCacheSize    int
	readyCacheAgeSeconds float64
	hasReadyAge          bool
}

func (c *cacheLayer) diagnostics(now time.Time) cacheDiagnostics {
	d := cacheDiagnostics{
		readyCacheValid:   c.readyValid,
		priorityCacheSize: len(c.effValid),
		indegreeCacheSize: len(c.indegValid),
	}
	if c.readyValid && !c.readyAt.IsZero() {
		d.hasReadyAge = true
		d.readyCacheAgeSeconds = now.Sub(c.readyAt).Seconds()
	}
	return d
}
