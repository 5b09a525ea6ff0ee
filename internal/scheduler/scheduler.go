// Package scheduler implements an incremental task scheduler over a
// dependency DAG: a Pearce-Kelly dynamic topological order, cached
// in-degree and effective-priority, and a ready-set cache maintained
// incrementally between full rebuilds.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultInheritRadius  = 10
	defaultAgingThreshold = 7 * 24 * time.Hour
	defaultAgingBoost     = 1
	defaultReadyTTL       = 0
	defaultPRCacheTTL     = 300 * time.Second
)

// Scheduler is the C8 façade: the only entry point external callers use.
// It is not safe for concurrent use from multiple goroutines; embedders
// that need that must serialize through a single lock around it (spec §5).
type Scheduler struct {
	g      *graphStore
	rr     *rankReorderer
	cache  *cacheLayer
	gates  *gateRouter
	planner *planner

	inheritEnabled bool
	inheritRadius  int
	agingThreshold time.Duration
	agingBoost     int

	now func() time.Time

	log    *slog.Logger
	tracer trace.Tracer

	metrics instruments
}

type instruments struct {
	readyQueryDuration metric.Float64Histogram
	edgeAddTotal       metric.Int64Counter
	cycleRejectedTotal metric.Int64Counter
	readySetSize       metric.Int64Gauge
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

func WithPriorityInheritance(enabled bool) Option {
	return func(s *Scheduler) { s.inheritEnabled = enabled }
}

func WithInheritanceRadius(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.inheritRadius = n
		}
	}
}

func WithAgingThreshold(d time.Duration) Option {
	return func(s *Scheduler) { s.agingThreshold = d }
}

func WithAgingBoost(n int) Option {
	return func(s *Scheduler) { s.agingBoost = n }
}

func WithReadyCacheTTL(d time.Duration) Option {
	return func(s *Scheduler) { s.cache.readyTTL = d }
}

func WithPRClient(client PRClient, ttl time.Duration) Option {
	return func(s *Scheduler) {
		if ttl <= 0 {
			ttl = defaultPRCacheTTL
		}
		s.gates = newGateRouter(client, ttl)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

func WithClock(fn func() time.Time) Option {
	return func(s *Scheduler) { s.now = fn }
}

// New constructs a Scheduler. tracer and meter may come from a no-op
// provider (otel/trace.NewNoopTracerProvider, otel/metric/noop) in tests
// or when no collector is configured; instrument registration failures
// are logged and otherwise ignored, matching the teacher's NewDAGEngine.
func New(tracer trace.Tracer, meter metric.Meter, opts ...Option) *Scheduler {
	g := newGraphStore()
	s := &Scheduler{
		g:              g,
		rr:             newRankReorderer(g),
		cache:          newCacheLayer(defaultReadyTTL),
		gates:          newGateRouter(nil, defaultPRCacheTTL),
		inheritEnabled: true,
		inheritRadius:  defaultInheritRadius,
		agingThreshold: defaultAgingThreshold,
		agingBoost:     defaultAgingBoost,
		now:            time.Now,
		log:            slog.Default(),
		tracer:         tracer,
	}
	s.planner = newPlanner(s)

	for _, opt := range opts {
		opt(s)
	}

	readyQueryDuration, err := meter.Float64Histogram("taskgraph_ready_query_duration_ms")
	if err != nil {
		s.log.Warn("failed to register histogram", "instrument", "taskgraph_ready_query_duration_ms", "error", err)
	}
	edgeAddTotal, err := meter.Int64Counter("taskgraph_edge_add_total")
	if err != nil {
		s.log.Warn("failed to register counter", "instrument", "taskgraph_edge_add_total", "error", err)
	}
	cycleRejectedTotal, err := meter.Int64Counter("taskgraph_cycle_rejected_total")
	if err != nil {
		s.log.Warn("failed to register counter", "instrument", "taskgraph_cycle_rejected_total", "error", err)
	}
	readySetSize, err := meter.Int64Gauge("taskgraph_ready_set_size")
	if err != nil {
		s.log.Warn("failed to register gauge", "instrument", "taskgraph_ready_set_size", "error", err)
	}
	s.metrics = instruments{
		readyQueryDuration: readyQueryDuration,
		edgeAddTotal:       edgeAddTotal,
		cycleRejectedTotal: cycleRejectedTotal,
		readySetSize:       readySetSize,
	}

	s.gates.now = s.now

	return s
}

// Register adds a new task. It is rejected if the name is already taken
// or the task fails basic validation (spec §7 BAD_TASK).
func (s *Scheduler) Register(t Task) error {
	if err := validateTask(t); err != nil {
		return err
	}
	if s.g.has(t.Name) {
		return newErr(ErrDuplicateName, "task %q already registered", t.Name)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	record := t
	s.g.register(&record)

	s.cache.setIndeg(t.Name, 0)
	s.cache.invalidateReady()

	s.log.Info("task registered", "task", t.Name, "priority", t.Priority.String(), "status", t.Status.String())
	return nil
}

func validateTask(t Task) error {
	if t.Name == "" {
		return newErr(ErrBadTask, "task name must not be empty")
	}
	if t.Duration <= 0 {
		return newErr(ErrBadTask, "task %q duration must be positive", t.Name)
	}
	if t.EstimatedTokens <= 0 {
		return newErr(ErrBadTask, "task %q estimated_tokens must be positive", t.Name)
	}
	if t.UsedTokens < 0 {
		return newErr(ErrBadTask, "task %q used_tokens must be non-negative", t.Name)
	}
	if !t.Priority.Valid() {
		return newErr(ErrBadTask, "task %q has invalid priority %d", t.Name, int(t.Priority))
	}
	if (t.AwaitKind == "") != (t.AwaitID == "") {
		return newErr(ErrBadTask, "task %q must set both await_kind and await_id or neither", t.Name)
	}
	return nil
}

// AddEdge links u -> v (u blocks v). Idempotent; a cycle-provoking edge
// leaves every piece of state byte-identical to before the call (P2).
func (s *Scheduler) AddEdge(ctx context.Context, u, v string) error {
	_, span := s.tracer.Start(ctx, "scheduler.add_edge", trace.WithAttributes(
		attribute.String("taskgraph.u", u), attribute.String("taskgraph.v", v),
	))
	defer span.End()

	if !s.g.has(u) {
		return newErr(ErrNotFound, "task %q not registered", u)
	}
	if !s.g.has(v) {
		return newErr(ErrNotFound, "task %q not registered", v)
	}

	result, err := s.rr.addEdge(u, v)
	if err != nil {
		if KindOf(err) == ErrCycleDetected {
			s.metrics.cycleRejectedTotal.Add(ctx, 1)
			s.log.Warn("rejected edge, would close a cycle", "u", u, "v", v)
		}
		return err
	}
	if result.alreadyPresent {
		return nil
	}

	s.metrics.edgeAddTotal.Add(ctx, 1)

	s.cache.invalidateIndeg(v)
	s.invalidateEffBackward(u)
	s.cache.readyRemove(v)

	s.log.Info("edge added", "u", u, "v", v, "reordered_nodes", len(result.touched))
	return nil
}

// RemoveEdge unlinks u -> v. No-op (returns false) if the edge was absent.
func (s *Scheduler) RemoveEdge(u, v string) (bool, error) {
	if !s.g.has(u) {
		return false, newErr(ErrNotFound, "task %q not registered", u)
	}
	if !s.g.has(v) {
		return false, newErr(ErrNotFound, "task %q not registered", v)
	}

	removed := s.rr.removeEdge(u, v)
	if !removed {
		return false, nil
	}

	s.cache.invalidateIndeg(v)
	s.invalidateEffBackward(u)
	s.recheckReady(v)

	s.log.Info("edge removed", "u", u, "v", v)
	return true, nil
}

// MarkCompleted transitions v to CLOSED. Successors have their in-degree
// cache invalidated and are re-probed for readiness.
func (s *Scheduler) MarkCompleted(v string) error {
	task, ok := s.g.nodes[v]
	if !ok {
		return newErr(ErrNotFound, "task %q not registered", v)
	}

	task.Status = Closed
	s.cache.readyRemove(v)
	s.invalidateEffBackward(v)

	for w := range s.g.successors(v) {
		s.cache.invalidateIndeg(w)
		s.recheckReady(w)
	}

	s.log.Info("task completed", "task", v)
	return nil
}

// SetStatus transitions v between OPEN, BLOCKED, and IN_PROGRESS. CLOSED
// is reached only through MarkCompleted, matching spec §3's lifecycle.
func (s *Scheduler) SetStatus(v string, status TaskStatus) error {
	task, ok := s.g.nodes[v]
	if !ok {
		return newErr(ErrNotFound, "task %q not registered", v)
	}
	if status == Closed {
		return s.MarkCompleted(v)
	}

	wasOpen := task.Status == Open
	task.Status = status
	s.invalidateEffBackward(v)

	for succ := range s.g.successors(v) {
		s.cache.invalidateIndeg(succ)
	}
	if wasOpen != (status == Open) {
		for succ := range s.g.successors(v) {
			s.recheckReady(succ)
		}
	}
	s.recheckReady(v)
	return nil
}

// ApproveGate approves a pending human gate. Ready cache invalidated in
// bulk since the core has no index from gate id back to task names.
func (s *Scheduler) ApproveGate(id string) {
	s.gates.approveHuman(id)
	s.cache.invalidateReady()
}

// RevokeGate withdraws a previously granted human-gate approval.
func (s *Scheduler) RevokeGate(id string) {
	s.gates.revokeHuman(id)
	s.cache.invalidateReady()
}

// GateStatus returns a human-readable status string for the gate the
// named task is waiting on, or "no gate" if it has none.
func (s *Scheduler) GateStatus(ctx context.Context, name string) (string, error) {
	task, ok := s.g.nodes[name]
	if !ok {
		return "", newErr(ErrNotFound, "task %q not registered", name)
	}
	return s.gates.status(ctx, task.AwaitKind, task.AwaitID), nil
}

// InDegree returns the cached count of OPEN predecessors of v, rebuilding
// the cache entry on miss.
func (s *Scheduler) InDegree(v string) (int, error) {
	if !s.g.has(v) {
		return 0, newErr(ErrNotFound, "task %q not registered", v)
	}
	return s.indegree(v), nil
}

func (s *Scheduler) indegree(v string) int {
	if n, ok := s.cache.indegIsValid(v); ok {
		return n
	}
	n := 0
	for pred := range s.g.predecessors(v) {
		if s.g.nodes[pred].Status == Open {
			n++
		}
	}
	s.cache.setIndeg(v, n)
	return n
}

// EffectivePriority returns v's priority after inheritance (not aging).
func (s *Scheduler) EffectivePriority(v string) (Priority, error) {
	if !s.g.has(v) {
		return 0, newErr(ErrNotFound, "task %q not registered", v)
	}
	return s.effectivePriority(v), nil
}

func (s *Scheduler) effectivePriority(v string) Priority {
	task := s.g.nodes[v]
	if !s.inheritEnabled {
		return task.Priority
	}
	if p, ok := s.cache.effIsValid(v); ok {
		return p
	}

	best := task.Priority
	type frame struct {
		name  string
		depth int
	}
	visited := map[string]struct{}{v: {}}
	queue := []frame{{v, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for next := range s.g.successors(cur.name) {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			nt := s.g.nodes[next]
			if nt.Priority < best {
				best = nt.Priority
			}
			depth := cur.depth + 1
			if depth < s.inheritRadius && (nt.Status == Open || nt.Status == Blocked) {
				queue = append(queue, frame{next, depth})
			}
		}
	}

	s.cache.setEff(v, best)
	return best
}

// invalidateEffBackward invalidates the effective-priority cache for v and
// every ancestor of v, since any of them might reach v (or beyond it) via
// forward BFS and v's outgoing structure or status just changed.
func (s *Scheduler) invalidateEffBackward(v string) {
	visited := map[string]struct{}{}
	stack := []string{v}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}
		s.cache.invalidateEff(cur)
		for pred := range s.g.predecessors(cur) {
			if _, seen := visited[pred]; !seen {
				stack = append(stack, pred)
			}
		}
	}
}

// isReady evaluates the three ready predicates for v fresh, with no cache
// involvement other than reading the in-degree cache.
func (s *Scheduler) isReady(ctx context.Context, v string) bool {
	task := s.g.nodes[v]
	if task.Status != Open {
		return false
	}
	if s.indegree(v) != 0 {
		return false
	}
	open, err := s.gates.isOpen(ctx, task.AwaitKind, task.AwaitID)
	if err != nil {
		return false
	}
	return open
}

func (s *Scheduler) recheckReady(v string) {
	if !s.cache.readyValid {
		return
	}
	if s.isReady(context.Background(), v) {
		s.cache.readyAdd(v)
	} else {
		s.cache.readyRemove(v)
	}
}

// ReadyTask is one entry of ComputeReady's result.
type ReadyTask struct {
	Name            string
	Priority        Priority
	PriorityBoosted bool
}

// ComputeReady returns the ready set (status OPEN, in-degree 0, gate
// open), sorted by (effective priority after aging, created_at, name),
// truncated to limit entries when limit > 0.
func (s *Scheduler) ComputeReady(ctx context.Context, limit int) []ReadyTask {
	start := s.now()
	defer func() {
		s.metrics.readyQueryDuration.Record(ctx, float64(s.now().Sub(start).Microseconds())/1000.0)
	}()

	if s.cache.readyStale(s.now()) {
		s.rebuildReadyCache(ctx)
	}

	out := make([]ReadyTask, 0, len(s.cache.ready))
	for name := range s.cache.ready {
		task := s.g.nodes[name]
		base := s.effectivePriority(name)
		boosted := base < task.Priority

		if s.now().Sub(task.CreatedAt) >= s.agingThreshold && base > Critical {
			base = base.Boost(s.agingBoost)
			boosted = true
		}

		out = append(out, ReadyTask{Name: name, Priority: base, PriorityBoosted: boosted})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		ta, tb := s.g.nodes[a.Name].CreatedAt, s.g.nodes[b.Name].CreatedAt
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return a.Name < b.Name
	})

	s.metrics.readySetSize.Record(ctx, int64(len(s.cache.ready)))

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Scheduler) rebuildReadyCache(ctx context.Context) {
	s.cache.ready = make(map[string]struct{})
	for _, name := range s.g.order {
		if s.isReady(ctx, name) {
			s.cache.readyAdd(name)
		}
	}
	s.cache.markReadyFresh(s.now())
}

// TopologicalOrder returns a priority-aware full ordering of all
// registered tasks (C9, delegated to planner.go).
func (s *Scheduler) TopologicalOrder() []string {
	return s.planner.topologicalOrder()
}

// CalculateSchedule returns a projected execution timeline (C9).
func (s *Scheduler) CalculateSchedule() Schedule {
	return s.planner.calculateSchedule()
}

// Statistics is the §6 diagnostics snapshot.
type Statistics struct {
	TotalTasks        int
	TotalEdges        int
	ReadyTasks        int
	StatusBreakdown   map[string]int
	PriorityBreakdown map[string]int
	AvgInDegree       float64

	ReadyCacheValid      bool
	PriorityCacheSize    int
	IndegreeCacheSize    int
	ReadyCacheAgeSeconds float64
}

// GetStatistics returns a point-in-time snapshot of graph and cache state.
func (s *Scheduler) GetStatistics(ctx context.Context) Statistics {
	stats := Statistics{
		StatusBreakdown:   map[string]int{},
		PriorityBreakdown: map[string]int{},
	}

	totalIndeg := 0
	for _, name := range s.g.order {
		task := s.g.nodes[name]
		stats.TotalTasks++
		stats.StatusBreakdown[task.Status.String()]++
		stats.PriorityBreakdown[task.Priority.String()]++
		stats.TotalEdges += len(s.g.successors(name))
		totalIndeg += s.indegree(name)
	}
	if stats.TotalTasks > 0 {
		stats.AvgInDegree = float64(totalIndeg) / float64(stats.TotalTasks)
	}

	stats.ReadyTasks = len(s.ComputeReady(ctx, 0))

	diag := s.cache.diagnostics(s.now())
	stats.ReadyCacheValid = diag.readyCacheValid
	stats.PriorityCacheSize = diag.priorityCacheSize
	stats.IndegreeCacheSize = diag.indegreeCacheSize
	if diag.hasReadyAge {
		stats.ReadyCacheAgeSeconds = diag.readyCacheAgeSeconds
	}

	return stats
}

// Task returns a read-only snapshot of a registered task.
func (s *Scheduler) Task(name string) (Task, error) {
	task, ok := s.g.nodes[name]
	if !ok {
		return Task{}, newErr(ErrNotFound, "task %q not registered", name)
	}
	return task.Clone(), nil
}
