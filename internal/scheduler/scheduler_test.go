package scheduler

import (
	"context"
	"testing"
	"time"

	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

func newTestScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	meter := noopmetric.NewMeterProvider().Meter("test")
	return New(tracer, meter, opts...)
}

func mustRegister(t *testing.T, s *Scheduler, task Task) {
	t.Helper()
	if err := s.Register(task); err != nil {
		t.Fatalf("register %s: %v", task.Name, err)
	}
}

// Scenario 1: linear chain.
func TestLinearChain(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	mustRegister(t, s, Task{Name: "A", Priority: High, Duration: 1, EstimatedTokens: 1000})
	mustRegister(t, s, Task{Name: "B", Priority: Medium, Duration: 1, EstimatedTokens: 1000})
	mustRegister(t, s, Task{Name: "C", Priority: Low, Duration: 1, EstimatedTokens: 1000})

	if err := s.AddEdge(ctx, "A", "B"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEdge(ctx, "B", "C"); err != nil {
		t.Fatal(err)
	}

	assertReadyNames(t, s, []string{"A"})

	if err := s.MarkCompleted("A"); err != nil {
		t.Fatal(err)
	}
	assertReadyNames(t, s, []string{"B"})

	if err := s.MarkCompleted("B"); err != nil {
		t.Fatal(err)
	}
	assertReadyNames(t, s, []string{"C"})
}

// Scenario 2: priority inheritance.
func TestPriorityInheritance(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	mustRegister(t, s, Task{Name: "Blocker", Priority: Backlog, Duration: 1, EstimatedTokens: 100})
	mustRegister(t, s, Task{Name: "Blocked", Priority: Critical, Duration: 1, EstimatedTokens: 100})

	if err := s.AddEdge(ctx, "Blocker", "Blocked"); err != nil {
		t.Fatal(err)
	}

	eff, err := s.EffectivePriority("Blocker")
	if err != nil {
		t.Fatal(err)
	}
	if eff != Critical {
		t.Fatalf("expected Blocker to inherit CRITICAL, got %s", eff)
	}

	ready := s.ComputeReady(ctx, 0)
	if len(ready) == 0 || ready[0].Name != "Blocker" {
		t.Fatalf("expected Blocker first in ready set, got %v", ready)
	}
	if !ready[0].PriorityBoosted {
		t.Fatalf("expected Blocker's priority_boosted flag to be true")
	}
}

// Scenario 3: cycle rejection.
func TestCycleRejection(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	mustRegister(t, s, Task{Name: "T0", Priority: Medium, Duration: 1, EstimatedTokens: 100})
	mustRegister(t, s, Task{Name: "T1", Priority: Medium, Duration: 1, EstimatedTokens: 100})
	mustRegister(t, s, Task{Name: "T2", Priority: Medium, Duration: 1, EstimatedTokens: 100})

	if err := s.AddEdge(ctx, "T0", "T1"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEdge(ctx, "T1", "T2"); err != nil {
		t.Fatal(err)
	}

	err := s.AddEdge(ctx, "T2", "T0")
	if err == nil {
		t.Fatalf("expected CYCLE_DETECTED, got nil")
	}
	if KindOf(err) != ErrCycleDetected {
		t.Fatalf("expected CYCLE_DETECTED, got %v", err)
	}

	se, ok := err.(*SchedulerError)
	if !ok {
		t.Fatalf("expected *SchedulerError, got %T", err)
	}
	wantPath := []string{"T2", "T0", "T1", "T2"}
	if !equalStrings(se.Path, wantPath) {
		t.Fatalf("expected cycle path %v, got %v", wantPath, se.Path)
	}

	assertReadyNames(t, s, []string{"T0"})
}

// Scenario 4: timer gate.
func TestTimerGate(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour).Format(time.RFC3339)
	future := time.Now().Add(time.Hour).Format(time.RFC3339)

	mustRegister(t, s, Task{Name: "G", Priority: Medium, Duration: 1, EstimatedTokens: 100, AwaitKind: "timer", AwaitID: past})
	mustRegister(t, s, Task{Name: "G2", Priority: Medium, Duration: 1, EstimatedTokens: 100, AwaitKind: "timer", AwaitID: future})

	ready := s.ComputeReady(ctx, 0)
	if !containsName(ready, "G") {
		t.Fatalf("expected G in ready set, got %v", ready)
	}
	if containsName(ready, "G2") {
		t.Fatalf("expected G2 excluded from ready set, got %v", ready)
	}
}

// Scenario 5: human gate.
func TestHumanGate(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	mustRegister(t, s, Task{Name: "A", Priority: Medium, Duration: 1, EstimatedTokens: 100, AwaitKind: "human", AwaitID: "ok"})

	if containsName(s.ComputeReady(ctx, 0), "A") {
		t.Fatalf("expected A excluded before approval")
	}

	s.ApproveGate("ok")
	if !containsName(s.ComputeReady(ctx, 0), "A") {
		t.Fatalf("expected A ready after approval")
	}

	s.RevokeGate("ok")
	if containsName(s.ComputeReady(ctx, 0), "A") {
		t.Fatalf("expected A excluded after revocation")
	}
}

// Scenario 6: reorder locality.
func TestReorderLocality(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustRegister(t, s, Task{Name: taskName(i), Priority: Medium, Duration: 1, EstimatedTokens: 100})
	}

	rankBefore := s.g.rank["T4"]

	if err := s.AddEdge(ctx, "T2", "T3"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEdge(ctx, "T0", "T1"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEdge(ctx, "T1", "T3"); err != nil {
		t.Fatal(err)
	}

	if s.g.rank["T0"] >= s.g.rank["T1"] || s.g.rank["T1"] >= s.g.rank["T3"] {
		t.Fatalf("expected T0 < T1 < T3, got ranks %d %d %d", s.g.rank["T0"], s.g.rank["T1"], s.g.rank["T3"])
	}
	if s.g.rank["T2"] >= s.g.rank["T3"] {
		t.Fatalf("expected T2 < T3, got ranks %d %d", s.g.rank["T2"], s.g.rank["T3"])
	}
	if s.g.rank["T4"] != rankBefore {
		t.Fatalf("expected T4's rank untouched, was %d now %d", rankBefore, s.g.rank["T4"])
	}
}

func TestAddEdgeIdempotent(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()
	mustRegister(t, s, Task{Name: "A", Priority: Medium, Duration: 1, EstimatedTokens: 100})
	mustRegister(t, s, Task{Name: "B", Priority: Medium, Duration: 1, EstimatedTokens: 100})

	if err := s.AddEdge(ctx, "A", "B"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEdge(ctx, "A", "B"); err != nil {
		t.Fatalf("second insertion of the same edge should be idempotent, got %v", err)
	}
	if n := len(s.g.successors("A")); n != 1 {
		t.Fatalf("expected exactly one successor, got %d", n)
	}
}

func TestSelfLoopRejected(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()
	mustRegister(t, s, Task{Name: "A", Priority: Medium, Duration: 1, EstimatedTokens: 100})

	err := s.AddEdge(ctx, "A", "A")
	if KindOf(err) != ErrSelfLoop {
		t.Fatalf("expected SELF_LOOP, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestScheduler(t)

	cases := []Task{
		{Name: "", Priority: Medium, Duration: 1, EstimatedTokens: 1},
		{Name: "x", Priority: Medium, Duration: 0, EstimatedTokens: 1},
		{Name: "x", Priority: Medium, Duration: 1, EstimatedTokens: 0},
		{Name: "x", Priority: Medium, Duration: 1, EstimatedTokens: 1, AwaitKind: "timer"},
	}
	for i, tc := range cases {
		if err := s.Register(tc); KindOf(err) != ErrBadTask {
			t.Fatalf("case %d: expected BAD_TASK, got %v", i, err)
		}
	}

	mustRegister(t, s, Task{Name: "dup", Priority: Medium, Duration: 1, EstimatedTokens: 1})
	if err := s.Register(Task{Name: "dup", Priority: Medium, Duration: 1, EstimatedTokens: 1}); KindOf(err) != ErrDuplicateName {
		t.Fatalf("expected DUPLICATE_NAME, got %v", err)
	}
}

func TestNotFoundErrors(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()
	mustRegister(t, s, Task{Name: "A", Priority: Medium, Duration: 1, EstimatedTokens: 1})

	if err := s.AddEdge(ctx, "A", "ghost"); KindOf(err) != ErrNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if _, err := s.InDegree("ghost"); KindOf(err) != ErrNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if err := s.MarkCompleted("ghost"); KindOf(err) != ErrNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestInDegreeCoherence(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()
	mustRegister(t, s, Task{Name: "A", Priority: Medium, Duration: 1, EstimatedTokens: 1})
	mustRegister(t, s, Task{Name: "B", Priority: Medium, Duration: 1, EstimatedTokens: 1})
	mustRegister(t, s, Task{Name: "C", Priority: Medium, Duration: 1, EstimatedTokens: 1})

	if err := s.AddEdge(ctx, "A", "C"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEdge(ctx, "B", "C"); err != nil {
		t.Fatal(err)
	}

	n, err := s.InDegree("C")
	if err != nil || n != 2 {
		t.Fatalf("expected in-degree 2, got %d (err=%v)", n, err)
	}

	if err := s.MarkCompleted("A"); err != nil {
		t.Fatal(err)
	}
	n, err = s.InDegree("C")
	if err != nil || n != 1 {
		t.Fatalf("expected in-degree 1 after A closed, got %d (err=%v)", n, err)
	}
}

func TestCalculateSchedule(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()
	mustRegister(t, s, Task{Name: "A", Priority: High, Duration: 2, EstimatedTokens: 10})
	mustRegister(t, s, Task{Name: "B", Priority: Medium, Duration: 3, EstimatedTokens: 20})
	if err := s.AddEdge(ctx, "A", "B"); err != nil {
		t.Fatal(err)
	}

	sched := s.CalculateSchedule()
	if sched.PlanID == "" {
		t.Fatalf("expected a non-empty plan id")
	}
	if sched.TaskCount != 2 || sched.TotalProjectedTokens != 30 {
		t.Fatalf("unexpected schedule totals: %+v", sched)
	}

	var aEnd, bStart int
	for _, e := range sched.Entries {
		if e.TaskName == "A" {
			aEnd = e.EndTime
		}
		if e.TaskName == "B" {
			bStart = e.StartTime
		}
	}
	if bStart < aEnd {
		t.Fatalf("expected B to start no earlier than A ends: aEnd=%d bStart=%d", aEnd, bStart)
	}
}

func assertReadyNames(t *testing.T, s *Scheduler, want []string) {
	t.Helper()
	got := s.ComputeReady(context.Background(), 0)
	if len(got) != len(want) {
		t.Fatalf("expected ready set %v, got %v", want, got)
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("expected ready set %v, got %v", want, got)
		}
	}
}

func containsName(ready []ReadyTask, name string) bool {
	for _, r := range ready {
		if r.Name == name {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func taskName(i int) string {
	names := []string{"T0", "T1", "T2", "T3", "T4"}
	return names[i]
}
