package scheduler

import (
	"container/heap"

	"github.com/google/uuid"
)

// planner implements C9: a priority-aware full topological sort and the
// derived execution timeline. It reads the graph through the owning
// Scheduler so it always sees live state, never a separate snapshot.
type planner struct {
	s *Scheduler
}

func newPlanner(s *Scheduler) *planner {
	return &planner{s: s}
}

// frontierItem is one entry of the Kahn frontier heap, ordered by
// (priority.value, created_at) ascending per spec §4.7.
type frontierItem struct {
	name     string
	priority Priority
	created  int64 // unix nano, for heap comparisons only
}

type frontierHeap []frontierItem

func (h frontierHeap) Len() int { return len(h) }
func (h frontierHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	if h[i].created != h[j].created {
		return h[i].created < h[j].created
	}
	return h[i].name < h[j].name
}
func (h frontierHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *frontierHeap) Push(x any)        { *h = append(*h, x.(frontierItem)) }
func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topologicalOrder performs a Kahn sweep over the whole graph, using live
// in-degree counting only OPEN predecessors as the initial frontier
// (spec §4.7 — deliberately distinct from the cached InDegree, which this
// repo defines identically but recomputes fresh here to avoid depending
// on cache staleness for an operation that scans everything anyway).
func (p *planner) topologicalOrder() []string {
	g := p.s.g
	indeg := make(map[string]int, len(g.order))
	for _, name := range g.order {
		n := 0
		for pred := range g.predecessors(name) {
			if g.nodes[pred].Status == Open {
				n++
			}
		}
		indeg[name] = n
	}

	h := make(frontierHeap, 0, len(g.order))
	for _, name := range g.order {
		if indeg[name] == 0 {
			h = append(h, p.item(name))
		}
	}
	heap.Init(&h)

	order := make([]string, 0, len(g.order))
	for h.Len() > 0 {
		cur := heap.Pop(&h).(frontierItem)
		order = append(order, cur.name)
		// Only OPEN nodes were counted in their successors' in-degree.
		if g.nodes[cur.name].Status != Open {
			continue
		}
		for succ := range g.successors(cur.name) {
			if indeg[succ] == 0 {
				continue
			}
			indeg[succ]--
			if indeg[succ] == 0 {
				heap.Push(&h, p.item(succ))
			}
		}
	}
	return order
}

func (p *planner) item(name string) frontierItem {
	task := p.s.g.nodes[name]
	return frontierItem{name: name, priority: task.Priority, created: task.CreatedAt.UnixNano()}
}

// ScheduleEntry is one row of a computed Schedule.
type ScheduleEntry struct {
	TaskName        string
	StartTime       int
	EndTime         int
	Duration        int
	Priority        Priority
	EstimatedTokens int
	Status          TaskStatus
}

// Schedule is the §6 serialization shape, plus a plan id (SUPPLEMENTED:
// not in spec.md, grounded on the teacher's generateWorkflowID pattern)
// so two schedules computed over an identical task list remain
// distinguishable to callers.
type Schedule struct {
	PlanID               string
	TotalProjectedTokens int
	TaskCount            int
	Entries              []ScheduleEntry
}

// calculateSchedule walks the topological order, assigning a start time
// to each task no earlier than the completion of every predecessor.
func (p *planner) calculateSchedule() Schedule {
	order := p.topologicalOrder()
	g := p.s.g

	startTime := make(map[string]int, len(order))
	endTime := make(map[string]int, len(order))

	sched := Schedule{PlanID: uuid.NewString()}
	for _, name := range order {
		task := g.nodes[name]
		start := startTime[name]
		end := start + task.Duration
		startTime[name] = start
		endTime[name] = end

		for succ := range g.successors(name) {
			if end > startTime[succ] {
				startTime[succ] = end
			}
		}

		sched.Entries = append(sched.Entries, ScheduleEntry{
			TaskName:        name,
			StartTime:       start,
			EndTime:         end,
			Duration:        task.Duration,
			Priority:        task.Priority,
			EstimatedTokens: task.EstimatedTokens,
			Status:          task.Status,
		})
		sched.TotalProjectedTokens += task.EstimatedTokens
		sched.TaskCount++
	}

	sortScheduleEntries(sched.Entries)
	return sched
}

// sortScheduleEntries orders by (start_time, priority) ascending, per
// spec §6's serialization contract.
func sortScheduleEntries(entries []ScheduleEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0; j-- {
			a, b := entries[j-1], entries[j]
			if a.StartTime < b.StartTime || (a.StartTime == b.StartTime && a.Priority <= b.Priority) {
				break
			}
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}
