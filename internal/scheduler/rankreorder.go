package scheduler

// rankReorderer implements Pearce–Kelly incremental topological ordering
// on top of a graphStore. It is the only place that moves ranks around.
//
// addEdge contract (spec §4.2):
//   - fast path when rank[u] < rank[v]: just link the edge.
//   - otherwise bound a forward search from v (δ⁺, capped at rank[u]) and
//     a backward search from u (δ⁻, capped at rank[v]); if u appears in
//     δ⁺ the edge would close a cycle and is rejected without mutating
//     anything; otherwise the union A = δ⁻ ∪ δ⁺ is re-topo-sorted and its
//     occupied rank slots are reassigned in that order.
type rankReorderer struct {
	g *graphStore
}

func newRankReorderer(g *graphStore) *rankReorderer {
	return &rankReorderer{g: g}
}

// addEdgeResult reports what happened so the caller (Scheduler) can
// decide which caches to invalidate.
type addEdgeResult struct {
	alreadyPresent bool
	reordered      bool
	touched        []string // nodes whose rank may have changed (subset of δ⁻∪δ⁺)
}

func (r *rankReorderer) addEdge(u, v string) (addEdgeResult, error) {
	if u == v {
		return addEdgeResult{}, newErr(ErrSelfLoop, "task %q cannot depend on itself", u)
	}
	if r.g.hasEdge(u, v) {
		return addEdgeResult{alreadyPresent: true}, nil
	}

	if r.g.rank[u] < r.g.rank[v] {
		r.g.addEdge(u, v)
		return addEdgeResult{}, nil
	}

	upperBound := r.g.rank[u]
	lowerBound := r.g.rank[v]

	forward := r.boundedForward(v, upperBound)
	if _, cyclic := forward[u]; cyclic {
		path := r.reconstructCycle(u, v)
		return addEdgeResult{}, newCycleErr(path)
	}

	backward := r.boundedBackward(u, lowerBound)

	affected := make(map[string]struct{}, len(forward)+len(backward))
	for n := range forward {
		affected[n] = struct{}{}
	}
	for n := range backward {
		affected[n] = struct{}{}
	}

	touched := r.reorder(affected, u, v)

	r.g.addEdge(u, v)

	return addEdgeResult{reordered: len(touched) > 0, touched: touched}, nil
}

func (r *rankReorderer) removeEdge(u, v string) bool {
	return r.g.removeEdge(u, v)
}

// boundedForward is δ⁺: descendants of start reachable via forward edges,
// restricted to nodes whose rank is <= upperBound.
func (r *rankReorderer) boundedForward(start string, upperBound int) map[string]struct{} {
	visited := map[string]struct{}{start: {}}
	stack := []string{start}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		for next := range r.g.successors(cur) {
			if _, seen := visited[next]; seen {
				continue
			}
			if r.g.rank[next] > upperBound {
				continue
			}
			visited[next] = struct{}{}
			stack = append(stack, next)
		}
	}
	return visited
}

// boundedBackward is δ⁻: ancestors of start reachable via back edges,
// restricted to nodes whose rank is >= lowerBound.
func (r *rankReorderer) boundedBackward(start string, lowerBound int) map[string]struct{} {
	visited := map[string]struct{}{start: {}}
	stack := []string{start}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		for prev := range r.g.predecessors(cur) {
			if _, seen := visited[prev]; seen {
				continue
			}
			if r.g.rank[prev] < lowerBound {
				continue
			}
			visited[prev] = struct{}{}
			stack = append(stack, prev)
		}
	}
	return visited
}

// reorder re-topo-sorts the induced subgraph on affected and reassigns
// the rank slots that subset already occupies, in Kahn order. Nodes
// outside affected are untouched, which is exactly P8's locality
// guarantee. u and v are the endpoints of the edge being inserted: it is
// not yet present in g, so it is folded into the local in-degree count
// as a virtual constraint, otherwise an affected pair with no other
// internal edge between them could sort with v ahead of u.
func (r *rankReorderer) reorder(affected map[string]struct{}, u, v string) []string {
	if len(affected) == 0 {
		return nil
	}

	names := make([]string, 0, len(affected))
	for n := range affected {
		names = append(names, n)
	}

	occupied := make([]int, len(names))
	for i, n := range names {
		occupied[i] = r.g.rank[n]
	}
	sortInts(occupied)

	localIndeg := make(map[string]int, len(names))
	for _, n := range names {
		count := 0
		for pred := range r.g.predecessors(n) {
			if _, ok := affected[pred]; ok {
				count++
			}
		}
		localIndeg[n] = count
	}
	localIndeg[v]++

	// Deterministic Kahn's algorithm: break ties by current rank so the
	// reorder is a pure permutation of ranks already in the slot list,
	// not an arbitrary map-iteration order.
	queue := make([]string, 0, len(names))
	for _, n := range names {
		if localIndeg[n] == 0 {
			queue = append(queue, n)
		}
	}
	sortByRank(queue, r.g.rank)

	order := make([]string, 0, len(names))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)

		next := make([]string, 0)
		for succ := range r.g.successors(cur) {
			if _, ok := affected[succ]; !ok {
				continue
			}
			localIndeg[succ]--
			if localIndeg[succ] == 0 {
				next = append(next, succ)
			}
		}
		if cur == u {
			localIndeg[v]--
			if localIndeg[v] == 0 {
				next = append(next, v)
			}
		}
		sortByRank(next, r.g.rank)
		queue = append(queue, next...)
		sortByRank(queue, r.g.rank)
	}

	for i, n := range order {
		r.g.rank[n] = occupied[i]
	}

	return names
}

// reconstructCycle finds a v -> ... -> u path (forward edges from v) and
// prepends u, matching spec §7's "u -> v -> ... -> u" payload shape.
func (r *rankReorderer) reconstructCycle(u, v string) []string {
	parent := map[string]string{}
	visited := map[string]struct{}{v: {}}
	queue := []string{v}

	found := false
	for len(queue) > 0 && !found {
		cur := queue[0]
		queue = queue[1:]
		if cur == u {
			found = true
			break
		}
		for next := range r.g.successors(cur) {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			parent[next] = cur
			queue = append(queue, next)
		}
	}

	// Walk the BFS tree from u back up to its root v: this visits nodes
	// in u, ..., v order (reverse of the actual forward path v -> ... -> u).
	raw := []string{u}
	node := u
	for node != v {
		p, ok := parent[node]
		if !ok {
			break
		}
		raw = append(raw, p)
		node = p
	}

	forwardPath := make([]string, len(raw))
	for i, n := range raw {
		forwardPath[len(raw)-1-i] = n
	}

	return append([]string{u}, forwardPath...)
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func sortByRank(xs []string, rank map[string]int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && rank[xs[j-1]] > rank[xs[j]]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
