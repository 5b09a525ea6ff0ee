package scheduler

import "testing"

// buildGraphStore registers names in order, giving them ranks 0..n-1.
func buildGraphStore(names ...string) *graphStore {
	g := newGraphStore()
	for _, n := range names {
		g.register(&Task{Name: n, Priority: Medium, Duration: 1, EstimatedTokens: 1, Status: Open})
	}
	return g
}

// A back-pointing edge between two nodes with no other internal
// connection must still land with rank[u] < rank[v] after the reorder,
// even though neither node constrains the other through any existing
// edge in the affected subgraph.
func TestReorderOrdersDisconnectedPair(t *testing.T) {
	g := buildGraphStore("T0", "T1", "T2", "T3", "T4")
	rr := newRankReorderer(g)

	if _, err := rr.addEdge("T4", "T2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.rank["T4"] >= g.rank["T2"] {
		t.Fatalf("expected rank[T4] < rank[T2] after insertion, got %d >= %d", g.rank["T4"], g.rank["T2"])
	}
}

// Locality: a reorder confined to δ⁻(u) ∪ δ⁺(v) must never touch ranks
// of nodes outside that set.
func TestReorderLeavesUnaffectedRanksAlone(t *testing.T) {
	g := buildGraphStore("T0", "T1", "T2", "T3", "T4")
	rr := newRankReorderer(g)

	before := g.rank["T4"]

	if _, err := rr.addEdge("T3", "T0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.rank["T4"] != before {
		t.Fatalf("expected T4's rank untouched by an unrelated reorder, was %d now %d", before, g.rank["T4"])
	}
	if g.rank["T3"] >= g.rank["T0"] {
		t.Fatalf("expected rank[T3] < rank[T0], got %d >= %d", g.rank["T3"], g.rank["T0"])
	}
}

func TestReorderRejectsCycleWithoutMutating(t *testing.T) {
	g := buildGraphStore("T0", "T1", "T2")
	rr := newRankReorderer(g)

	if _, err := rr.addEdge("T0", "T1"); err != nil {
		t.Fatal(err)
	}
	if _, err := rr.addEdge("T1", "T2"); err != nil {
		t.Fatal(err)
	}

	rankSnapshot := map[string]int{"T0": g.rank["T0"], "T1": g.rank["T1"], "T2": g.rank["T2"]}

	_, err := rr.addEdge("T2", "T0")
	if KindOf(err) != ErrCycleDetected {
		t.Fatalf("expected CYCLE_DETECTED, got %v", err)
	}
	if g.hasEdge("T2", "T0") {
		t.Fatalf("rejected edge must not be linked into the graph")
	}
	for name, rank := range rankSnapshot {
		if g.rank[name] != rank {
			t.Fatalf("rejected insertion must leave ranks untouched: %s was %d now %d", name, rank, g.rank[name])
		}
	}
}

func TestReorderChainInsertion(t *testing.T) {
	g := buildGraphStore("A", "B", "C", "D")
	rr := newRankReorderer(g)

	// Insert edges in an order that forces every new edge through the
	// slow (bounded-search) path: D -> C -> B -> A, each added against
	// the grain of the initial registration-order ranks.
	edges := [][2]string{{"D", "C"}, {"C", "B"}, {"B", "A"}}
	for _, e := range edges {
		if _, err := rr.addEdge(e[0], e[1]); err != nil {
			t.Fatalf("addEdge(%s, %s): %v", e[0], e[1], err)
		}
	}

	if !(g.rank["D"] < g.rank["C"] && g.rank["C"] < g.rank["B"] && g.rank["B"] < g.rank["A"]) {
		t.Fatalf("expected D < C < B < A in rank order, got D=%d C=%d B=%d A=%d",
			g.rank["D"], g.rank["C"], g.rank["B"], g.rank["A"])
	}
}
