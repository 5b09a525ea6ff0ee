package bench

import (
	"strings"
	"testing"
	"time"
)

func TestReportContainsRunMetadataAndResults(t *testing.T) {
	run := Run{
		RunID:     "abc-123",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Results: []Result{
			{TestName: "graph_creation_100", Nodes: 100, Edges: 150, Operation: "create_graph", DurationMS: 12.5, Iterations: 1},
			{TestName: "ready_query_100", Nodes: 100, Edges: 150, Operation: "compute_ready", DurationMS: 4.0, Iterations: 20},
		},
	}

	out := Report(run)

	for _, want := range []string{"abc-123", "2026-01-02 03:04:05", "create_graph", "compute_ready", "100 nodes, 150 edges"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected report to contain %q, got:\n%s", want, out)
		}
	}
}

func TestReportGroupsAndOrdersBySize(t *testing.T) {
	run := Run{
		Results: []Result{
			{Nodes: 1000, Edges: 2000, Operation: "add_edge", DurationMS: 1, Iterations: 1},
			{Nodes: 100, Edges: 150, Operation: "add_edge", DurationMS: 1, Iterations: 1},
		},
	}
	out := Report(run)
	firstIdx := strings.Index(out, "100 nodes, 150 edges")
	secondIdx := strings.Index(out, "1000 nodes, 2000 edges")
	if firstIdx == -1 || secondIdx == -1 || firstIdx > secondIdx {
		t.Fatalf("expected the smaller graph size section to come first in the report")
	}
}
