package bench

import (
	"fmt"
	"sort"
	"strings"
)

// Report renders a Run as a markdown document shaped like the reference
// generate_report.py output: an executive summary, one summary table
// covering every graph size, then a detailed result list per graph size.
func Report(run Run) string {
	var b strings.Builder

	fmt.Fprintln(&b, "# taskgraph scheduler - performance benchmark report")
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "**Run ID:** %s\n", run.RunID)
	fmt.Fprintf(&b, "**Generated:** %s\n", run.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "---")
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "## Executive summary")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Measures edge insertion, ready-set query, and cycle-rejection latency")
	fmt.Fprintln(&b, "across graph sizes from small to large, to watch for superlinear")
	fmt.Fprintln(&b, "blowups in the Pearce-Kelly reorder path.")
	fmt.Fprintln(&b)

	bySize := groupBySize(run.Results)
	sizes := sortedSizes(bySize)

	fmt.Fprintln(&b, "## Summary")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "| Nodes | Edges | Operation | Avg (ms) | Iterations |")
	fmt.Fprintln(&b, "|---|---|---|---|---|")
	for _, size := range sizes {
		for _, r := range bySize[size] {
			fmt.Fprintf(&b, "| %d | %d | %s | %.3f | %d |\n", r.Nodes, r.Edges, r.Operation, r.AvgMS(), r.Iterations)
		}
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "## Detailed results")
	for _, size := range sizes {
		fmt.Fprintf(&b, "\n### Graph: %d nodes, %d edges\n\n", size.Nodes, size.Edges)
		for _, r := range bySize[size] {
			fmt.Fprintf(&b, "- **%s** (%s): %.3f ms total over %d iterations (%.3f ms/op)\n",
				r.TestName, r.Operation, r.DurationMS, r.Iterations, r.AvgMS())
		}
	}

	return b.String()
}

func groupBySize(results []Result) map[GraphSize][]Result {
	grouped := make(map[GraphSize][]Result)
	for _, r := range results {
		key := GraphSize{Nodes: r.Nodes, Edges: r.Edges}
		grouped[key] = append(grouped[key], r)
	}
	return grouped
}

func sortedSizes(grouped map[GraphSize][]Result) []GraphSize {
	sizes := make([]GraphSize, 0, len(grouped))
	for size := range grouped {
		sizes = append(sizes, size)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i].Nodes < sizes[j].Nodes })
	return sizes
}
