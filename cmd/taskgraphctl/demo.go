package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/swarmguard/taskgraph/internal/scheduler"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted walkthrough of registration, dependencies, gates, and cycle rejection.",
	RunE:  runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sched, shutdown := newScheduler(ctx)
	defer shutdown(ctx)

	fmt.Println(separator)
	fmt.Println("taskgraph scheduler - walkthrough")
	fmt.Println(separator)

	fmt.Println("\n1. Registering tasks...")
	tasks := []scheduler.Task{
		{Name: "design-api", Priority: scheduler.High, Duration: 2, EstimatedTokens: 5000},
		{Name: "implement-auth", Priority: scheduler.Critical, Duration: 3, EstimatedTokens: 8000},
		{Name: "write-tests", Priority: scheduler.Medium, Duration: 2, EstimatedTokens: 3000},
		{Name: "deploy-staging", Priority: scheduler.High, Duration: 1, EstimatedTokens: 2000},
		{Name: "code-review", Priority: scheduler.Medium, Duration: 1, EstimatedTokens: 1000},
		{Name: "deploy-prod", Priority: scheduler.Critical, Duration: 1, EstimatedTokens: 2000},
	}
	for _, t := range tasks {
		if err := sched.Register(t); err != nil {
			return err
		}
		fmt.Printf("  registered %s\n", t.Name)
	}

	fmt.Println("\n2. Adding dependencies...")
	edges := [][2]string{
		{"design-api", "implement-auth"},
		{"implement-auth", "write-tests"},
		{"write-tests", "code-review"},
		{"code-review", "deploy-staging"},
		{"deploy-staging", "deploy-prod"},
	}
	for _, e := range edges {
		if err := sched.AddEdge(ctx, e[0], e[1]); err != nil {
			return err
		}
		fmt.Printf("  %s -> %s\n", e[0], e[1])
	}

	fmt.Println("\n3. Statistics:")
	stats := sched.GetStatistics(ctx)
	fmt.Printf("  total tasks: %d, total edges: %d, ready: %d\n", stats.TotalTasks, stats.TotalEdges, stats.ReadyTasks)
	fmt.Printf("  status breakdown: %v\n", stats.StatusBreakdown)

	fmt.Println("\n4. Ready tasks:")
	for _, rt := range sched.ComputeReady(ctx, 3) {
		boosted := ""
		if rt.PriorityBoosted {
			boosted = " (boosted)"
		}
		fmt.Printf("  %s [%s]%s\n", rt.Name, rt.Priority, boosted)
	}

	fmt.Println("\n5. Priority inheritance:")
	effective, _ := sched.EffectivePriority("design-api")
	fmt.Printf("  design-api is HIGH on its own, inherits %s from downstream implement-auth\n", effective)

	fmt.Println("\n6. Timer-gated task...")
	future := time.Now().Add(2 * time.Hour)
	gated := scheduler.Task{
		Name: "scheduled-maintenance", Priority: scheduler.Medium, Duration: 1, EstimatedTokens: 1500,
		AwaitKind: "timer", AwaitID: future.Format(time.RFC3339),
	}
	if err := sched.Register(gated); err != nil {
		return err
	}
	status, _ := sched.GateStatus(ctx, gated.Name)
	fmt.Printf("  registered %s, gate status: %s\n", gated.Name, status)

	fmt.Println("\n7. Human-approved task...")
	approval := scheduler.Task{
		Name: "production-deployment", Priority: scheduler.Critical, Duration: 1, EstimatedTokens: 2000,
		AwaitKind: "human", AwaitID: "security-review-2026",
	}
	if err := sched.Register(approval); err != nil {
		return err
	}
	status, _ = sched.GateStatus(ctx, approval.Name)
	fmt.Printf("  registered %s, gate status: %s\n", approval.Name, status)
	sched.ApproveGate("security-review-2026")
	status, _ = sched.GateStatus(ctx, approval.Name)
	fmt.Printf("  after approval, gate status: %s\n", status)

	fmt.Println("\n8. Cycle detection...")
	if err := sched.AddEdge(ctx, "deploy-prod", "design-api"); err != nil {
		fmt.Printf("  rejected as expected: %v\n", err)
	} else {
		fmt.Println("  ERROR: cycle was not detected")
	}

	fmt.Println("\n9. Removing a dependency...")
	removed, _ := sched.RemoveEdge("design-api", "implement-auth")
	fmt.Printf("  removed design-api -> implement-auth: %v\n", removed)

	fmt.Println("\n10. Ready tasks after removal:")
	for _, rt := range sched.ComputeReady(ctx, 5) {
		fmt.Printf("  %s [%s]\n", rt.Name, rt.Priority)
	}

	fmt.Println("\n11. Full schedule:")
	sch := sched.CalculateSchedule()
	fmt.Printf("  plan %s: %d tasks, %d projected tokens\n", sch.PlanID, sch.TaskCount, sch.TotalProjectedTokens)
	for _, entry := range sch.Entries {
		fmt.Printf("    %-24s start=%d end=%d priority=%s\n", entry.TaskName, entry.StartTime, entry.EndTime, entry.Priority)
	}

	fmt.Println("\n12. Topological order:")
	fmt.Println("  " + joinArrows(sched.TopologicalOrder()))

	fmt.Println("\n" + separator)
	fmt.Println("walkthrough complete")
	fmt.Println(separator)
	return nil
}

const separator = "============================================================"

func joinArrows(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += " -> "
		}
		out += n
	}
	return out
}
