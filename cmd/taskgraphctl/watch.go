package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/swarmguard/taskgraph/internal/scheduler"
)

var watchCron string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the ready set on a cron schedule and print it, until interrupted.",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchCron, "cron", "*/10 * * * * *", "cron expression (seconds precision) for the ready-set poll")
}

// runWatch demonstrates the scheduler under periodic polling: each tick
// queries the ready set. Gates whose openness depends on wall-clock time
// (timer gates, TTL'd remote-PR gates) are re-evaluated only when the
// ready cache is rebuilt, which without a graph mutation happens only
// once a positive --ready-cache-ttl has elapsed.
func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched, shutdown := newScheduler(ctx)
	defer shutdown(ctx)

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(watchCron, func() {
		ready := sched.ComputeReady(ctx, 0)
		fmt.Printf("ready set (%d): %v\n", len(ready), readyNames(ready))
	})
	if err != nil {
		return fmt.Errorf("add cron schedule: %w", err)
	}

	c.Start()
	defer c.Stop()

	fmt.Println("watching ready set on schedule", watchCron, "- press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}

func readyNames(ready []scheduler.ReadyTask) []string {
	names := make([]string, len(ready))
	for i, r := range ready {
		names[i] = r.Name
	}
	return names
}
