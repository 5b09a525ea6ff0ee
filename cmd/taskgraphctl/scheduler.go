package main

import (
	"context"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	"github.com/swarmguard/taskgraph/internal/obsinit"
	"github.com/swarmguard/taskgraph/internal/scheduler"
)

// newScheduler builds a Scheduler wired to the configured OTLP endpoint
// (or a no-op provider if the collector is unreachable) using the
// viper-bound tunables every subcommand shares.
func newScheduler(ctx context.Context) (*scheduler.Scheduler, func(context.Context)) {
	shutdownTracer := obsinit.InitTracer(ctx, "taskgraphctl")
	shutdownMetrics, meter := obsinit.InitMetrics(ctx, "taskgraphctl")

	tracer := otel.Tracer("taskgraphctl")

	sched := scheduler.New(tracer, meter,
		scheduler.WithPriorityInheritance(viper.GetBool("priority-inheritance")),
		scheduler.WithInheritanceRadius(viper.GetInt("inheritance-depth")),
		scheduler.WithAgingThreshold(viper.GetDuration("aging-threshold")),
		scheduler.WithAgingBoost(viper.GetInt("aging-boost")),
		scheduler.WithReadyCacheTTL(viper.GetDuration("ready-cache-ttl")),
	)

	shutdown := func(ctx context.Context) {
		obsinit.Flush(ctx, shutdownTracer)
		obsinit.Flush(ctx, shutdownMetrics)
	}
	return sched, shutdown
}
