// Package obsinit wires OpenTelemetry tracing and metrics for the
// taskgraphctl process, falling back to no-op providers when the
// collector is unreachable so observability never gates availability.
package obsinit

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func endpoint() string {
	if e := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); e != "" {
		return e
	}
	return "localhost:4317"
}

// InitTracer configures a global tracer provider with an OTLP gRPC
// exporter. On failure it logs a warning and returns a no-op shutdown,
// never blocking startup on a missing collector.
func InitTracer(ctx context.Context, service string) func(context.Context) error {
	ep := endpoint()
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(ep),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		slog.Warn("otel trace exporter init failed, tracing disabled", "error", err)
		return func(context.Context) error { return nil }
	}

	res, _ := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
	))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	slog.Info("otel tracer initialized", "endpoint", ep)
	return tp.Shutdown
}

// Flush gives the exporter a bounded window to drain on shutdown.
func Flush(ctx context.Context, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = shutdown(ctx)
}
