package obsinit

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// InitMetrics sets up a global OTLP push exporter and returns both the
// shutdown func and a ready-to-use Meter. On failure it falls back to a
// meter backed by the global no-op provider.
func InitMetrics(ctx context.Context, service string) (shutdown func(context.Context) error, meter metric.Meter) {
	ep := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	if ep == "" {
		ep = endpoint()
	}

	ctxInit, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exp, err := otlpmetricgrpc.New(ctxInit,
		otlpmetricgrpc.WithEndpoint(ep),
		otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		slog.Warn("otel metrics exporter init failed, metrics disabled", "error", err)
		return func(context.Context) error { return nil }, otel.GetMeterProvider().Meter("taskgraph")
	}

	res, _ := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
	))

	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	slog.Info("otel metrics initialized", "endpoint", ep)
	return mp.Shutdown, mp.Meter("taskgraph")
}
