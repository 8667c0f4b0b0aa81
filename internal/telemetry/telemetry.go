// Package telemetry bootstraps OpenTelemetry tracing for the Trinity
// host and provides the span helpers the dispatcher, module runtime,
// and hot-reload watcher use to instrument their own operations.
package telemetry

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/trinitybot/trinity/internal/config"
)

// tracerName identifies this host's own spans among whatever else
// shares the process's trace provider.
const tracerName = "trinity"

// Init sets up OpenTelemetry tracing with an OTLP gRPC exporter.
// Returns a shutdown function that should be called on graceful
// shutdown. When cfg disables telemetry, every span helper below still
// works, just against the global no-op tracer.
func Init(cfg config.TelemetryConfig) (func(context.Context) error, error) {
	if !cfg.Enabled || cfg.OTLPEndpoint == "" {
		log.Info().Msg("telemetry: disabled")
		return func(ctx context.Context) error { return nil }, nil
	}

	ctx := context.Background()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", "0.1.0"),
		),
		resource.WithHost(),
		resource.WithOS(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().
		Str("endpoint", cfg.OTLPEndpoint).
		Str("service", cfg.ServiceName).
		Msg("telemetry: tracing initialized")

	return tp.Shutdown, nil
}

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartDispatchSpan starts a span around routing one inbound event,
// tagged with the path it eventually resolves to (admin, help, module,
// unhandled) via span.SetAttributes once the dispatcher knows it.
func StartDispatchSpan(ctx context.Context, eventRoomID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "dispatch.handle",
		trace.WithAttributes(attribute.String("trinity.room_id", eventRoomID)))
}

// SetDispatchPath records which handler ultimately served the event.
func SetDispatchPath(span trace.Span, path string) {
	span.SetAttributes(attribute.String("trinity.dispatch.path", path))
}

// StartModuleCompileSpan starts a span around compiling and
// instantiating one guest module.
func StartModuleCompileSpan(ctx context.Context, moduleName string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "runtime.compile",
		trace.WithAttributes(attribute.String("trinity.module.name", moduleName)))
}

// StartReloadSpan starts a span around one hot-reload rebuild of the
// module registry.
func StartReloadSpan(ctx context.Context) (context.Context, trace.Span) {
	return tracer().Start(ctx, "watcher.reload")
}
