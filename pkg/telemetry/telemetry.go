// Package telemetry wires OpenTelemetry tracing for dump runs.
//
// Tracing is off unless OTEL_ENABLED=true. When enabled, Init installs a
// global TracerProvider exporting over OTLP (OTEL_EXPORTER_OTLP_ENDPOINT,
// OTEL_EXPORTER_OTLP_PROTOCOL grpc or http/protobuf) and every dump phase
// started with StartSpan is exported. The database layer adds its own spans
// when Enabled reports true.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	globalConfig *Config
	configOnce   sync.Once
)

// ShutdownFunc flushes and stops the TracerProvider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs the global TracerProvider. With tracing disabled it returns a
// no-op shutdown and leaves the default no-op provider in place.
func Init(ctx context.Context) (ShutdownFunc, error) {
	cfg := loadConfig()
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return noopShutdown, fmt.Errorf("failed to build trace resource: %w", err)
	}
	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return noopShutdown, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(newSampler(cfg)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Enabled reports whether OTEL_ENABLED turned tracing on.
func Enabled() bool {
	return loadConfig().Enabled
}

// GetConfig returns the configuration read at first use.
func GetConfig() *Config {
	return loadConfig()
}

func loadConfig() *Config {
	configOnce.Do(func() {
		globalConfig = LoadFromEnv()
	})
	return globalConfig
}
