package telemetry

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc/credentials/insecure"
)

func newExporter(ctx context.Context, cfg *Config) (*otlptrace.Exporter, error) {
	switch cfg.Protocol {
	case "http/protobuf", "http":
		var opts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.hostPort()))
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		if cfg.plaintext() {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	case "grpc", "":
		var opts []otlptracegrpc.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.hostPort()))
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		if cfg.plaintext() {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", cfg.Protocol)
	}
}

// newSampler maps OTEL_TRACES_SAMPLER names to samplers. Unknown names sample everything.
func newSampler(cfg *Config) sdktrace.Sampler {
	ratio := sdktrace.TraceIDRatioBased(parseRatio(cfg.SamplerArg))
	switch cfg.Sampler {
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return ratio
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(ratio)
	default:
		return sdktrace.AlwaysSample()
	}
}

// parseRatio clamps to [0, 1]; empty or malformed input means 1.
func parseRatio(s string) float64 {
	r, err := strconv.ParseFloat(s, 64)
	switch {
	case err != nil || r > 1:
		return 1
	case r < 0:
		return 0
	default:
		return r
	}
}

// newResource describes the dumping process: service identity, host and
// executable, plus any OTEL_RESOURCE_ATTRIBUTES.
func newResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	for k, v := range cfg.ResourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithProcessExecutableName(),
		resource.WithProcessPID(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), res)
}
