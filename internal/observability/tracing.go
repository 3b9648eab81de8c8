// Package observability sets up OpenTelemetry tracing for the service.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter"` // stdout | otlp
	Endpoint    string  `yaml:"endpoint"` // used when Exporter == otlp
	SampleRatio float64 `yaml:"sample_ratio"`
}

// DefaultTracingConfig returns tracing disabled with a stdout exporter.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "isstracker",
		Exporter:    "stdout",
		SampleRatio: 1.0,
	}
}

// InitTracing installs a tracer provider, exporter and propagators based on
// cfg. The returned function flushes and stops the provider.
func InitTracing(ctx context.Context, cfg TracingConfig, logger *slog.Logger) (func(context.Context) error, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		logger.Info("tracing disabled", "component", "observability")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := exporterFromConfig(ctx, cfg, os.Stdout)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing enabled",
		"component", "observability",
		"exporter", cfg.Exporter,
		"service_name", cfg.ServiceName,
		"sample_ratio", cfg.SampleRatio,
	)
	return tp.Shutdown, nil
}

func exporterFromConfig(ctx context.Context, cfg TracingConfig, w io.Writer) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		return stdouttrace.New(
			stdouttrace.WithWriter(w),
			stdouttrace.WithoutTimestamps(),
		)
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		return otlptrace.New(ctx, client)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}

// ShutdownWithTimeout calls shutdown with a bounded timeout, logging any error.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, logger *slog.Logger) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("tracing shutdown failed", "component", "observability", "error", err)
	}
}
