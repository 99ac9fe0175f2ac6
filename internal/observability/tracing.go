// Package observability provides OpenTelemetry integration for
// distributed tracing.
//
// Traces are exported over OTLP HTTP to a local collector or agent.
// The exporter never blocks startup: when the collector is unreachable
// the server runs untraced rather than failing.
//
// Configuration (~/.websearch-mcp/config.yaml). Tracing is off until an
// endpoint is configured:
//
//	tracing:
//	  endpoint: "localhost:4318"
//	  service_name: "websearch-mcp"
//	  environment: "dev"
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/koopa0/websearch-mcp/internal/log"
)

// DefaultEndpoint is the default OTLP HTTP collector endpoint.
const DefaultEndpoint = "localhost:4318"

// Config for OTEL tracing setup.
type Config struct {
	// Enabled turns span export on. When false, Setup is a no-op.
	Enabled bool
	// Endpoint is the OTLP HTTP collector endpoint (default: localhost:4318)
	Endpoint string
	// ServiceName is the service name attached to exported spans.
	ServiceName string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
}

// noopShutdown is returned whenever no exporter was installed.
func noopShutdown(context.Context) error { return nil }

// Setup installs a global tracer provider exporting to the configured
// OTLP collector. It returns a shutdown function that flushes pending
// spans; callers must invoke it before exit.
//
// Setup never fails the caller: an unreachable or misconfigured
// collector logs a warning and leaves tracing disabled.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (shutdown func(context.Context) error, err error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// Local collectors speak plain HTTP; the agent handles forwarding.
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return noopShutdown, nil
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return noopShutdown, fmt.Errorf("building trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return provider.Shutdown, nil
}
