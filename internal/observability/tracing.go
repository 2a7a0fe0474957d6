// Package observability provides OpenTelemetry integration for distributed
// tracing.
//
// Spans are exported over OTLP HTTP to a local collector (an OpenTelemetry
// Collector, Jaeger's OTLP receiver, or a vendor agent). The exporter is
// registered with Genkit's TracerProvider so model calls, tool rounds, and
// retrieval all appear in one trace.
//
// Environment variables (optional):
//   - COURSECHAT_OTLP_ENDPOINT: collector endpoint (default: tracing disabled)
//   - OTEL_SERVICE_NAME: overrides the configured service name
package observability

import (
	"context"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"coursechat/internal/log"
)

// Config for OTLP trace export.
type Config struct {
	// Endpoint is the collector's OTLP HTTP endpoint, host:port. Empty
	// disables tracing.
	Endpoint string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// ServiceName is the service name attached to exported spans.
	ServiceName string
}

// SetupTracing registers an OTLP exporter with Genkit's TracerProvider.
//
// Returns a shutdown function that flushes pending spans. Tracing failures
// never take the application down: when the exporter cannot be created the
// returned shutdown is a no-op and err is nil.
func SetupTracing(ctx context.Context, cfg Config, logger log.Logger) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.Endpoint == "" {
		logger.Debug("no OTLP endpoint configured, tracing disabled")
		return noop, nil
	}

	// Genkit's TracerProvider reads service identity from the OTEL
	// environment at span creation time.
	if cfg.ServiceName != "" && os.Getenv("OTEL_SERVICE_NAME") == "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("failed to create OTLP exporter, tracing disabled", "error", err)
		return noop, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown, nil
}
