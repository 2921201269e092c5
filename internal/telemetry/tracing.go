package telemetry

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TraceOptions selects the span exporter.
type TraceOptions struct {
	ServiceName  string
	Version      string
	OTLPEndpoint string    // OTLP/HTTP collector URL, e.g. http://localhost:4318
	Stdout       io.Writer // pretty-printed spans when set
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// NewTracerProvider builds a tracer provider for the given options. With no
// exporter configured it returns a no-op provider.
func NewTracerProvider(ctx context.Context, opts TraceOptions) (trace.TracerProvider, ShutdownFunc, error) {
	var exporters []sdktrace.SpanExporter

	if opts.OTLPEndpoint != "" {
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(opts.OTLPEndpoint))
		if err != nil {
			return nil, nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		exporters = append(exporters, exp)
	}
	if opts.Stdout != nil {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(opts.Stdout), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		exporters = append(exporters, exp)
	}

	if len(exporters) == 0 {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	name := opts.ServiceName
	if name == "" {
		name = "teatime"
	}
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", name),
			attribute.String("service.version", opts.Version),
		)),
	}
	for _, exp := range exporters {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	log.Debug().
		Str("otlp_endpoint", opts.OTLPEndpoint).
		Bool("stdout", opts.Stdout != nil).
		Msg("Tracing enabled")

	return tp, tp.Shutdown, nil
}
