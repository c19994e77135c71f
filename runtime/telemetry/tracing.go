// Package telemetry traces the media runtime with OpenTelemetry: tracer
// setup, W3C and X-Ray propagation, and resolve spans.
package telemetry

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jari57/studio-agents-sub002/runtime/version"
)

// ScopeName names the tracer used for media and voice spans.
const ScopeName = "github.com/Jari57/studio-agents-sub002/runtime"

// Resource attribute keys set by this package.
const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"
	AttrRuntimeName    = "studio.runtime.name"
)

// Config configures tracing.
type Config struct {
	// Endpoint is the OTLP/HTTP traces URL. Empty disables export.
	Endpoint string

	// ServiceName is reported as service.name.
	ServiceName string

	// RuntimeName identifies this runtime instance, usually the manifest name.
	RuntimeName string

	// Attributes are added to the resource as-is.
	Attributes map[string]string
}

// Tracing holds the tracer provider of one runtime.
type Tracing struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
}

// Setup builds tracing from cfg. Without an endpoint spans go to the global
// provider and Shutdown does nothing. With one, spans are batched to the
// OTLP endpoint and the global propagator accepts W3C and X-Ray headers.
func Setup(ctx context.Context, cfg Config) (*Tracing, error) {
	if cfg.Endpoint == "" {
		return &Tracing{
			provider: otel.GetTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res))
	otel.SetTextMapPropagator(Propagator())
	return &Tracing{provider: tp, shutdown: tp.Shutdown}, nil
}

// Tracer returns the runtime tracer.
func (t *Tracing) Tracer() trace.Tracer {
	return Tracer(t.provider)
}

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}

// Tracer returns the runtime tracer from tp, or from the global provider
// when tp is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(ScopeName, trace.WithInstrumentationVersion(version.GetVersion()))
}

// Propagator reads and writes W3C trace context, W3C baggage and AWS X-Ray
// headers.
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
		xray.Propagator{},
	)
}

func newResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrServiceName, cfg.ServiceName),
		attribute.String(AttrServiceVersion, version.GetVersion()),
	}
	if cfg.RuntimeName != "" {
		attrs = append(attrs, attribute.String(AttrRuntimeName, cfg.RuntimeName))
	}
	for _, k := range slices.Sorted(maps.Keys(cfg.Attributes)) {
		attrs = append(attrs, attribute.String(k, cfg.Attributes[k]))
	}
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}
