package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jari57/studio-agents-sub002/runtime/media"
)

// Span attribute keys.
const (
	AttrMediaKind     = "media.kind"
	AttrMediaClass    = "media.reference.class"
	AttrMediaInputLen = "media.input.length"
)

// StartResolve starts a span around one payload resolution.
func StartResolve(ctx context.Context, tracer trace.Tracer, kind media.Kind) (context.Context, trace.Span) {
	return tracer.Start(ctx, "media.resolve",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(AttrMediaKind, string(kind))),
	)
}

// EndResolve records the outcome of a resolution and ends the span.
func EndResolve(span trace.Span, ref media.Reference, inputLen int, err error) {
	span.SetAttributes(
		attribute.String(AttrMediaClass, string(ref.Class())),
		attribute.Int(AttrMediaInputLen, inputLen),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
