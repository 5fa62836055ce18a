// Package tracing holds the process-wide tracer and small helpers for
// reading ids off the active span.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// SetTracer installs the tracer used by StartSpan. Until one is set,
// StartSpan is a no-op passthrough.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan starts a child span named spanName on the installed tracer.
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName)
}

// spanContext returns the active span context, reporting whether one is
// actually recording.
func spanContext(ctx context.Context) (trace.SpanContext, bool) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return sc, sc.IsValid()
}

// GetTraceID returns the active trace id, or "" outside a trace.
func GetTraceID(ctx context.Context) string {
	if sc, ok := spanContext(ctx); ok {
		return sc.TraceID().String()
	}
	return ""
}

// GetSpanID returns the active span id, or "" outside a trace.
func GetSpanID(ctx context.Context) string {
	if sc, ok := spanContext(ctx); ok {
		return sc.SpanID().String()
	}
	return ""
}

// GetTraceParent renders the active span as a W3C traceparent header
// value for propagation to the upstream APIs.
func GetTraceParent(ctx context.Context) string {
	if _, ok := spanContext(ctx); !ok {
		return ""
	}

	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	return carrier.Get("traceparent")
}
