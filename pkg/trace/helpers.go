package trace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentCycle starts the span of one detection cycle.
func InstrumentCycle(ctx context.Context, detectorID string, cycle uint64, chunkSize int) (context.Context, trace.Span) {
	attrs := DetectorAttrs(detectorID, cycle)
	attrs = append(attrs, attribute.Int(AttrChunkSize, chunkSize))
	return StartSpan(ctx, "wakeword.cycle", trace.WithAttributes(attrs...))
}

// InstrumentModelLoad starts the span of a model load.
func InstrumentModelLoad(ctx context.Context, path string) (context.Context, trace.Span) {
	return StartSpan(ctx, "wakeword.model_load",
		trace.WithAttributes(attribute.String(AttrModelPath, path)),
	)
}

// InstrumentSession starts the span of a websocket session.
func InstrumentSession(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "wakeword.session",
		trace.WithAttributes(attribute.String(AttrSessionID, sessionID)),
	)
}

// WithSpan runs fn inside a new span, recording its error.
func WithSpan(ctx context.Context, spanName string, fn func(context.Context) error, opts ...trace.SpanStartOption) error {
	ctx, span := StartSpan(ctx, spanName, opts...)
	defer span.End()

	if err := fn(ctx); err != nil {
		RecordError(span, err)
		return err
	}
	return nil
}

// RecordError records err on span and marks the span failed.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the trace ID of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
