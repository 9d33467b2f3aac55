// Package otel provides OpenTelemetry span helpers shared by the fetch and transfer flows.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Common attribute keys used across the application.
const (
	AttrBatchID     = attribute.Key("batch.id")
	AttrBatchSize   = attribute.Key("batch.size")
	AttrRecordKind  = attribute.Key("record.kind")
	AttrRecordID    = attribute.Key("record.id")
	AttrWaitOutcome = attribute.Key("wait.outcome")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns ctx
// unchanged with a no-op span. Ending the returned span never ends a parent.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, noop.Span{}
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span as failed.
// The status description stays generic; the details live in the span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
