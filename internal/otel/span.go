// Package otel provides OpenTelemetry instrumentation helpers shared by the sync job.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used across the job so traces share one naming scheme.
const (
	AttrPulpInstance = attribute.Key("pulp.instance")
	AttrIndexURL     = attribute.Key("index.url")
	AttrIndexEnabled = attribute.Key("index.enabled")
	AttrResultCount  = attribute.Key("result.count")
)

// StartSpan starts a new span if the tracer is non-nil. Otherwise it returns
// ctx unchanged with a non-recording span, never the span already in ctx, so
// ending it or recording an error on it leaves the caller's span untouched.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and sets the span status to error.
// It safely handles nil spans and nil errors.
// The status description stays generic so connection strings and SQL never
// end up in the span status; the full error is kept in the span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
