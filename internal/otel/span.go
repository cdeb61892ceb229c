// Package otel provides span helpers shared by the service layers.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for business context, shared so traces use consistent names.
const (
	AttrFlightID    = attribute.Key("flight.id")
	AttrScheduleID  = attribute.Key("sync.schedule.id")
	AttrProviderID  = attribute.Key("sync.provider.id")
	AttrService     = attribute.Key("sync.service")
	AttrModel       = attribute.Key("sync.model")
	AttrOperation   = attribute.Key("sync.operation")
	AttrRunID       = attribute.Key("sync.run_id")
	AttrResultCount = attribute.Key("result.count")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the
// span already in ctx (a no-op span when there is none).
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks it failed. The status
// description stays generic; details live in the recorded event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
