package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span failed.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(attrs...))
}

// RecordFault notes an error the journey recovered from. The span status is
// left untouched.
func RecordFault(span trace.Span, fault error, attrs ...attribute.KeyValue) {
	attrs = append(attrs, attribute.String("journeys.fault", fault.Error()))
	span.AddEvent("fault_recovered", trace.WithAttributes(attrs...))
}
