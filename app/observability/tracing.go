package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ServiceName tags logs, spans and metrics.
const ServiceName = "beauty-contest"

// Tracer returns the global tracer for a module. Without an installed
// provider this is otel's no-op tracer.
func Tracer(module string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(ServiceName + "/" + module)
}

// NopTracer is for tests.
func NopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer(ServiceName)
}
