// Package otel binds engine counters to OpenTelemetry observable
// instruments.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter
// and reads a single snapshot per collection cycle. Callers own the
// MeterProvider; the exporter only borrows a Meter.
package otel
