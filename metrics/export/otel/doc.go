// Package otel provides OpenTelemetry metric bindings for the
// coordinator's counters.
//
// [NewExporter] registers one Int64ObservableCounter per coordinator
// metric plus the audit drop counter. A single callback reads the
// coordinator's snapshot on each collection cycle.
//
// Callers own the MeterProvider; this package only takes a Meter.
package otel
