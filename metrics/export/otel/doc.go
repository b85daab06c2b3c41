// Package otel binds engine metrics to an OpenTelemetry Meter.
//
// Each counter becomes an Int64ObservableCounter. The authentication latency
// histogram is published as one cumulative Int64ObservableGauge per bucket
// plus a count gauge. A single callback reads the engine snapshot on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
