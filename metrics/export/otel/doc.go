// Package otel publishes tenantAuth engine metrics as OpenTelemetry
// instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter
// and an Int64ObservableGauge per latency bucket. A single callback reads
// Engine.MetricsSnapshot on each collection cycle. The engine's cache health
// is reported as tenantauth_cache_up and tenantauth_cache_latency_seconds,
// which costs one Redis ping per collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
