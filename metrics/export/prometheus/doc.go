// Package prometheus exposes tenantAuth engine metrics through
// client_golang.
//
// [Collector] implements prometheus.Collector over the engine's metrics
// snapshot. Counter names are tenantauth_*_total; the single histogram is
// tenantauth_validate_latency_seconds. [NewPrometheusExporter] wraps the
// collector in a private registry and serves it with promhttp.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry; callers mount the Handler
//     or register the Collector themselves.
//   - Mutate engine state.
package prometheus
