// Package prometheus renders cuenta client metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [cuenta.Client] and exposes an [http.Handler].
// Short-lived processes such as the CLI use [PrometheusExporter.WriteTextfile]
// instead, for node_exporter's textfile collector.
// Counter names are prefixed cuenta_*_total; the single histogram is
// cuenta_api_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate client state.
package prometheus
