// Package prometheus renders engine counters and the authentication latency
// histogram in the Prometheus text exposition format.
//
// Counter names follow faceauth_*_total; the histogram is
// faceauth_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
