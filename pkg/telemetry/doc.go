// Package telemetry wires OpenTelemetry exporters, meters, and Prometheus
// collectors for pipeline runs.
//
// It centralises trace provider setup, records per-node execution metrics through
// the global otel MeterProvider, and offers a Prometheus-backed runtime.Observer
// that long-running processes expose over HTTP.
package telemetry
