// Package telemetry bootstraps OpenTelemetry tracing for hosts embedding
// the failure-resolution library. With no OTLP endpoint configured the
// setup is a no-op and transaction spans stay local.
package telemetry
