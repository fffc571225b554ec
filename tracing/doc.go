// Package tracing wraps OpenTelemetry to trace bean processing.  Spans are
// no-ops until Init or InitWithExporter installs a provider.
package tracing
