// Package telemetry records supervisor lifecycle and tool-call events as
// OpenTelemetry metrics and spans, and exposes a pull-based snapshot of the
// collected metrics for the management API.
package telemetry
