// Package supervisor owns the runtimes of the configured MCP servers.
//
// A Supervisor keeps at most one live client per server name, records the
// outcome of the most recent boot attempt for every name, and serializes
// starts and stops per name so that concurrent callers never spawn duplicate
// processes. Boot passes are shared between concurrent callers and run the
// individual starts with bounded concurrency; one server failing to start
// never affects the others.
//
// Runtimes are evicted when their configuration disappears (Reconcile) or
// when they stop answering pings (CheckHealth, usually driven by a
// HealthScheduler). Evicted servers that failed their health check are
// retried by the next Reload.
//
// Lifecycle and call events are reported to an Observer; the telemetry
// package provides an OpenTelemetry implementation.
package supervisor
