// Package app bootstraps mcpbridge: it loads configuration, initializes
// logging, and wires the registry store, supervisor, telemetry, plugin bridge
// and management API into a Services value.
//
// The Application follows a two-phase pattern. NewApplication loads and
// wires everything without side effects on MCP servers; Run boots the
// configured servers, starts the registry watcher and health sweep, serves
// the management API, and shuts everything down on SIGINT/SIGTERM or when
// its context ends.
//
// One-shot CLI commands use NewApplication and Services directly and call
// Close when done.
package app
