// Package bridge exposes the supervised MCP servers to the host application.
//
// For the agent runtime it lists the active servers under a fixed prefix,
// describes each server tool as a Plugin named "{server}-{tool}", and
// invokes plugins, always answering with text. For the management API it
// reports merged status, force-reloads, toggles, deletes, adds and parses
// server definitions. Every operation returns an api.Result and converts
// panics into internal failures.
package bridge
