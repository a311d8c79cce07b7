// Package server exposes the bridge over HTTP with gin.
//
// Management routes live under /api/mcp-servers (list, force-reload, toggle,
// delete, create, parse-install-command) and answer with a JSON envelope
// carrying "success" and "error" fields next to the payload. Agent routes
// under /api/agent list the exported plugins and invoke them by name. A
// metrics snapshot is served at /api/metrics when a MetricsSource is
// configured, and /healthz reports liveness.
package server
