// Package config provides configuration management for mcpbridge.
//
// It covers two concerns: the application configuration (config.yaml plus
// MCPBRIDGE_* environment overrides) and the persisted registry of tool
// servers.
//
// # Configuration Directory
//
// Configuration is loaded from a single directory, ~/.config/mcpbridge by
// default, containing:
//   - config.yaml (application configuration, optional)
//   - .env (optional, loaded into the environment before overrides apply)
//   - mcp_servers.json (the registry, for the file backend)
//
// # Registry
//
// The Store interface has four implementations selected by
// registry.backend:
//   - file: FileStore, a {"mcpServers": {...}} JSON document replaced atomically
//   - sqlite: SQLiteStore, one row per server
//   - redis: RedisStore, one hash shared by several bridges
//   - memory: MemoryStore, for tests and throwaway sessions
//
// Every descriptor goes through ValidateDescriptor before it is persisted or
// returned, so the rest of the system only ever sees valid stdio or network
// descriptors.
//
// # Watching
//
// RegistryWatcher uses fsnotify to notice hand edits to the registry file so
// the supervisor can stop servers whose entries disappeared.
package config
