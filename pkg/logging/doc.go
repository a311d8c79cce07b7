// Package logging provides the process-wide structured logger for mcpbridge.
//
// It is a thin facade over log/slog. Every entry carries a subsystem
// attribute so output from the supervisor, individual tool servers and the
// management API can be filtered apart.
//
// # Usage
//
//	level, _ := logging.ParseLevel(cfg.Logging.Level)
//	logging.Init(level, logging.Format(cfg.Logging.Format), os.Stderr)
//
//	logging.Info("Supervisor", "Booting %d servers", n)
//	logging.Debug("MCPServer-github", "Ping ok")
//	logging.Warn("ConfigWatcher", "Registry file removed")
//	logging.Error("Bridge", err, "Tool %s failed", name)
//
// Until Init is called only Error entries are emitted, to stderr.
package logging
