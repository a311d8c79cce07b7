package app

import (
	"mcpbridge/internal/config"
)

// Config holds the application configuration
type Config struct {
	// ConfigDir is the directory holding config.yaml and, by default, the
	// registry. Empty means ~/.config/mcpbridge.
	ConfigDir string

	// LogLevel overrides logging.level from config.yaml when set.
	LogLevel string

	// Version is reported in telemetry resources.
	Version string

	// BridgeConfig is loaded from ConfigDir when nil.
	BridgeConfig *config.BridgeConfig
}

// NewConfig creates a new application configuration
func NewConfig(configDir, logLevel, version string) *Config {
	return &Config{
		ConfigDir: configDir,
		LogLevel:  logLevel,
		Version:   version,
	}
}
