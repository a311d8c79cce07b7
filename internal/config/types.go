package config

import "time"

// BridgeConfig is the top-level configuration structure for mcpbridge.
type BridgeConfig struct {
	Registry   RegistryConfig   `yaml:"registry"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Bridge     PluginConfig     `yaml:"bridge"`
	Server     HTTPConfig       `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// RegistryBackend selects the Store implementation.
type RegistryBackend string

const (
	BackendFile   RegistryBackend = "file"
	BackendSQLite RegistryBackend = "sqlite"
	BackendRedis  RegistryBackend = "redis"
	BackendMemory RegistryBackend = "memory"
)

// RegistryConfig locates the persisted server registry.
type RegistryConfig struct {
	Backend RegistryBackend `yaml:"backend,omitempty"`
	// Path is the registry file (file backend) or database (sqlite backend).
	// Relative paths resolve against the config directory.
	Path string `yaml:"path,omitempty"`
	// Watch enables reconciliation when the registry file changes on disk.
	Watch bool `yaml:"watch,omitempty"`

	RedisAddr string `yaml:"redisAddr,omitempty"`
	RedisKey  string `yaml:"redisKey,omitempty"`
}

// SupervisorConfig bounds every interaction with a tool server.
type SupervisorConfig struct {
	StartTimeout     time.Duration `yaml:"startTimeout,omitempty"`
	PingTimeout      time.Duration `yaml:"pingTimeout,omitempty"`
	ListToolsTimeout time.Duration `yaml:"listToolsTimeout,omitempty"`
	CallToolTimeout  time.Duration `yaml:"callToolTimeout,omitempty"`
	StopGracePeriod  time.Duration `yaml:"stopGracePeriod,omitempty"`
	BootConcurrency  int           `yaml:"bootConcurrency,omitempty"`
	// HealthCheckSchedule is a cron spec ("@every 30s"); empty disables the sweep.
	HealthCheckSchedule string `yaml:"healthCheckSchedule,omitempty"`
}

// PluginConfig controls how servers are exported to the agent runtime.
type PluginConfig struct {
	ServerPrefix string `yaml:"serverPrefix,omitempty"`
}

// HTTPConfig configures the management API listener.
type HTTPConfig struct {
	ListenAddr string `yaml:"listenAddr,omitempty"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}
