package config

import "time"

const (
	// DefaultServerPrefix marks exported server identifiers for the agent runtime.
	DefaultServerPrefix = "@@mcp_"

	DefaultRegistryFile   = "mcp_servers.json"
	DefaultRegistryDBFile = "mcp_servers.db"
	DefaultRedisKey       = "mcpbridge:servers"

	DefaultListenAddr = "127.0.0.1:8091"

	DefaultStartTimeout     = 10 * time.Second
	DefaultPingTimeout      = 3 * time.Second
	DefaultListToolsTimeout = 5 * time.Second
	DefaultCallToolTimeout  = 60 * time.Second
	DefaultStopGracePeriod  = 5 * time.Second
	DefaultBootConcurrency  = 4
	DefaultHealthSchedule   = "@every 30s"
)

// GetDefaultConfig returns the configuration used when no config.yaml exists.
func GetDefaultConfig() BridgeConfig {
	return BridgeConfig{
		Registry: RegistryConfig{
			Backend:  BackendFile,
			Path:     DefaultRegistryFile,
			Watch:    true,
			RedisKey: DefaultRedisKey,
		},
		Supervisor: SupervisorConfig{
			StartTimeout:        DefaultStartTimeout,
			PingTimeout:         DefaultPingTimeout,
			ListToolsTimeout:    DefaultListToolsTimeout,
			CallToolTimeout:     DefaultCallToolTimeout,
			StopGracePeriod:     DefaultStopGracePeriod,
			BootConcurrency:     DefaultBootConcurrency,
			HealthCheckSchedule: DefaultHealthSchedule,
		},
		Bridge: PluginConfig{
			ServerPrefix: DefaultServerPrefix,
		},
		Server: HTTPConfig{
			ListenAddr: DefaultListenAddr,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
