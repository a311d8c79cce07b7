package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mcpbridge/pkg/logging"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/mcpbridge"
	configFileName = "config.yaml"
	envFileName    = ".env"

	envPrefix = "MCPBRIDGE_"
)

// GetDefaultConfigDir returns ~/.config/mcpbridge.
func GetDefaultConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads configuration from a single directory.
//
// Order of precedence, lowest first: built-in defaults, config.yaml in
// configDir, then MCPBRIDGE_* environment variables. A .env file in configDir
// or the working directory is loaded into the environment first; it never
// overrides variables that are already set.
func LoadConfig(configDir string) (BridgeConfig, error) {
	loadEnvFiles(configDir)

	config := GetDefaultConfig()
	configFilePath := filepath.Join(configDir, configFileName)

	data, err := os.ReadFile(configFilePath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return BridgeConfig{}, ConfigurationError{
				FilePath:  configFilePath,
				ErrorType: "parse",
				Message:   "config.yaml is not valid YAML",
				Details:   err.Error(),
			}
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	default:
		return BridgeConfig{}, ConfigurationError{
			FilePath:  configFilePath,
			ErrorType: "io",
			Message:   "config.yaml could not be read",
			Details:   err.Error(),
		}
	}

	if err := applyEnvOverrides(&config); err != nil {
		return BridgeConfig{}, err
	}

	config.Registry.Path = resolvePath(configDir, config.Registry.Path)

	if err := ValidateBridgeConfig(config); err != nil {
		return BridgeConfig{}, ConfigurationError{
			FilePath:  configFilePath,
			ErrorType: "validation",
			Message:   err.Error(),
		}
	}
	return config, nil
}

func loadEnvFiles(configDir string) {
	for _, p := range []string{filepath.Join(configDir, envFileName), envFileName} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			logging.Warn("ConfigLoader", "Ignoring unreadable env file %s: %v", p, err)
			continue
		}
		logging.Debug("ConfigLoader", "Loaded environment from %s", p)
	}
}

func applyEnvOverrides(config *BridgeConfig) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := os.LookupEnv(envPrefix + key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = d
		return nil
	}

	var backend string
	str("REGISTRY_BACKEND", &backend)
	if backend != "" {
		config.Registry.Backend = RegistryBackend(strings.ToLower(backend))
	}
	str("REGISTRY_PATH", &config.Registry.Path)
	str("REDIS_ADDR", &config.Registry.RedisAddr)
	str("REDIS_KEY", &config.Registry.RedisKey)
	if v, ok := os.LookupEnv(envPrefix + "REGISTRY_WATCH"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sREGISTRY_WATCH: %w", envPrefix, err)
		}
		config.Registry.Watch = b
	}

	for key, dst := range map[string]*time.Duration{
		"START_TIMEOUT":      &config.Supervisor.StartTimeout,
		"PING_TIMEOUT":       &config.Supervisor.PingTimeout,
		"LIST_TOOLS_TIMEOUT": &config.Supervisor.ListToolsTimeout,
		"CALL_TOOL_TIMEOUT":  &config.Supervisor.CallToolTimeout,
		"STOP_GRACE_PERIOD":  &config.Supervisor.StopGracePeriod,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}
	str("HEALTH_CHECK_SCHEDULE", &config.Supervisor.HealthCheckSchedule)

	str("SERVER_PREFIX", &config.Bridge.ServerPrefix)
	str("LISTEN_ADDR", &config.Server.ListenAddr)
	str("LOG_LEVEL", &config.Logging.Level)
	str("LOG_FORMAT", &config.Logging.Format)
	return nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return filepath.Join(base, p)
}
