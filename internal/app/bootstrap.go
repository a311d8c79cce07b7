package app

import (
	"context"
	"fmt"
	"os"

	"mcpbridge/internal/config"
	"mcpbridge/pkg/logging"
)

// Application represents the main application structure that bootstraps and
// runs mcpbridge. It encapsulates the loaded configuration and the wired
// services.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: load configuration, initialize logging, wire services
//  2. Execution phase: serve the management API until shutdown
//
// Example usage:
//
//	cfg := app.NewConfig("", "debug", version)
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication creates and initializes a new application instance.
//
// Configuration is read from cfg.ConfigDir (or ~/.config/mcpbridge) unless
// cfg.BridgeConfig is already set. A --log-level override wins over the
// configured level.
func NewApplication(cfg *Config) (*Application, error) {
	if cfg.BridgeConfig == nil {
		dir := cfg.ConfigDir
		if dir == "" {
			var err error
			if dir, err = config.GetDefaultConfigDir(); err != nil {
				return nil, err
			}
		}
		loaded, err := config.LoadConfig(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load mcpbridge configuration from %s: %w", dir, err)
		}
		cfg.BridgeConfig = &loaded
	}

	if err := initLogging(cfg); err != nil {
		return nil, err
	}

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

func initLogging(cfg *Config) error {
	levelName := cfg.BridgeConfig.Logging.Level
	if cfg.LogLevel != "" {
		levelName = cfg.LogLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}
	logging.Init(level, logging.Format(cfg.BridgeConfig.Logging.Format), os.Stderr)
	return nil
}

// Services returns the wired components.
func (a *Application) Services() *Services {
	return a.services
}

// Run serves until ctx is cancelled or the process is signalled, then shuts
// everything down.
func (a *Application) Run(ctx context.Context) error {
	return runServer(ctx, a.services)
}

// Close stops every runtime and releases the registry and telemetry. It is
// used by one-shot commands that never call Run.
func (a *Application) Close(ctx context.Context) {
	a.services.Close(ctx)
}
