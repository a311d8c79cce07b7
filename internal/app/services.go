package app

import (
	"context"
	"fmt"

	"mcpbridge/internal/bridge"
	"mcpbridge/internal/config"
	"mcpbridge/internal/server"
	"mcpbridge/internal/supervisor"
	"mcpbridge/internal/telemetry"
	"mcpbridge/pkg/logging"
)

// Services holds every component of a running bridge. Components are built
// in dependency order: store, telemetry, supervisor, bridge, then the
// optional watcher, health scheduler and HTTP server on top.
type Services struct {
	Store      config.Store
	Telemetry  *telemetry.Provider
	Supervisor *supervisor.Supervisor
	Bridge     *bridge.Bridge
	Server     *server.Server

	// Watcher is nil unless the file backend is used with watch enabled.
	Watcher *config.RegistryWatcher
	// Health is nil when no health check schedule is configured.
	Health *supervisor.HealthScheduler
}

// InitializeServices wires the components described by cfg.BridgeConfig.
func InitializeServices(cfg *Config) (*Services, error) {
	bc := cfg.BridgeConfig

	store, err := config.NewStore(bc.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s registry: %w", bc.Registry.Backend, err)
	}

	provider, err := telemetry.NewProvider(cfg.Version)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	opts := supervisor.OptionsFromConfig(bc.Supervisor)
	opts.Observer = provider.Observer()
	sup := supervisor.New(store, opts)

	b := bridge.New(store, sup, bridge.Options{ServerPrefix: bc.Bridge.ServerPrefix})

	s := &Services{
		Store:      store,
		Telemetry:  provider,
		Supervisor: sup,
		Bridge:     b,
		Server:     server.New(server.Config{ListenAddr: bc.Server.ListenAddr, Metrics: provider}, b),
	}

	if bc.Supervisor.HealthCheckSchedule != "" {
		health, err := supervisor.NewHealthScheduler(sup, bc.Supervisor.HealthCheckSchedule)
		if err != nil {
			s.Close(context.Background())
			return nil, err
		}
		s.Health = health
	}

	if bc.Registry.Watch && (bc.Registry.Backend == config.BackendFile || bc.Registry.Backend == "") {
		s.Watcher = config.NewRegistryWatcher(bc.Registry.Path, 0, func(ctx context.Context) {
			pruned, err := sup.Reconcile(ctx)
			if err != nil {
				logging.Warn("ConfigWatcher", "Failed to reconcile after registry change: %v", err)
				return
			}
			if len(pruned) > 0 {
				logging.Info("ConfigWatcher", "Registry change removed %d MCP servers: %v", len(pruned), pruned)
			}
		})
	}

	logging.Debug("Bootstrap", "Services initialized (backend %s)", bc.Registry.Backend)
	return s, nil
}

// Close stops every background component and runtime.
func (s *Services) Close(ctx context.Context) {
	if s.Health != nil {
		s.Health.Stop()
	}
	if s.Watcher != nil {
		s.Watcher.Stop()
	}
	s.Supervisor.Shutdown(ctx)
	if err := s.Telemetry.Shutdown(ctx); err != nil {
		logging.Debug("Bootstrap", "Telemetry shutdown: %v", err)
	}
	if err := s.Store.Close(); err != nil {
		logging.Warn("Bootstrap", "Failed to close registry: %v", err)
	}
}
