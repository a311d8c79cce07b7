package app

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"mcpbridge/pkg/logging"
)

// shutdownTimeout bounds the graceful shutdown sequence.
const shutdownTimeout = 15 * time.Second

// runServer boots the configured MCP servers, starts the background
// components and the management API, and blocks until ctx is cancelled or
// SIGINT/SIGTERM arrives.
//
// Servers that fail to boot are recorded and reported by the list endpoint;
// only a failure to read the registry or to bind the listener aborts.
func runServer(ctx context.Context, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		logging.Info("CLI", "--- Shutting down ---")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := services.Server.Shutdown(shutdownCtx); err != nil {
			logging.Warn("CLI", "Management API shutdown: %v", err)
		}
		services.Close(shutdownCtx)
	}()

	if err := services.Supervisor.EnsureBooted(ctx); err != nil {
		logging.Error("CLI", err, "Failed to boot MCP servers")
		return err
	}
	logging.Info("CLI", "%d MCP servers running", len(services.Supervisor.RunningNames()))

	if services.Watcher != nil {
		if err := services.Watcher.Start(ctx); err != nil {
			logging.Warn("CLI", "Registry watcher disabled: %v", err)
		}
	}
	if services.Health != nil {
		if err := services.Health.Start(ctx); err != nil {
			return err
		}
	}

	if err := services.Server.Start(); err != nil {
		return err
	}

	logging.Info("CLI", "Serving. Press Ctrl+C to stop all MCP servers and exit.")
	<-ctx.Done()
	return nil
}
