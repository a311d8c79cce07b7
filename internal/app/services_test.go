package app

import (
	"context"
	"path/filepath"
	"testing"

	"mcpbridge/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeServices(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *config.BridgeConfig, dir string)
		wantWatcher bool
		wantHealth  bool
	}{
		{
			name: "memory backend without extras",
		},
		{
			name: "file backend with watch",
			mutate: func(c *config.BridgeConfig, dir string) {
				c.Registry.Backend = config.BackendFile
				c.Registry.Path = filepath.Join(dir, "servers.json")
				c.Registry.Watch = true
			},
			wantWatcher: true,
		},
		{
			name: "watch ignored for non-file backend",
			mutate: func(c *config.BridgeConfig, dir string) {
				c.Registry.Watch = true
			},
		},
		{
			name: "health schedule",
			mutate: func(c *config.BridgeConfig, dir string) {
				c.Supervisor.HealthCheckSchedule = "@every 30s"
			},
			wantHealth: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc := memoryConfig()
			if tt.mutate != nil {
				tt.mutate(bc, t.TempDir())
			}

			s, err := InitializeServices(&Config{BridgeConfig: bc})
			require.NoError(t, err)
			defer s.Close(context.Background())

			assert.NotNil(t, s.Store)
			assert.NotNil(t, s.Supervisor)
			assert.NotNil(t, s.Bridge)
			assert.NotNil(t, s.Server)
			assert.NotNil(t, s.Telemetry)
			assert.Equal(t, tt.wantWatcher, s.Watcher != nil)
			assert.Equal(t, tt.wantHealth, s.Health != nil)
		})
	}
}

func TestInitializeServices_BridgePrefix(t *testing.T) {
	bc := memoryConfig()
	bc.Bridge.ServerPrefix = "mcp:"

	s, err := InitializeServices(&Config{BridgeConfig: bc})
	require.NoError(t, err)
	defer s.Close(context.Background())

	name, ok := s.Bridge.ServerNameFromID("mcp:alpha")
	assert.True(t, ok)
	assert.Equal(t, "alpha", name)
}
