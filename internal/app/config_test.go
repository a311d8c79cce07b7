package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/tmp/cfg", "debug", "1.2.3")

	assert.Equal(t, "/tmp/cfg", cfg.ConfigDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Nil(t, cfg.BridgeConfig)
}
