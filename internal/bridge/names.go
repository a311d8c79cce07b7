package bridge

import (
	"fmt"
	"sort"
	"sync"

	"mcpbridge/pkg/logging"
)

// PluginName returns the exported name of a server's tool.
func PluginName(serverName, toolName string) string {
	return serverName + "-" + toolName
}

type pluginTarget struct {
	serverName string
	toolName   string
}

// NameTracker maps exported plugin names back to the server and tool they
// were generated from. Plugin names are not reversible on their own because
// both server and tool names may contain '-'.
type NameTracker struct {
	mu      sync.RWMutex
	plugins map[string]pluginTarget
}

// NewNameTracker creates an empty tracker.
func NewNameTracker() *NameTracker {
	return &NameTracker{plugins: make(map[string]pluginTarget)}
}

// Track records the exported name for serverName's tool and returns it.
func (nt *NameTracker) Track(serverName, toolName string) string {
	exposed := PluginName(serverName, toolName)

	nt.mu.Lock()
	defer nt.mu.Unlock()

	if prev, ok := nt.plugins[exposed]; ok && prev.serverName != serverName {
		logging.Warn(subsystem, "Plugin name %s is exported by both %s and %s; %s wins",
			exposed, prev.serverName, serverName, serverName)
	}
	nt.plugins[exposed] = pluginTarget{serverName: serverName, toolName: toolName}
	return exposed
}

// Resolve resolves an exported name to its server and tool.
func (nt *NameTracker) Resolve(exposedName string) (serverName, toolName string, err error) {
	nt.mu.RLock()
	defer nt.mu.RUnlock()

	target, ok := nt.plugins[exposedName]
	if !ok {
		return "", "", fmt.Errorf("unknown plugin: %s", exposedName)
	}
	return target.serverName, target.toolName, nil
}

// Forget drops every name exported for serverName.
func (nt *NameTracker) Forget(serverName string) {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	for exposed, target := range nt.plugins {
		if target.serverName == serverName {
			delete(nt.plugins, exposed)
		}
	}
}

// Names returns every tracked exported name, sorted.
func (nt *NameTracker) Names() []string {
	nt.mu.RLock()
	defer nt.mu.RUnlock()

	names := make([]string, 0, len(nt.plugins))
	for exposed := range nt.plugins {
		names = append(names, exposed)
	}
	sort.Strings(names)
	return names
}
