package api

import (
	"encoding/json"
	"time"
)

// TransportType identifies how a tool server is reached.
type TransportType string

const (
	// TransportStdio spawns a subprocess and speaks MCP over its stdin/stdout.
	TransportStdio TransportType = "stdio"
	// TransportNetwork opens an HTTP session to a remote MCP endpoint.
	TransportNetwork TransportType = "network"
)

// ServerDescriptor describes how to launch or reach one tool server.
//
// A descriptor is either a stdio descriptor (Command, Args, Env) or a
// network descriptor (URL). Validation guarantees exactly one variant is set.
type ServerDescriptor struct {
	// Command is the executable for stdio servers.
	Command string `json:"command,omitempty" yaml:"command,omitempty"`
	// Args are passed to Command verbatim.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
	// Env is merged over the bridge's own environment when spawning.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// URL is the MCP endpoint of a network server.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Transport reports which variant the descriptor represents. Only a
// descriptor with a URL and no command is a network server; an empty command
// is still stdio.
func (d ServerDescriptor) Transport() TransportType {
	if d.Command == "" && d.URL != "" {
		return TransportNetwork
	}
	return TransportStdio
}

// Clone returns a deep copy so callers cannot mutate stored descriptors.
func (d ServerDescriptor) Clone() ServerDescriptor {
	c := ServerDescriptor{Command: d.Command, URL: d.URL}
	if d.Args != nil {
		c.Args = append([]string(nil), d.Args...)
	}
	if d.Env != nil {
		c.Env = make(map[string]string, len(d.Env))
		for k, v := range d.Env {
			c.Env[k] = v
		}
	}
	return c
}

// ServerConfig is one persisted registry entry.
type ServerConfig struct {
	Name       string           `json:"name"`
	Descriptor ServerDescriptor `json:"config"`
}

// ToolDescriptor is one entry of a server's tool catalog.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// LoadStatus is the outcome of the most recent boot attempt for a server.
type LoadStatus string

const (
	LoadStatusOK     LoadStatus = "ok"
	LoadStatusFailed LoadStatus = "failed"
)

// LoadingResult records the outcome of a boot attempt.
type LoadingResult struct {
	Status  LoadStatus `json:"status"`
	Message string     `json:"message"`
}

// Failed reports whether the attempt failed.
func (r LoadingResult) Failed() bool {
	return r.Status == LoadStatusFailed
}

// ProcessInfo identifies the subprocess behind a stdio server.
type ProcessInfo struct {
	PID int `json:"pid"`
}

// RuntimeInfo is a read-only snapshot of a live runtime.
type RuntimeInfo struct {
	Name       string
	Transport  TransportType
	Generation string
	StartedAt  time.Time
	// Process is nil for network sessions.
	Process *ProcessInfo
}

// ServerStatus is the merged view returned by list and force-reload.
//
// Error is null for healthy and never-attempted servers. Process is omitted
// entirely for network sessions and for servers without a live subprocess.
type ServerStatus struct {
	Name    string           `json:"name"`
	Config  ServerDescriptor `json:"config"`
	Running bool             `json:"running"`
	Tools   []ToolDescriptor `json:"tools"`
	Error   *string          `json:"error"`
	Process *ProcessInfo     `json:"process,omitempty"`
}

// MarshalJSON keeps Tools an array even when the catalog is empty.
func (s ServerStatus) MarshalJSON() ([]byte, error) {
	type alias ServerStatus
	if s.Tools == nil {
		s.Tools = []ToolDescriptor{}
	}
	return json.Marshal(alias(s))
}

// Plugin is an exported agent capability. It is plain data; invocation goes
// through the bridge using ServerName and ToolName.
type Plugin struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ServerName  string         `json:"serverName"`
	ToolName    string         `json:"toolName"`
	Parameters  map[string]any `json:"parameters"`
}

// ParsedServer is the output of the command/config parser.
type ParsedServer struct {
	Name string `json:"name"`
	// Descriptor is the raw, not yet validated, descriptor object.
	Descriptor map[string]any `json:"serverConfig"`
}
