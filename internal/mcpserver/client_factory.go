package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mcpbridge/internal/api"
	"mcpbridge/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
)

// ClientOptions tunes the clients built by NewClient.
type ClientOptions struct {
	// StopGracePeriod is how long a stdio subprocess may take to exit after
	// its stdin is closed before it is killed.
	StopGracePeriod time.Duration
	// RequestTimeout bounds individual HTTP requests of network sessions.
	// Zero leaves requests bounded only by their context.
	RequestTimeout time.Duration
	// Headers are sent with every request of a network session.
	Headers map[string]string
}

// Factory builds an uninitialized client for a descriptor. The supervisor
// accepts a Factory so tests can substitute fakes.
type Factory func(desc api.ServerDescriptor, opts ClientOptions) (MCPClient, error)

// NewClient creates the appropriate MCP client for a descriptor: a
// StdioClient when it names a command, a NetworkClient when it names a URL.
func NewClient(desc api.ServerDescriptor, opts ClientOptions) (MCPClient, error) {
	switch desc.Transport() {
	case api.TransportStdio:
		if desc.Command == "" {
			return nil, fmt.Errorf("command is required for stdio servers")
		}
		return NewStdioClientWithEnv(desc.Command, desc.Args, desc.Env).
			WithGracePeriod(opts.StopGracePeriod), nil

	case api.TransportNetwork:
		if desc.URL == "" {
			return nil, fmt.Errorf("url is required for network servers")
		}
		return NewNetworkClient(desc.URL, opts), nil

	default:
		return nil, fmt.Errorf("unsupported MCP server transport: %s (supported: %s, %s)",
			desc.Transport(), api.TransportStdio, api.TransportNetwork)
	}
}

// NetworkClient connects to a URL with the streamable HTTP transport and
// falls back to the legacy SSE transport when that handshake fails.
type NetworkClient struct {
	url  string
	opts ClientOptions

	mu     sync.RWMutex
	active MCPClient
}

// NewNetworkClient creates a client for a remote MCP server.
func NewNetworkClient(url string, opts ClientOptions) *NetworkClient {
	return &NetworkClient{url: url, opts: opts}
}

// Initialize tries streamable HTTP, then SSE, within the same context.
func (c *NetworkClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil
	}

	streamable := NewStreamableHTTPClientWithHeaders(c.url, c.opts.Headers).WithTimeout(c.opts.RequestTimeout)
	streamErr := streamable.Initialize(ctx)
	if streamErr == nil {
		c.active = streamable
		return nil
	}
	if ctx.Err() != nil {
		return streamErr
	}

	logging.Debug("NetworkClient", "StreamableHTTP handshake with %s failed (%v), falling back to SSE", c.url, streamErr)

	sse := NewSSEClientWithHeaders(c.url, c.opts.Headers)
	if sseErr := sse.Initialize(ctx); sseErr != nil {
		return errors.Join(streamErr, sseErr)
	}
	c.active = sse
	return nil
}

// Transport names the transport in use, or "" before Initialize succeeds.
func (c *NetworkClient) Transport() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.active.(type) {
	case *StreamableHTTPClient:
		return "streamable-http"
	case *SSEClient:
		return "sse"
	default:
		return ""
	}
}

func (c *NetworkClient) get() (MCPClient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return nil, ErrNotConnected
	}
	return c.active, nil
}

// Close cleanly shuts down the client connection
func (c *NetworkClient) Close() error {
	c.mu.Lock()
	active := c.active
	c.active = nil
	c.mu.Unlock()

	if active == nil {
		return nil
	}
	return active.Close()
}

// ListTools returns all available tools from the server
func (c *NetworkClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	active, err := c.get()
	if err != nil {
		return nil, err
	}
	return active.ListTools(ctx)
}

// CallTool executes a specific tool and returns the result
func (c *NetworkClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	active, err := c.get()
	if err != nil {
		return nil, err
	}
	return active.CallTool(ctx, name, args)
}

// Ping checks if the server is responsive
func (c *NetworkClient) Ping(ctx context.Context) error {
	active, err := c.get()
	if err != nil {
		return err
	}
	return active.Ping(ctx)
}

// PID always returns 0; network sessions have no local process.
func (c *NetworkClient) PID() int { return 0 }
