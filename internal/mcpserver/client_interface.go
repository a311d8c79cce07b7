package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// ClientName is reported to servers during the initialize handshake.
const ClientName = "mcpbridge"

// ClientVersion is reported to servers during the initialize handshake.
const ClientVersion = "1.0.0"

// ErrNotConnected is returned by client operations before Initialize
// succeeds or after Close.
var ErrNotConnected = errors.New("client not connected")

// MCPClient defines the interface for MCP client implementations.
// All transport types (stdio, SSE, streamable-http) implement this interface,
// enabling polymorphic usage and easier testing with fakes.
type MCPClient interface {
	// Initialize establishes the connection and performs protocol handshake
	Initialize(ctx context.Context) error
	// Close cleanly shuts down the client connection
	Close() error
	// ListTools returns all available tools from the server
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	// CallTool executes a specific tool and returns the result
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
	// Ping checks if the server is responsive
	Ping(ctx context.Context) error
	// PID returns the subprocess id, or 0 when there is no local process
	PID() int
}

// Compile-time interface compliance checks
var (
	_ MCPClient = (*StdioClient)(nil)
	_ MCPClient = (*SSEClient)(nil)
	_ MCPClient = (*StreamableHTTPClient)(nil)
	_ MCPClient = (*NetworkClient)(nil)
)

// baseMCPClient provides common functionality for all MCP client implementations.
// It implements the shared MCP protocol operations that are identical across
// different transport types.
//
// Operations take a snapshot of the underlying client under the read lock and
// release it before talking to the server, so a slow tool call never blocks
// Close.
type baseMCPClient struct {
	client    client.MCPClient
	mu        sync.RWMutex
	connected bool
}

// current returns the connected client or ErrNotConnected.
func (b *baseMCPClient) current() (client.MCPClient, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.connected || b.client == nil {
		return nil, ErrNotConnected
	}
	return b.client, nil
}

// detach marks the client as disconnected and returns the previous handle,
// or nil when it was not connected.
func (b *baseMCPClient) detach() client.MCPClient {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected || b.client == nil {
		return nil
	}
	c := b.client
	b.connected = false
	b.client = nil
	return c
}

// closeClient performs the common close logic
func (b *baseMCPClient) closeClient() error {
	c := b.detach()
	if c == nil {
		return nil
	}
	return c.Close()
}

// listTools returns all available tools from the server
func (b *baseMCPClient) listTools(ctx context.Context) ([]mcp.Tool, error) {
	c, err := b.current()
	if err != nil {
		return nil, err
	}

	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	return result.Tools, nil
}

// callTool executes a specific tool and returns the result
func (b *baseMCPClient) callTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	c, err := b.current()
	if err != nil {
		return nil, err
	}

	result, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call tool: %w", err)
	}

	return result, nil
}

// ping checks if the server is responsive
func (b *baseMCPClient) ping(ctx context.Context) error {
	c, err := b.current()
	if err != nil {
		return err
	}
	return c.Ping(ctx)
}

func initializeRequest() mcp.InitializeRequest {
	return mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    ClientName,
				Version: ClientVersion,
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}
}
