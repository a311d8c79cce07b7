// Package mcpserver provides the Model Context Protocol clients used to talk to
// tool-provider servers.
//
// # Transports
//
// Two descriptor shapes are supported:
//
//   - stdio: the server is a local subprocess (command, args, env). The child
//     inherits the bridge's environment with the descriptor's env layered on
//     top. Closing the client closes the child's stdin and, if the child has
//     not exited within the configured grace period, kills it.
//   - network: the server is reached over HTTP. Streamable HTTP is tried
//     first; when the handshake fails the client falls back to the legacy
//     SSE transport.
//
// # Client Interface
//
// All transports implement MCPClient:
//
//	type MCPClient interface {
//	    Initialize(ctx context.Context) error
//	    Close() error
//	    ListTools(ctx context.Context) ([]mcp.Tool, error)
//	    CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
//	    Ping(ctx context.Context) error
//	    PID() int
//	}
//
// NewClient picks the implementation for a descriptor. Callers that need to
// substitute clients in tests accept a Factory instead of calling NewClient
// directly.
//
// # Tool Catalogs
//
// ToolDescriptors converts an MCP tool listing into the JSON-friendly
// api.ToolDescriptor form, keeping each tool's input schema as a plain
// object. ResultText extracts the human readable text of a tool result.
package mcpserver
