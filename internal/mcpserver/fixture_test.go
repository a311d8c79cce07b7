package mcpserver

import (
	"context"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// newFixtureServer builds the in-process MCP server used by the client tests.
func newFixtureServer() *server.MCPServer {
	s := server.NewMCPServer("fixture", "1.0.0", server.WithToolCapabilities(true))

	s.AddTool(mcp.NewTool("echo",
		mcp.WithDescription("Echo the given text"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to echo")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(req.GetString("text", "")), nil
	})

	s.AddTool(mcp.NewTool("getenv",
		mcp.WithDescription("Read an environment variable"),
		mcp.WithString("name", mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(os.Getenv(req.GetString("name", ""))), nil
	})

	s.AddTool(mcp.NewTool("fail",
		mcp.WithDescription("Always reports a tool error"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("boom"), nil
	})

	s.AddTool(mcp.NewTool("sleep",
		mcp.WithDescription("Blocks until cancelled"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Minute):
			return mcp.NewToolResultText("woke"), nil
		}
	})

	return s
}
