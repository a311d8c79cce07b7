// Package mcpservertest provides in-memory MCP clients for tests of the
// packages that drive mcpserver clients.
package mcpservertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mcpbridge/internal/api"
	"mcpbridge/internal/mcpserver"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolFunc handles a call to a fake tool.
type ToolFunc func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error)

// Server scripts the behavior of every client connected to it.
type Server struct {
	mu        sync.Mutex
	tools     []mcp.Tool
	handlers  map[string]ToolFunc
	initErr   error
	initDelay time.Duration
	pingErr   error
	pingHang  bool
	pid       int

	starts    int
	live      int
	listCalls int
}

// NewServer returns a fake server with no tools.
func NewServer() *Server {
	return &Server{handlers: make(map[string]ToolFunc)}
}

// WithTool registers a tool taking a single string argument "input".
func (s *Server) WithTool(name, description string, fn ToolFunc) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = append(s.tools, mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString("input", mcp.Description("Tool input")),
	))
	s.handlers[name] = fn
	return s
}

// FailInit makes every handshake fail with err.
func (s *Server) FailInit(err error) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initErr = err
	return s
}

// SlowInit delays every handshake by d, or until its context ends.
func (s *Server) SlowInit(d time.Duration) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initDelay = d
	return s
}

// SetPingError makes pings fail with err; nil restores them.
func (s *Server) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

// HangPings makes pings block until their context ends.
func (s *Server) HangPings(hang bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingHang = hang
}

// Starts counts successful handshakes.
func (s *Server) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

// Live counts connected clients.
func (s *Server) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// ListCalls counts tools/list requests.
func (s *Server) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

// Factory hands out clients for registered fake servers, keyed by the
// descriptor's command or URL.
type Factory struct {
	mu      sync.Mutex
	servers map[string]*Server
	nextPID int
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{servers: make(map[string]*Server), nextPID: 4000}
}

// Add registers srv under key and returns it.
func (f *Factory) Add(key string, srv *Server) *Server {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servers[key] = srv
	return srv
}

// New implements mcpserver.Factory.
func (f *Factory) New(desc api.ServerDescriptor, _ mcpserver.ClientOptions) (mcpserver.MCPClient, error) {
	key := desc.URL
	if desc.Transport() == api.TransportStdio {
		key = desc.Command
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	srv, ok := f.servers[key]
	if !ok {
		return nil, fmt.Errorf("exec: %q: executable file not found in $PATH", key)
	}
	c := &Client{srv: srv}
	if desc.Transport() == api.TransportStdio {
		f.nextPID++
		c.pid = f.nextPID
	}
	return c, nil
}

// Client is a fake mcpserver.MCPClient.
type Client struct {
	srv *Server
	pid int

	mu        sync.Mutex
	connected bool
}

// Initialize performs the scripted handshake.
func (c *Client) Initialize(ctx context.Context) error {
	c.srv.mu.Lock()
	delay, initErr := c.srv.initDelay, c.srv.initErr
	c.srv.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if initErr != nil {
		return initErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	c.connected = true

	c.srv.mu.Lock()
	c.srv.starts++
	c.srv.live++
	c.srv.mu.Unlock()
	return nil
}

// Close disconnects the client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false

	c.srv.mu.Lock()
	c.srv.live--
	c.srv.mu.Unlock()
	return nil
}

func (c *Client) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return mcpserver.ErrNotConnected
	}
	return nil
}

// ListTools returns the server's tools.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	c.srv.listCalls++
	return append([]mcp.Tool(nil), c.srv.tools...), nil
}

// CallTool runs the registered handler.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	c.srv.mu.Lock()
	fn, ok := c.srv.handlers[name]
	c.srv.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("tool %s not found", name)
	}
	return fn(ctx, args)
}

// Ping answers according to the server's script.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.check(); err != nil {
		return err
	}
	c.srv.mu.Lock()
	pingErr, hang := c.srv.pingErr, c.srv.pingHang
	c.srv.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return pingErr
}

// PID returns the fake process id for stdio descriptors while connected.
func (c *Client) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return 0
	}
	return c.pid
}

// Text is a ToolFunc that always returns text.
func Text(text string) ToolFunc {
	return func(context.Context, map[string]interface{}) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(text), nil
	}
}

// Echo is a ToolFunc that returns its "input" argument.
func Echo() ToolFunc {
	return func(_ context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(fmt.Sprint(args["input"])), nil
	}
}

// ToolError is a ToolFunc that reports an isError result.
func ToolError(text string) ToolFunc {
	return func(context.Context, map[string]interface{}) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError(text), nil
	}
}

// Block is a ToolFunc that waits for its context to end.
func Block() ToolFunc {
	return func(ctx context.Context, _ map[string]interface{}) (*mcp.CallToolResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}
