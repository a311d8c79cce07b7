package mcpserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"mcpbridge/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// DefaultStdioInitTimeout is the default timeout for stdio client initialization.
// This covers the time needed to start the subprocess and complete the MCP handshake.
const DefaultStdioInitTimeout = 10 * time.Second

// DefaultStopGracePeriod is how long Close waits for a subprocess to exit on
// its own before killing it.
const DefaultStopGracePeriod = 5 * time.Second

// StdioClient implements the MCPClient interface using stdio transport.
// It manages a local subprocess that communicates via stdin/stdout.
type StdioClient struct {
	baseMCPClient
	command     string
	args        []string
	env         map[string]string
	gracePeriod time.Duration

	// cmd is set by the transport's command hook while Initialize holds mu.
	cmd *exec.Cmd

	stderrMu   sync.Mutex
	stderrTail string
}

// NewStdioClientWithEnv creates a new stdio-based MCP client with environment variables
func NewStdioClientWithEnv(command string, args []string, env map[string]string) *StdioClient {
	return &StdioClient{
		command:     command,
		args:        args,
		env:         env,
		gracePeriod: DefaultStopGracePeriod,
	}
}

// WithGracePeriod sets how long Close waits before killing the subprocess.
func (c *StdioClient) WithGracePeriod(d time.Duration) *StdioClient {
	if d > 0 {
		c.gracePeriod = d
	}
	return c
}

// Initialize starts the subprocess and performs the protocol handshake.
func (c *StdioClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	logging.Debug("StdioClient", "Creating stdio client for command: %s %v", c.command, c.args)

	mcpClient, err := client.NewStdioMCPClientWithOptions(c.command, envSlice(c.env), c.args,
		transport.WithCommandFunc(c.buildCommand))
	if err != nil {
		return fmt.Errorf("failed to create stdio client: %w", err)
	}

	if stderr, ok := client.GetStderr(mcpClient); ok {
		go c.pumpStderr(stderr)
	}

	logging.Debug("StdioClient", "Subprocess %d started, initializing MCP protocol for %s", c.pidLocked(), c.command)

	initCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, DefaultStdioInitTimeout)
		defer cancel()
	}

	initResult, err := mcpClient.Initialize(initCtx, initializeRequest())
	if err != nil {
		logging.Error("StdioClient", err, "Failed to initialize MCP protocol for %s", c.command)
		var proc *os.Process
		if c.cmd != nil {
			proc = c.cmd.Process
		}
		if closeErr := c.shutdown(mcpClient, proc); closeErr != nil {
			logging.Debug("StdioClient", "Error closing failed client for %s: %v", c.command, closeErr)
		}
		if tail := c.lastStderr(); tail != "" {
			return fmt.Errorf("failed to initialize MCP protocol: %w (stderr: %s)", err, tail)
		}
		return fmt.Errorf("failed to initialize MCP protocol: %w", err)
	}

	c.client = mcpClient
	c.connected = true

	logging.Debug("StdioClient", "MCP protocol initialized for %s. Server: %s, Version: %s",
		c.command, initResult.ServerInfo.Name, initResult.ServerInfo.Version)
	if initResult.Capabilities.Tools == nil {
		logging.Debug("StdioClient", "Server %s does not advertise tools", c.command)
	}

	return nil
}

// buildCommand constructs the subprocess. The child inherits the current
// environment with the descriptor's variables layered on top. The command is
// not bound to a context: its lifetime ends with Close.
func (c *StdioClient) buildCommand(_ context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
	cmd := exec.Command(command, args...)
	cmd.Env = append(os.Environ(), env...)
	c.cmd = cmd
	return cmd, nil
}

// Close closes the subprocess's stdin and waits for it to exit. A process
// that is still alive after the grace period is killed.
func (c *StdioClient) Close() error {
	mcpClient := c.detach()
	if mcpClient == nil {
		return nil
	}
	return c.shutdown(mcpClient, c.process())
}

func (c *StdioClient) shutdown(mcpClient client.MCPClient, proc *os.Process) error {
	done := make(chan error, 1)
	go func() { done <- mcpClient.Close() }()

	timer := time.NewTimer(c.gracePeriod)
	defer timer.Stop()

	select {
	case err := <-done:
		return ignoreExit(err)
	case <-timer.C:
	}

	if proc == nil {
		return fmt.Errorf("subprocess for %s did not stop within %v", c.command, c.gracePeriod)
	}

	logging.Warn("StdioClient", "Subprocess %d (%s) did not exit within %v, killing it", proc.Pid, c.command, c.gracePeriod)
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill subprocess %d: %w", proc.Pid, err)
	}

	select {
	case err := <-done:
		return ignoreExit(err)
	case <-time.After(c.gracePeriod):
		return fmt.Errorf("subprocess %d did not exit after kill", proc.Pid)
	}
}

// ignoreExit treats a non-zero exit status as a normal way for a server to
// end once its stdin is closed.
func ignoreExit(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// ListTools returns all available tools from the server
func (c *StdioClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return c.listTools(ctx)
}

// CallTool executes a specific tool and returns the result
func (c *StdioClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}

// Ping checks if the server is responsive
func (c *StdioClient) Ping(ctx context.Context) error {
	return c.ping(ctx)
}

// PID returns the subprocess id, or 0 before the process has started.
func (c *StdioClient) PID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pidLocked()
}

func (c *StdioClient) pidLocked() int {
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

func (c *StdioClient) process() *os.Process {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cmd == nil {
		return nil
	}
	return c.cmd.Process
}

// pumpStderr forwards the subprocess's stderr to the debug log and keeps the
// last non-empty line for error reporting.
func (c *StdioClient) pumpStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logging.Debug("StdioClient", "[%s stderr] %s", c.command, line)
		c.stderrMu.Lock()
		c.stderrTail = line
		c.stderrMu.Unlock()
	}
}

func (c *StdioClient) lastStderr() string {
	c.stderrMu.Lock()
	defer c.stderrMu.Unlock()
	return c.stderrTail
}

// envSlice renders env as sorted KEY=VALUE pairs.
func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
