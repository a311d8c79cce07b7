package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mcpbridge/internal/api"
	"mcpbridge/internal/mcpserver"
	"mcpbridge/internal/services"
	"mcpbridge/pkg/logging"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// Default per-operation bounds, used when Options leaves a field zero.
const (
	DefaultStartTimeout     = 10 * time.Second
	DefaultPingTimeout      = 3 * time.Second
	DefaultListToolsTimeout = 5 * time.Second
	DefaultCallToolTimeout  = 60 * time.Second
)

// Options configures a Service.
type Options struct {
	StartTimeout     time.Duration
	PingTimeout      time.Duration
	ListToolsTimeout time.Duration
	CallToolTimeout  time.Duration
	StopGracePeriod  time.Duration

	// Factory builds the MCP client. Defaults to mcpserver.NewClient.
	Factory mcpserver.Factory
}

func (o Options) withDefaults() Options {
	if o.StartTimeout <= 0 {
		o.StartTimeout = DefaultStartTimeout
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = DefaultPingTimeout
	}
	if o.ListToolsTimeout <= 0 {
		o.ListToolsTimeout = DefaultListToolsTimeout
	}
	if o.CallToolTimeout <= 0 {
		o.CallToolTimeout = DefaultCallToolTimeout
	}
	if o.StopGracePeriod <= 0 {
		o.StopGracePeriod = mcpserver.DefaultStopGracePeriod
	}
	if o.Factory == nil {
		o.Factory = mcpserver.NewClient
	}
	return o
}

// Service is one boot of one MCP server: it owns the client handle and the
// tool catalog fetched through it. A Service is started at most once; a
// restart builds a new Service, so a cached catalog never outlives the
// process or session it came from.
type Service struct {
	*services.BaseService
	descriptor api.ServerDescriptor
	opts       Options
	generation string

	clientMu  sync.Mutex // Protects client and startedAt
	client    mcpserver.MCPClient
	startedAt time.Time

	toolsMu     sync.Mutex
	tools       []api.ToolDescriptor
	toolsLoaded bool
}

// NewService creates a new MCP server service
func NewService(name string, descriptor api.ServerDescriptor, opts Options) *Service {
	return &Service{
		BaseService: services.NewBaseService(name, services.TypeMCPServer),
		descriptor:  descriptor.Clone(),
		opts:        opts.withDefaults(),
		generation:  uuid.NewString(),
	}
}

// Generation identifies this boot. It changes on every restart.
func (s *Service) Generation() string {
	return s.generation
}

// Descriptor returns a copy of the descriptor the service was started from.
func (s *Service) Descriptor() api.ServerDescriptor {
	return s.descriptor.Clone()
}

// Start creates the client and performs the MCP handshake within the start
// timeout. Failures are ProcessStartError values.
func (s *Service) Start(ctx context.Context) error {
	if s.GetState() != services.StateUnknown {
		return fmt.Errorf("service %s was already started", s.GetName())
	}

	s.UpdateState(services.StateStarting, services.HealthUnknown, nil)
	s.LogDebug("Starting MCP server (%s transport, generation %s)", s.descriptor.Transport(), s.generation)

	if err := s.createAndInitializeClient(ctx); err != nil {
		s.UpdateState(services.StateFailed, services.HealthUnhealthy, err)
		s.LogError(err, "Failed to start MCP server")
		return api.NewProcessStartError(s.GetName(), err)
	}

	s.UpdateState(services.StateRunning, services.HealthHealthy, nil)
	if pid := s.PID(); pid > 0 {
		s.LogInfo("MCP server started (pid %d)", pid)
	} else {
		s.LogInfo("MCP server connected")
	}
	return nil
}

func (s *Service) createAndInitializeClient(ctx context.Context) error {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()

	client, err := s.opts.Factory(s.descriptor, mcpserver.ClientOptions{
		StopGracePeriod: s.opts.StopGracePeriod,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP client: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, s.opts.StartTimeout)
	defer cancel()

	if err := client.Initialize(initCtx); err != nil {
		_ = client.Close()
		if ctx.Err() != nil {
			return fmt.Errorf("start cancelled by caller: %w", ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) || initCtx.Err() != nil {
			return fmt.Errorf("initialize did not complete within %v: %w", s.opts.StartTimeout, err)
		}
		return err
	}

	s.client = client
	s.startedAt = time.Now()
	return nil
}

// Stop closes the client; for stdio servers this ends the subprocess,
// killing it if it outlives the grace period.
func (s *Service) Stop(ctx context.Context) error {
	s.clientMu.Lock()
	client := s.client
	s.client = nil
	s.clientMu.Unlock()

	if client == nil {
		s.UpdateState(services.StateStopped, services.HealthUnknown, nil)
		return nil
	}

	s.UpdateState(services.StateStopping, s.GetHealth(), nil)
	s.LogDebug("Stopping MCP server")

	done := make(chan error, 1)
	go func() { done <- client.Close() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		s.LogWarn("Error during client cleanup: %v", err)
	}
	s.UpdateState(services.StateStopped, services.HealthUnknown, nil)
	s.LogInfo("MCP server stopped")
	return err
}

func (s *Service) currentClient() (mcpserver.MCPClient, error) {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	if s.client == nil {
		return nil, api.NewNotRunningError(s.GetName())
	}
	return s.client, nil
}

// Ping checks liveness within the ping timeout. A failed ping marks the
// service unhealthy but does not stop it.
func (s *Service) Ping(ctx context.Context) error {
	client, err := s.currentClient()
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.opts.PingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx); err != nil {
		s.UpdateHealth(services.HealthUnhealthy)
		if pingCtx.Err() != nil && ctx.Err() == nil {
			return api.NewProcessTimeoutError(s.GetName(), "ping", err)
		}
		return fmt.Errorf("MCP ping failed: %w", err)
	}

	s.UpdateHealth(services.HealthHealthy)
	return nil
}

// ListTools returns the tool catalog, fetching it on first use or when
// refresh is set.
func (s *Service) ListTools(ctx context.Context, refresh bool) ([]api.ToolDescriptor, error) {
	s.toolsMu.Lock()
	defer s.toolsMu.Unlock()

	if s.toolsLoaded && !refresh {
		return cloneTools(s.tools), nil
	}

	client, err := s.currentClient()
	if err != nil {
		return nil, err
	}

	listCtx, cancel := context.WithTimeout(ctx, s.opts.ListToolsTimeout)
	defer cancel()

	tools, err := client.ListTools(listCtx)
	if err != nil {
		if listCtx.Err() != nil && ctx.Err() == nil {
			return nil, api.NewProcessTimeoutError(s.GetName(), "list tools", err)
		}
		return nil, fmt.Errorf("failed to list tools of %s: %w", s.GetName(), err)
	}

	s.tools = mcpserver.ToolDescriptors(tools)
	s.toolsLoaded = true
	s.LogDebug("Cached %d tools", len(s.tools))
	return cloneTools(s.tools), nil
}

// CallTool invokes a tool, bounded by the call timeout layered on ctx. A
// result flagged isError becomes a ToolExecutionError carrying its text.
func (s *Service) CallTool(ctx context.Context, tool string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	client, err := s.currentClient()
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallToolTimeout)
	defer cancel()

	result, err := client.CallTool(callCtx, tool, args)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, api.NewProcessTimeoutError(s.GetName(), "call to "+tool, err)
		}
		return nil, api.NewToolExecutionError(s.GetName(), err.Error(), err)
	}
	if result.IsError {
		return result, api.NewToolExecutionError(s.GetName(), mcpserver.ResultText(result), nil)
	}
	return result, nil
}

// PID returns the subprocess id of a running stdio server, else 0.
func (s *Service) PID() int {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	if s.client == nil {
		return 0
	}
	return s.client.PID()
}

// Runtime returns a snapshot of the live runtime.
func (s *Service) Runtime() api.RuntimeInfo {
	s.clientMu.Lock()
	startedAt := s.startedAt
	s.clientMu.Unlock()

	info := api.RuntimeInfo{
		Name:       s.GetName(),
		Transport:  s.descriptor.Transport(),
		Generation: s.generation,
		StartedAt:  startedAt,
	}
	if pid := s.PID(); pid > 0 {
		info.Process = &api.ProcessInfo{PID: pid}
	}
	return info
}

func cloneTools(in []api.ToolDescriptor) []api.ToolDescriptor {
	out := make([]api.ToolDescriptor, len(in))
	copy(out, in)
	return out
}

// GetLogContext returns the logging context for this service
func (s *Service) GetLogContext() string {
	return fmt.Sprintf("MCPServer-%s", s.GetName())
}

// LogInfo logs an info message with service context
func (s *Service) LogInfo(format string, args ...interface{}) {
	logging.Info(s.GetLogContext(), format, args...)
}

// LogDebug logs a debug message with service context
func (s *Service) LogDebug(format string, args ...interface{}) {
	logging.Debug(s.GetLogContext(), format, args...)
}

// LogError logs an error message with service context
func (s *Service) LogError(err error, format string, args ...interface{}) {
	logging.Error(s.GetLogContext(), err, format, args...)
}

// LogWarn logs a warning message with service context
func (s *Service) LogWarn(format string, args ...interface{}) {
	logging.Warn(s.GetLogContext(), format, args...)
}
