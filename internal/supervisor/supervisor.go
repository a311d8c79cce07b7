package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"mcpbridge/internal/api"
	"mcpbridge/internal/config"
	"mcpbridge/internal/mcpserver"
	"mcpbridge/internal/services"
	mcpsvc "mcpbridge/internal/services/mcpserver"
	"mcpbridge/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const subsystem = "Supervisor"

// Options configures a Supervisor.
type Options struct {
	StartTimeout     time.Duration
	PingTimeout      time.Duration
	ListToolsTimeout time.Duration
	CallToolTimeout  time.Duration
	StopGracePeriod  time.Duration
	// BootConcurrency bounds how many servers BootAll starts at once.
	BootConcurrency int

	// Factory builds MCP clients. Defaults to mcpserver.NewClient.
	Factory mcpserver.Factory
	// Observer receives lifecycle and call events. Defaults to a no-op.
	Observer Observer
}

// OptionsFromConfig maps the supervisor section of the app config.
func OptionsFromConfig(cfg config.SupervisorConfig) Options {
	return Options{
		StartTimeout:     cfg.StartTimeout,
		PingTimeout:      cfg.PingTimeout,
		ListToolsTimeout: cfg.ListToolsTimeout,
		CallToolTimeout:  cfg.CallToolTimeout,
		StopGracePeriod:  cfg.StopGracePeriod,
		BootConcurrency:  cfg.BootConcurrency,
	}
}

// Supervisor owns the runtime of every configured server: at most one live
// client per name, the outcome of the latest boot attempt per name, and the
// per-name serialization that keeps concurrent starts from spawning
// duplicates.
type Supervisor struct {
	store    config.Store
	opts     Options
	observer Observer

	runtimes *services.Registry[*mcpsvc.Service]

	mu      sync.RWMutex
	results map[string]api.LoadingResult

	locks  *keyedMutex
	boot   singleflight.Group
	booted atomic.Bool
}

// New creates a Supervisor reading configuration from store.
func New(store config.Store, opts Options) *Supervisor {
	if opts.BootConcurrency < 1 {
		opts.BootConcurrency = config.DefaultBootConcurrency
	}
	observer := opts.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	return &Supervisor{
		store:    store,
		opts:     opts,
		observer: observer,
		runtimes: services.NewRegistry[*mcpsvc.Service](),
		results:  make(map[string]api.LoadingResult),
		locks:    newKeyedMutex(),
	}
}

func (s *Supervisor) serviceOptions() mcpsvc.Options {
	return mcpsvc.Options{
		StartTimeout:     s.opts.StartTimeout,
		PingTimeout:      s.opts.PingTimeout,
		ListToolsTimeout: s.opts.ListToolsTimeout,
		CallToolTimeout:  s.opts.CallToolTimeout,
		StopGracePeriod:  s.opts.StopGracePeriod,
		Factory:          s.opts.Factory,
	}
}

// BootAll starts every configured server that has neither a live runtime
// nor a recorded attempt. Boots run concurrently up to BootConcurrency; a
// failing server is recorded and never aborts the others. Concurrent
// callers share a single pass. Only a failure to read the registry is
// returned.
//
// The pass outlives the caller that triggered it: it runs on a context
// detached from ctx's cancellation, and every start is bounded by
// StartTimeout instead.
func (s *Supervisor) BootAll(ctx context.Context) error {
	passCtx := context.WithoutCancel(ctx)
	_, err, shared := s.boot.Do("boot", func() (interface{}, error) {
		return nil, s.bootAll(passCtx)
	})
	if shared {
		logging.Debug(subsystem, "Joined in-flight boot pass")
	}
	return err
}

func (s *Supervisor) bootAll(ctx context.Context) error {
	configs, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to read server registry: %w", err)
	}

	var pending []string
	for _, cfg := range configs {
		if _, live := s.runtimes.Get(cfg.Name); live {
			continue
		}
		if _, attempted := s.LoadingResult(cfg.Name); attempted {
			continue
		}
		pending = append(pending, cfg.Name)
	}

	if len(pending) == 0 {
		logging.Debug(subsystem, "Boot pass: nothing to start (%d configured)", len(configs))
		return nil
	}

	logging.Info(subsystem, "Booting %d of %d configured MCP servers", len(pending), len(configs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BootConcurrency)

	var failed atomic.Int32
	for _, name := range pending {
		g.Go(func() error {
			if err := s.Start(gctx, name); err != nil {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	logging.Info(subsystem, "Boot pass finished: %d started, %d failed", len(pending)-int(failed.Load()), failed.Load())
	return nil
}

// EnsureBooted runs BootAll once per process lifetime.
func (s *Supervisor) EnsureBooted(ctx context.Context) error {
	if s.booted.Load() {
		return nil
	}
	if err := s.BootAll(ctx); err != nil {
		return err
	}
	s.booted.Store(true)
	return nil
}

// Reload forgets the recorded attempt of every server without a live
// runtime, failed and stopped alike, and boots again.
func (s *Supervisor) Reload(ctx context.Context) error {
	s.mu.Lock()
	cleared := 0
	for name := range s.results {
		if _, live := s.runtimes.Get(name); live {
			continue
		}
		delete(s.results, name)
		cleared++
	}
	s.mu.Unlock()

	logging.Info(subsystem, "Reloading MCP servers (%d results cleared)", cleared)
	err := s.BootAll(ctx)
	if err == nil {
		s.booted.Store(true)
	}
	return err
}

// Start brings up one server from its stored descriptor. A live runtime
// that answers ping makes Start a no-op; a dead one is torn down and
// replaced. The outcome is recorded as the server's loading result.
func (s *Supervisor) Start(ctx context.Context, name string) error {
	unlock := s.locks.Lock(name)
	defer unlock()

	cfg, ok, err := s.store.Get(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return api.NewNotFoundError(name)
	}

	if existing, live := s.runtimes.Get(name); live {
		if existing.Ping(ctx) == nil {
			logging.Debug(subsystem, "MCP server %s already running", name)
			return nil
		}
		logging.Warn(subsystem, "MCP server %s stopped responding, restarting it", name)
		s.runtimes.Unregister(name)
		s.stopService(ctx, existing, "replaced")
	}

	svc := mcpsvc.NewService(name, cfg.Descriptor, s.serviceOptions())
	svc.SetStateChangeCallback(s.stateChanged(cfg.Descriptor.Transport()))
	began := time.Now()
	err = svc.Start(ctx)
	s.observer.ObserveStart(StartObservation{
		Server:    name,
		Transport: cfg.Descriptor.Transport(),
		Duration:  time.Since(began),
		Success:   err == nil,
		ErrorKind: errorKind(err),
	})
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled by the caller: keep the previous result.
			logging.Debug(subsystem, "Start of %s abandoned by caller: %v", name, ctx.Err())
			return err
		}
		s.setResult(name, api.LoadingResult{Status: api.LoadStatusFailed, Message: err.Error()})
		return err
	}

	if err := s.runtimes.Register(svc); err != nil {
		_ = svc.Stop(ctx)
		return api.NewInternalError(err)
	}
	s.setResult(name, api.LoadingResult{Status: api.LoadStatusOK})
	return nil
}

// stateChanged returns the callback attached to every runtime. It logs the
// transition and forwards it to the observer.
func (s *Supervisor) stateChanged(transport api.TransportType) services.StateChangeCallback {
	return func(name string, oldState, newState services.ServiceState, health services.HealthStatus, err error) {
		switch {
		case newState == services.StateFailed:
			logging.Warn(subsystem, "MCP server %s: %s -> %s: %v", name, oldState, newState, err)
		case oldState == newState:
			logging.Debug(subsystem, "MCP server %s health is now %s", name, health)
		default:
			logging.Debug(subsystem, "MCP server %s: %s -> %s", name, oldState, newState)
		}
		s.observer.ObserveState(StateObservation{
			Server:    name,
			Transport: transport,
			From:      oldState,
			To:        newState,
			Health:    health,
		})
	}
}

// Stop closes a server's runtime and removes it. Stdio servers that do not
// exit within the grace period are killed. The loading result is kept, so a
// stopped server is not restarted by the next BootAll, only by Reload.
func (s *Supervisor) Stop(ctx context.Context, name string) error {
	unlock := s.locks.Lock(name)
	defer unlock()

	svc, ok := s.runtimes.Unregister(name)
	if !ok {
		return api.NewNotRunningError(name)
	}
	s.stopService(ctx, svc, "stop")
	return nil
}

func (s *Supervisor) stopService(ctx context.Context, svc *mcpsvc.Service, reason string) {
	if err := svc.Stop(ctx); err != nil {
		logging.Warn(subsystem, "Error stopping MCP server %s: %v", svc.GetName(), err)
	}
	s.observer.ObserveStop(StopObservation{
		Server:    svc.GetName(),
		Transport: svc.Descriptor().Transport(),
		Reason:    reason,
	})
}

// Ping reports whether a server has a runtime that answers within the ping
// timeout.
func (s *Supervisor) Ping(ctx context.Context, name string) bool {
	svc, ok := s.runtimes.Get(name)
	if !ok {
		return false
	}

	began := time.Now()
	err := svc.Ping(ctx)
	s.observer.ObserveHealth(HealthObservation{
		Server:    name,
		Healthy:   err == nil,
		Duration:  time.Since(began),
		ErrorKind: errorKind(err),
	})
	if err != nil {
		logging.Debug(subsystem, "Ping of %s failed: %v", name, err)
		return false
	}
	return true
}

// ListTools returns a server's tool catalog, cached for the lifetime of the
// current runtime unless refresh is set.
func (s *Supervisor) ListTools(ctx context.Context, name string, refresh bool) ([]api.ToolDescriptor, error) {
	svc, ok := s.runtimes.Get(name)
	if !ok {
		return nil, api.NewNotRunningError(name)
	}
	return svc.ListTools(ctx, refresh)
}

// CallTool invokes tool on a running server. Cancelling ctx cancels the
// request on the server side.
func (s *Supervisor) CallTool(ctx context.Context, name, tool string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	svc, ok := s.runtimes.Get(name)
	if !ok {
		return nil, api.NewNotRunningError(name)
	}

	began := time.Now()
	result, err := svc.CallTool(ctx, tool, args)
	s.observer.ObserveCall(CallObservation{
		Server:    name,
		Tool:      tool,
		Transport: svc.Descriptor().Transport(),
		Duration:  time.Since(began),
		Success:   err == nil,
		ErrorKind: errorKind(err),
	})
	return result, err
}

// Prune stops and forgets everything known about a server without touching
// the registry.
func (s *Supervisor) Prune(ctx context.Context, name string) {
	unlock := s.locks.Lock(name)
	defer unlock()

	if svc, ok := s.runtimes.Unregister(name); ok {
		s.stopService(ctx, svc, "prune")
	}
	s.mu.Lock()
	delete(s.results, name)
	s.mu.Unlock()
}

// Reconcile prunes runtimes and loading results whose configuration is no
// longer in the registry, and returns the pruned names.
func (s *Supervisor) Reconcile(ctx context.Context) ([]string, error) {
	configs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read server registry: %w", err)
	}
	configured := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		configured[cfg.Name] = true
	}

	var stale []string
	for _, name := range s.KnownNames() {
		if !configured[name] {
			stale = append(stale, name)
		}
	}
	for _, name := range stale {
		logging.Info(subsystem, "MCP server %s is no longer configured, pruning it", name)
		s.Prune(ctx, name)
	}
	return stale, nil
}

// CheckHealth pings every runtime. A runtime that fails is stopped, removed,
// and recorded as failed; it is retried by the next Reload.
func (s *Supervisor) CheckHealth(ctx context.Context) []string {
	all := s.runtimes.GetAll()

	var (
		mu        sync.Mutex
		unhealthy []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BootConcurrency)
	for _, svc := range all {
		g.Go(func() error {
			began := time.Now()
			err := svc.Ping(gctx)
			s.observer.ObserveHealth(HealthObservation{
				Server:    svc.GetName(),
				Healthy:   err == nil,
				Duration:  time.Since(began),
				ErrorKind: errorKind(err),
			})
			if err == nil {
				return nil
			}
			if s.evict(gctx, svc, err) {
				mu.Lock()
				unhealthy = append(unhealthy, svc.GetName())
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return unhealthy
}

// evict removes svc if it is still the registered runtime for its name.
func (s *Supervisor) evict(ctx context.Context, svc *mcpsvc.Service, cause error) bool {
	name := svc.GetName()
	unlock := s.locks.Lock(name)
	defer unlock()

	if !s.runtimes.UnregisterIf(name, func(cur *mcpsvc.Service) bool { return cur == svc }) {
		return false
	}
	logging.Warn(subsystem, "MCP server %s failed its health check: %v", name, cause)
	s.stopService(ctx, svc, "unhealthy")
	s.setResult(name, api.LoadingResult{
		Status:  api.LoadStatusFailed,
		Message: fmt.Sprintf("health check failed: %v", cause),
	})
	return true
}

// Runtime returns a snapshot of a live runtime.
func (s *Supervisor) Runtime(name string) (api.RuntimeInfo, bool) {
	svc, ok := s.runtimes.Get(name)
	if !ok {
		return api.RuntimeInfo{}, false
	}
	return svc.Runtime(), true
}

// LoadingResult returns the recorded outcome of the latest attempt.
func (s *Supervisor) LoadingResult(name string) (api.LoadingResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[name]
	return r, ok
}

func (s *Supervisor) setResult(name string, r api.LoadingResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[name] = r
}

// RunningNames returns the names with a live runtime, sorted.
func (s *Supervisor) RunningNames() []string {
	return s.runtimes.Names()
}

// KnownNames returns every name with a runtime or a loading result, sorted.
func (s *Supervisor) KnownNames() []string {
	seen := make(map[string]bool)
	for _, name := range s.runtimes.Names() {
		seen[name] = true
	}
	s.mu.RLock()
	for name := range s.results {
		seen[name] = true
	}
	s.mu.RUnlock()

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shutdown stops every runtime concurrently.
func (s *Supervisor) Shutdown(ctx context.Context) {
	all := s.runtimes.GetAll()
	if len(all) == 0 {
		return
	}
	logging.Info(subsystem, "Stopping %d MCP servers", len(all))

	var wg sync.WaitGroup
	for _, svc := range all {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.locks.Lock(svc.GetName())
			defer unlock()
			if s.runtimes.UnregisterIf(svc.GetName(), func(cur *mcpsvc.Service) bool { return cur == svc }) {
				s.stopService(ctx, svc, "shutdown")
			}
		}()
	}
	wg.Wait()
}
