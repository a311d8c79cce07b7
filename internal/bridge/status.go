package bridge

import (
	"context"

	"mcpbridge/internal/api"
	"mcpbridge/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// statusConcurrency bounds the pings and tool listings issued by Status.
const statusConcurrency = 8

// Status boots the registry on first use and reports every configured
// server: whether it answers, its tools when it does, and the error of its
// last failed start. Runtimes and results left behind by servers removed
// from the registry are pruned and not reported.
func (b *Bridge) Status(ctx context.Context) (out api.Result[[]api.ServerStatus]) {
	defer recoverResult("Status", &out)

	if err := b.supervisor.EnsureBooted(ctx); err != nil {
		return api.Fail[[]api.ServerStatus](api.NewStorageError(err.Error(), err))
	}

	pruned, err := b.supervisor.Reconcile(ctx)
	if err != nil {
		return api.Fail[[]api.ServerStatus](api.NewStorageError(err.Error(), err))
	}
	for _, name := range pruned {
		b.names.Forget(name)
	}

	configs, err := b.store.List(ctx)
	if err != nil {
		return api.Fail[[]api.ServerStatus](err)
	}

	statuses := make([]api.ServerStatus, len(configs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statusConcurrency)
	for i, cfg := range configs {
		g.Go(func() error {
			statuses[i] = b.serverStatus(gctx, cfg)
			return nil
		})
	}
	_ = g.Wait()

	return api.Succeed(statuses)
}

func (b *Bridge) serverStatus(ctx context.Context, cfg api.ServerConfig) api.ServerStatus {
	status := api.ServerStatus{
		Name:   cfg.Name,
		Config: cfg.Descriptor,
		Tools:  []api.ToolDescriptor{},
	}

	if result, ok := b.supervisor.LoadingResult(cfg.Name); ok && result.Failed() {
		msg := result.Message
		status.Error = &msg
		return status
	}

	rt, live := b.supervisor.Runtime(cfg.Name)
	if !live {
		return status
	}

	status.Running = b.supervisor.Ping(ctx, cfg.Name)
	if !status.Running {
		return status
	}
	status.Process = rt.Process

	tools, err := b.supervisor.ListTools(ctx, cfg.Name, false)
	if err != nil {
		logging.Warn(subsystem, "Failed to list tools of %s: %v", cfg.Name, err)
		return status
	}
	status.Tools = tools
	return status
}

// ForceReload retries every server whose last start failed, boots servers
// added since the last boot, and reports the resulting status.
func (b *Bridge) ForceReload(ctx context.Context) (out api.Result[[]api.ServerStatus]) {
	defer recoverResult("ForceReload", &out)

	logging.Info(subsystem, "Force reloading MCP servers")
	if err := b.supervisor.Reload(ctx); err != nil {
		return api.Fail[[]api.ServerStatus](api.NewStorageError(err.Error(), err))
	}
	return b.Status(ctx)
}
