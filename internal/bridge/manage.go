package bridge

import (
	"context"

	"mcpbridge/internal/api"
	"mcpbridge/internal/config"
	"mcpbridge/internal/parser"
	"mcpbridge/pkg/logging"
)

// Toggle stops a server that answers pings and starts one that does not.
func (b *Bridge) Toggle(ctx context.Context, name string) (out api.Result[api.Empty]) {
	defer recoverResult("Toggle", &out)

	if _, ok, err := b.store.Get(ctx, name); err != nil {
		return api.Fail[api.Empty](err)
	} else if !ok {
		return api.Fail[api.Empty](api.NewNotFoundError(name))
	}

	if b.supervisor.Ping(ctx, name) {
		logging.Info(subsystem, "Toggling %s off", name)
		if err := b.supervisor.Stop(ctx, name); err != nil {
			return api.Fail[api.Empty](err)
		}
		b.names.Forget(name)
		return api.Succeed(api.Empty{})
	}

	logging.Info(subsystem, "Toggling %s on", name)
	return api.From(api.Empty{}, b.supervisor.Start(ctx, name))
}

// Delete removes a server from the registry, then stops its runtime and
// forgets everything known about it. When the registry write fails nothing
// else changes.
func (b *Bridge) Delete(ctx context.Context, name string) (out api.Result[api.Empty]) {
	defer recoverResult("Delete", &out)

	if _, ok, err := b.store.Get(ctx, name); err != nil {
		return api.Fail[api.Empty](err)
	} else if !ok {
		return api.Fail[api.Empty](api.NewNotFoundError(name))
	}

	if err := b.store.Remove(ctx, name); err != nil {
		return api.Fail[api.Empty](err)
	}
	b.supervisor.Prune(ctx, name)
	b.names.Forget(name)

	logging.Info(subsystem, "MCP server was stopped and removed from the registry: %s", name)
	return api.Succeed(api.Empty{})
}

// Add validates and persists a new server. It does not start it; the next
// boot pass or a toggle does.
func (b *Bridge) Add(ctx context.Context, name string, raw any) (out api.Result[api.ServerConfig]) {
	defer recoverResult("Add", &out)

	if err := config.ValidateServerName(name); err != nil {
		return api.Fail[api.ServerConfig](err)
	}
	if _, exists, err := b.store.Get(ctx, name); err != nil {
		return api.Fail[api.ServerConfig](err)
	} else if exists {
		return api.Fail[api.ServerConfig](api.NewDuplicateNameError(name))
	}

	descriptor, err := config.ValidateDescriptor(raw)
	if err != nil {
		return api.Fail[api.ServerConfig](err)
	}

	cfg := api.ServerConfig{Name: name, Descriptor: descriptor}
	if err := b.store.Add(ctx, cfg); err != nil {
		return api.Fail[api.ServerConfig](err)
	}

	logging.Info(subsystem, "MCP server added to the registry: %s", name)
	return api.Succeed(cfg)
}

// ParseCommand turns an install command or JSON configuration into a
// candidate server. The descriptor is not validated until Add.
func (b *Bridge) ParseCommand(input string) (out api.Result[api.ParsedServer]) {
	defer recoverResult("ParseCommand", &out)
	parsed, err := parser.Parse(input)
	return api.From(parsed, err)
}
