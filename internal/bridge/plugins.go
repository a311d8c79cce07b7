package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"

	"mcpbridge/internal/api"
	"mcpbridge/pkg/logging"
)

// SchemaDraft07 is the JSON Schema dialect declared on plugin parameters.
const SchemaDraft07 = "http://json-schema.org/draft-07/schema#"

// msgUnknownError stands in for failures that carry no message.
const msgUnknownError = "An unknown error occurred"

// ActiveServerIDs boots the registry on first use and returns the prefixed
// names of the servers that currently have a runtime.
func (b *Bridge) ActiveServerIDs(ctx context.Context) (out api.Result[[]string]) {
	defer recoverResult("ActiveServerIDs", &out)

	if err := b.supervisor.EnsureBooted(ctx); err != nil {
		return api.Fail[[]string](api.NewStorageError(err.Error(), err))
	}

	names := b.supervisor.RunningNames()
	ids := make([]string, 0, len(names))
	for _, name := range names {
		ids = append(ids, b.prefix+name)
	}
	return api.Succeed(ids)
}

// ServerNameFromID strips the server prefix from an id returned by
// ActiveServerIDs. ok is false for ids without the prefix.
func (b *Bridge) ServerNameFromID(id string) (name string, ok bool) {
	name, ok = strings.CutPrefix(id, b.prefix)
	return name, ok && name != ""
}

// ExportPlugins describes each tool of a running server as an agent plugin.
// The value is nil when the server has no runtime or exposes no tools.
func (b *Bridge) ExportPlugins(ctx context.Context, name string) (out api.Result[[]api.Plugin]) {
	defer recoverResult("ExportPlugins", &out)

	if _, running := b.supervisor.Runtime(name); !running {
		return api.Succeed[[]api.Plugin](nil)
	}

	tools, err := b.supervisor.ListTools(ctx, name, false)
	if err != nil {
		logging.Warn(subsystem, "Failed to list tools of %s: %v", name, err)
		return api.Fail[[]api.Plugin](err)
	}

	b.names.Forget(name)
	if len(tools) == 0 {
		return api.Succeed[[]api.Plugin](nil)
	}

	plugins := make([]api.Plugin, 0, len(tools))
	for _, tool := range tools {
		plugins = append(plugins, api.Plugin{
			Name:        b.names.Track(name, tool.Name),
			Description: tool.Description,
			ServerName:  name,
			ToolName:    tool.Name,
			Parameters:  pluginParameters(tool.InputSchema),
		})
	}
	logging.Debug(subsystem, "Exported %d plugins for %s", len(plugins), name)
	return api.Succeed(plugins)
}

// pluginParameters declares the draft-07 dialect on top of the tool's input
// schema. A $schema set by the tool itself is kept.
func pluginParameters(inputSchema map[string]any) map[string]any {
	params := make(map[string]any, len(inputSchema)+1)
	params["$schema"] = SchemaDraft07
	for k, v := range inputSchema {
		params[k] = v
	}
	return params
}

// Invoke runs plugin's tool with args and renders the outcome as text for
// the agent. It never fails: errors, including panics, come back as
// "The tool {server}:{tool} failed with error: {message}".
func (b *Bridge) Invoke(ctx context.Context, plugin api.Plugin, args map[string]any) (out string) {
	server, tool := plugin.ServerName, plugin.ToolName
	defer func() {
		if r := recover(); r != nil {
			logging.Error(subsystem, fmt.Errorf("%v", r), "Recovered from panic invoking %s:%s\n%s", server, tool, debug.Stack())
			out = FailureMessage(server, tool, api.NewInternalError(fmt.Errorf("%v", r)).Error())
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	logging.Info(subsystem, "Executing MCP server: %s:%s", server, tool)
	logging.Debug(subsystem, "Arguments for %s:%s: %s", server, tool, render(args))

	result, err := b.supervisor.CallTool(ctx, server, tool, args)
	if err != nil {
		logging.Warn(subsystem, "MCP server: %s:%s failed with error: %v", server, tool, err)
		return FailureMessage(server, tool, api.AsError(err).Message)
	}

	logging.Info(subsystem, "MCP server: %s:%s completed successfully", server, tool)
	return render(result)
}

// InvokeByName resolves an exported plugin name and invokes it. Names are
// known once ExportPlugins has described the server; an unknown name
// triggers one export pass over every running server before giving up.
func (b *Bridge) InvokeByName(ctx context.Context, pluginName string, args map[string]any) string {
	server, tool, err := b.names.Resolve(pluginName)
	if err != nil {
		for _, name := range b.supervisor.RunningNames() {
			b.ExportPlugins(ctx, name)
		}
		server, tool, err = b.names.Resolve(pluginName)
	}
	if err != nil {
		logging.Warn(subsystem, "Cannot invoke %s: %v", pluginName, err)
		return fmt.Sprintf("The tool %s failed with error: %s", pluginName, err.Error())
	}
	return b.Invoke(ctx, api.Plugin{Name: pluginName, ServerName: server, ToolName: tool}, args)
}

// FailureMessage formats a tool failure for the agent.
func FailureMessage(server, tool, message string) string {
	if strings.TrimSpace(message) == "" {
		message = msgUnknownError
	}
	return fmt.Sprintf("The tool %s:%s failed with error: %s", server, tool, message)
}

// render serializes a value for the agent: strings verbatim, everything
// else as compact JSON, falling back to its string form.
func render(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
