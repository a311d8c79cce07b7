package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mcpbridge/internal/api"
	"mcpbridge/internal/config"
	"mcpbridge/internal/mcpserver/mcpservertest"
	"mcpbridge/internal/supervisor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *config.MemoryStore
	factory *mcpservertest.Factory
	sup     *supervisor.Supervisor
	bridge  *Bridge
}

func newFixture(t *testing.T, cfgs ...api.ServerConfig) *fixture {
	t.Helper()
	f := &fixture{
		store:   config.NewMemoryStore(cfgs...),
		factory: mcpservertest.NewFactory(),
	}
	f.sup = supervisor.New(f.store, supervisor.Options{
		StartTimeout:    200 * time.Millisecond,
		PingTimeout:     100 * time.Millisecond,
		CallToolTimeout: 200 * time.Millisecond,
		Factory:         f.factory.New,
	})
	f.bridge = New(f.store, f.sup, Options{})
	t.Cleanup(func() { f.sup.Shutdown(context.Background()) })
	return f
}

func stdio(name string) api.ServerConfig {
	return api.ServerConfig{Name: name, Descriptor: api.ServerDescriptor{Command: name + "-cmd", Args: []string{"--stdio"}}}
}

func network(name string) api.ServerConfig {
	return api.ServerConfig{Name: name, Descriptor: api.ServerDescriptor{URL: "http://" + name + "/mcp"}}
}

func TestActiveServerIDs(t *testing.T) {
	f := newFixture(t, stdio("fs"), stdio("broken"), network("search"))
	f.factory.Add("fs-cmd", mcpservertest.NewServer())
	f.factory.Add("http://search/mcp", mcpservertest.NewServer())

	res := f.bridge.ActiveServerIDs(context.Background())
	require.True(t, res.OK(), res.Message())
	assert.Equal(t, []string{"@@mcp_fs", "@@mcp_search"}, res.Value())

	name, ok := f.bridge.ServerNameFromID("@@mcp_fs")
	assert.True(t, ok)
	assert.Equal(t, "fs", name)
	_, ok = f.bridge.ServerNameFromID("fs")
	assert.False(t, ok)
}

func TestActiveServerIDs_CustomPrefix(t *testing.T) {
	f := newFixture(t, stdio("fs"))
	f.factory.Add("fs-cmd", mcpservertest.NewServer())
	b := New(f.store, f.sup, Options{ServerPrefix: "mcp:"})

	res := b.ActiveServerIDs(context.Background())
	require.True(t, res.OK())
	assert.Equal(t, []string{"mcp:fs"}, res.Value())
}

func TestExportPlugins(t *testing.T) {
	f := newFixture(t, stdio("docker-mcp"), stdio("empty"))
	f.factory.Add("docker-mcp-cmd", mcpservertest.NewServer().
		WithTool("list-containers", "List containers", mcpservertest.Text("[]")).
		WithTool("logs", "Show logs", mcpservertest.Echo()))
	f.factory.Add("empty-cmd", mcpservertest.NewServer())
	ctx := context.Background()
	require.NoError(t, f.sup.BootAll(ctx))

	t.Run("one plugin per tool", func(t *testing.T) {
		res := f.bridge.ExportPlugins(ctx, "docker-mcp")
		require.True(t, res.OK(), res.Message())
		plugins := res.Value()
		require.Len(t, plugins, 2)

		p := plugins[0]
		assert.Equal(t, "docker-mcp-list-containers", p.Name)
		assert.Equal(t, "List containers", p.Description)
		assert.Equal(t, "docker-mcp", p.ServerName)
		assert.Equal(t, "list-containers", p.ToolName)
		assert.Equal(t, SchemaDraft07, p.Parameters["$schema"])
		assert.Equal(t, "object", p.Parameters["type"])
		assert.Contains(t, p.Parameters["properties"], "input")
	})

	t.Run("zero tools yields nil", func(t *testing.T) {
		res := f.bridge.ExportPlugins(ctx, "empty")
		require.True(t, res.OK())
		assert.Nil(t, res.Value())
	})

	t.Run("unknown server yields nil", func(t *testing.T) {
		res := f.bridge.ExportPlugins(ctx, "ghost")
		require.True(t, res.OK())
		assert.Nil(t, res.Value())
	})
}

func TestPluginParameters_KeepsToolSchemaDialect(t *testing.T) {
	params := pluginParameters(map[string]any{"$schema": "https://json-schema.org/draft/2020-12/schema", "type": "object"})
	assert.Equal(t, "https://json-schema.org/draft/2020-12/schema", params["$schema"])

	params = pluginParameters(nil)
	assert.Equal(t, map[string]any{"$schema": SchemaDraft07}, params)
}

func TestInvoke(t *testing.T) {
	f := newFixture(t, stdio("fs"))
	f.factory.Add("fs-cmd", mcpservertest.NewServer().
		WithTool("echo", "Echo", mcpservertest.Echo()).
		WithTool("fail", "Fail", mcpservertest.ToolError("file not found")).
		WithTool("silent", "Fails without text", mcpservertest.ToolError("")).
		WithTool("hang", "Hang", mcpservertest.Block()))
	ctx := context.Background()
	require.NoError(t, f.sup.BootAll(ctx))

	plugin := func(tool string) api.Plugin {
		return api.Plugin{Name: PluginName("fs", tool), ServerName: "fs", ToolName: tool}
	}

	t.Run("success renders the result as JSON", func(t *testing.T) {
		out := f.bridge.Invoke(ctx, plugin("echo"), map[string]any{"input": "hello"})
		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &decoded), out)
		content := decoded["content"].([]any)
		require.Len(t, content, 1)
		assert.Equal(t, "hello", content[0].(map[string]any)["text"])
	})

	t.Run("nil args are sent as an empty object", func(t *testing.T) {
		out := f.bridge.Invoke(ctx, plugin("echo"), nil)
		assert.NotContains(t, out, "failed with error")
	})

	t.Run("tool error", func(t *testing.T) {
		out := f.bridge.Invoke(ctx, plugin("fail"), nil)
		assert.Equal(t, "The tool fs:fail failed with error: file not found", out)
	})

	t.Run("empty error message", func(t *testing.T) {
		out := f.bridge.Invoke(ctx, plugin("silent"), nil)
		assert.Equal(t, "The tool fs:silent failed with error: An unknown error occurred", out)
	})

	t.Run("timeout", func(t *testing.T) {
		out := f.bridge.Invoke(ctx, plugin("hang"), nil)
		assert.True(t, strings.HasPrefix(out, "The tool fs:hang failed with error: "), out)
		assert.Contains(t, out, "timed out")
	})

	t.Run("server not running", func(t *testing.T) {
		out := f.bridge.Invoke(ctx, api.Plugin{ServerName: "ghost", ToolName: "x"}, nil)
		assert.Equal(t, "The tool ghost:x failed with error: MCP server ghost is not running.", out)
	})
}

func TestInvoke_RecoversPanics(t *testing.T) {
	b := New(config.NewMemoryStore(), nil, Options{})
	var out string
	assert.NotPanics(t, func() {
		out = b.Invoke(context.Background(), api.Plugin{ServerName: "fs", ToolName: "read"}, nil)
	})
	assert.True(t, strings.HasPrefix(out, "The tool fs:read failed with error: internal error:"), out)
}

func TestInvokeByName(t *testing.T) {
	f := newFixture(t, stdio("my-server"))
	f.factory.Add("my-server-cmd", mcpservertest.NewServer().
		WithTool("get-item", "Get", mcpservertest.Echo()))
	ctx := context.Background()
	require.NoError(t, f.sup.BootAll(ctx))

	// Resolves without a prior export.
	out := f.bridge.InvokeByName(ctx, "my-server-get-item", map[string]any{"input": "x"})
	assert.Contains(t, out, `"text":"x"`)
	assert.Equal(t, []string{"my-server-get-item"}, f.bridge.names.Names())

	out = f.bridge.InvokeByName(ctx, "my-server-nope", nil)
	assert.Equal(t, "The tool my-server-nope failed with error: unknown plugin: my-server-nope", out)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, stdio("fs"), stdio("broken"), network("remote"), stdio("later"))
	f.factory.Add("fs-cmd", mcpservertest.NewServer().WithTool("read", "Read", mcpservertest.Echo()))
	f.factory.Add("broken-cmd", mcpservertest.NewServer().FailInit(errors.New("bad handshake")))
	remote := f.factory.Add("http://remote/mcp", mcpservertest.NewServer())
	f.factory.Add("later-cmd", mcpservertest.NewServer())
	ctx := context.Background()

	require.NoError(t, f.sup.BootAll(ctx))
	require.NoError(t, f.sup.Stop(ctx, "later"))
	remote.SetPingError(errors.New("connection reset"))

	res := f.bridge.Status(ctx)
	require.True(t, res.OK(), res.Message())
	byName := map[string]api.ServerStatus{}
	for _, s := range res.Value() {
		byName[s.Name] = s
	}
	require.Len(t, byName, 4)

	fs := byName["fs"]
	assert.True(t, fs.Running)
	assert.Nil(t, fs.Error)
	require.NotNil(t, fs.Process)
	assert.Positive(t, fs.Process.PID)
	require.Len(t, fs.Tools, 1)
	assert.Equal(t, "read", fs.Tools[0].Name)
	assert.Equal(t, "fs-cmd", fs.Config.Command)

	broken := byName["broken"]
	assert.False(t, broken.Running)
	require.NotNil(t, broken.Error)
	assert.Contains(t, *broken.Error, "bad handshake")
	assert.Empty(t, broken.Tools)

	r := byName["remote"]
	assert.False(t, r.Running)
	assert.Nil(t, r.Error)
	assert.Nil(t, r.Process)

	later := byName["later"]
	assert.False(t, later.Running)
	assert.Nil(t, later.Error)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"process"`)
	assert.Contains(t, string(data), `"error":null`)
	assert.Contains(t, string(data), `"tools":[]`)
}

func TestStatus_NetworkServerOmitsProcess(t *testing.T) {
	f := newFixture(t, network("remote"))
	f.factory.Add("http://remote/mcp", mcpservertest.NewServer())

	res := f.bridge.Status(context.Background())
	require.True(t, res.OK())
	require.Len(t, res.Value(), 1)
	assert.True(t, res.Value()[0].Running)
	assert.Nil(t, res.Value()[0].Process)
}

func TestStatus_PurgesRemovedServers(t *testing.T) {
	f := newFixture(t, stdio("keep"), stdio("gone"))
	f.factory.Add("keep-cmd", mcpservertest.NewServer())
	gone := f.factory.Add("gone-cmd", mcpservertest.NewServer())
	ctx := context.Background()
	require.NoError(t, f.sup.BootAll(ctx))

	require.NoError(t, f.store.Remove(ctx, "gone"))

	res := f.bridge.Status(ctx)
	require.True(t, res.OK())
	require.Len(t, res.Value(), 1)
	assert.Equal(t, "keep", res.Value()[0].Name)
	assert.Zero(t, gone.Live())
	_, known := f.sup.LoadingResult("gone")
	assert.False(t, known)
}

func TestForceReload(t *testing.T) {
	f := newFixture(t, stdio("flaky"))
	flaky := f.factory.Add("flaky-cmd", mcpservertest.NewServer().FailInit(errors.New("port in use")))
	ctx := context.Background()

	res := f.bridge.Status(ctx)
	require.True(t, res.OK())
	require.NotNil(t, res.Value()[0].Error)

	flaky.FailInit(nil)
	res = f.bridge.ForceReload(ctx)
	require.True(t, res.OK(), res.Message())
	assert.True(t, res.Value()[0].Running)
	assert.Nil(t, res.Value()[0].Error)
}

func TestForceReload_RestartsToggledOffServer(t *testing.T) {
	f := newFixture(t, stdio("fs"))
	f.factory.Add("fs-cmd", mcpservertest.NewServer())
	ctx := context.Background()

	res := f.bridge.Status(ctx)
	require.True(t, res.OK(), res.Message())
	require.True(t, res.Value()[0].Running)

	require.True(t, f.bridge.Toggle(ctx, "fs").OK())
	res = f.bridge.Status(ctx)
	require.True(t, res.OK(), res.Message())
	assert.False(t, res.Value()[0].Running)

	res = f.bridge.ForceReload(ctx)
	require.True(t, res.OK(), res.Message())
	assert.True(t, res.Value()[0].Running)
	assert.Nil(t, res.Value()[0].Error)
}

func TestStatus_ShortCallerDeadlineDoesNotFailBoot(t *testing.T) {
	f := newFixture(t, stdio("fs"))
	f.factory.Add("fs-cmd", mcpservertest.NewServer().SlowInit(50*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	f.bridge.Status(ctx)

	res := f.bridge.Status(context.Background())
	require.True(t, res.OK(), res.Message())
	assert.True(t, res.Value()[0].Running)
	assert.Nil(t, res.Value()[0].Error)
}

func TestToggle(t *testing.T) {
	f := newFixture(t, stdio("fs"))
	fs := f.factory.Add("fs-cmd", mcpservertest.NewServer())
	ctx := context.Background()

	res := f.bridge.Toggle(ctx, "fs")
	require.True(t, res.OK(), res.Message())
	assert.Equal(t, 1, fs.Live())

	res = f.bridge.Toggle(ctx, "fs")
	require.True(t, res.OK(), res.Message())
	assert.Zero(t, fs.Live())

	res = f.bridge.Toggle(ctx, "ghost")
	assert.False(t, res.OK())
	assert.Equal(t, api.KindNotFound, res.Kind())
	assert.Equal(t, "MCP server ghost not found in config file.", res.Message())
}

func TestToggle_StartFailure(t *testing.T) {
	f := newFixture(t, stdio("bad"))
	f.factory.Add("bad-cmd", mcpservertest.NewServer().FailInit(errors.New("exit status 1")))

	res := f.bridge.Toggle(context.Background(), "bad")
	assert.False(t, res.OK())
	assert.Equal(t, api.KindProcessStart, res.Kind())
	assert.Contains(t, res.Message(), "exit status 1")
}

func TestDelete(t *testing.T) {
	f := newFixture(t, stdio("fs"))
	fs := f.factory.Add("fs-cmd", mcpservertest.NewServer().WithTool("read", "Read", mcpservertest.Echo()))
	ctx := context.Background()
	require.NoError(t, f.sup.BootAll(ctx))
	f.bridge.ExportPlugins(ctx, "fs")

	res := f.bridge.Delete(ctx, "fs")
	require.True(t, res.OK(), res.Message())

	assert.Zero(t, fs.Live())
	_, ok, _ := f.store.Get(ctx, "fs")
	assert.False(t, ok)
	assert.Empty(t, f.sup.KnownNames())
	assert.Empty(t, f.bridge.names.Names())

	res = f.bridge.Delete(ctx, "fs")
	assert.Equal(t, api.KindNotFound, res.Kind())
}

type readOnlyStore struct{ *config.MemoryStore }

func (readOnlyStore) Remove(context.Context, string) error {
	return api.NewStorageError("registry is read-only", nil)
}

func TestDelete_StoreFailureChangesNothing(t *testing.T) {
	f := newFixture(t, stdio("fs"))
	fs := f.factory.Add("fs-cmd", mcpservertest.NewServer())
	ctx := context.Background()
	require.NoError(t, f.sup.BootAll(ctx))

	b := New(readOnlyStore{f.store}, f.sup, Options{})
	res := b.Delete(ctx, "fs")
	assert.Equal(t, api.KindStorage, res.Kind())
	assert.Equal(t, 1, fs.Live())
	_, ok, _ := f.store.Get(ctx, "fs")
	assert.True(t, ok)
}

func TestAdd(t *testing.T) {
	f := newFixture(t, stdio("existing"))
	ctx := context.Background()

	tests := []struct {
		name     string
		server   string
		raw      any
		wantKind api.ErrorKind
		wantMsg  string
	}{
		{
			name:   "stdio",
			server: "fs",
			raw:    map[string]any{"command": "npx", "args": []any{"-y", "fs"}, "env": map[string]any{"ROOT": "/tmp"}},
		},
		{
			name:   "network",
			server: "search",
			raw:    map[string]any{"url": "https://search.example.com/mcp"},
		},
		{
			name:     "duplicate",
			server:   "existing",
			raw:      map[string]any{"command": "x"},
			wantKind: api.KindDuplicateName,
			wantMsg:  "MCP server with name 'existing' already exists.",
		},
		{
			name:     "invalid descriptor",
			server:   "bad",
			raw:      map[string]any{"args": []any{"x"}},
			wantKind: api.KindConfig,
			wantMsg:  "Server configuration must have either 'command' or 'url' property.",
		},
		{
			name:     "not an object",
			server:   "bad2",
			raw:      "npx foo",
			wantKind: api.KindConfig,
			wantMsg:  "Server configuration must be an object.",
		},
		{
			name:     "name with whitespace",
			server:   "my server",
			raw:      map[string]any{"command": "x"},
			wantKind: api.KindConfig,
		},
		{
			name:     "empty name",
			server:   "",
			raw:      map[string]any{"command": "x"},
			wantKind: api.KindConfig,
		},
		{
			name:     "name too long",
			server:   strings.Repeat("a", 101),
			raw:      map[string]any{"command": "x"},
			wantKind: api.KindConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := f.store.List(ctx)
			res := f.bridge.Add(ctx, tt.server, tt.raw)

			if tt.wantKind != "" {
				assert.False(t, res.OK())
				assert.Equal(t, tt.wantKind, res.Kind())
				if tt.wantMsg != "" {
					assert.Equal(t, tt.wantMsg, res.Message())
				}
				after, _ := f.store.List(ctx)
				assert.Equal(t, before, after, "registry must be untouched")
				return
			}

			require.True(t, res.OK(), res.Message())
			assert.Equal(t, tt.server, res.Value().Name)
			stored, ok, err := f.store.Get(ctx, tt.server)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, res.Value().Descriptor, stored.Descriptor)
		})
	}

	_, running := f.sup.Runtime("fs")
	assert.False(t, running, "add never starts the server")
}

func TestParseCommand(t *testing.T) {
	b := New(config.NewMemoryStore(), nil, Options{})

	res := b.ParseCommand(`{"mcpServers":{"fs":{"command":"npx","args":["fs"]}}}`)
	require.True(t, res.OK(), res.Message())
	assert.Equal(t, "fs", res.Value().Name)
	assert.Equal(t, "npx", res.Value().Descriptor["command"])

	res = b.ParseCommand("pip install something")
	assert.Equal(t, api.KindParse, res.Kind())
}

func TestEntryPoints_RecoverPanics(t *testing.T) {
	b := New(config.NewMemoryStore(stdio("fs")), nil, Options{})
	ctx := context.Background()

	assert.NotPanics(t, func() {
		assert.Equal(t, api.KindInternal, b.Toggle(ctx, "fs").Kind())
		assert.Equal(t, api.KindInternal, b.Status(ctx).Kind())
		assert.Equal(t, api.KindInternal, b.ActiveServerIDs(ctx).Kind())
		assert.Equal(t, api.KindInternal, b.ExportPlugins(ctx, "fs").Kind())
	})
}

func TestNameTracker(t *testing.T) {
	nt := NewNameTracker()
	assert.Equal(t, "a-b-c", nt.Track("a-b", "c"))
	assert.Equal(t, "x-y", nt.Track("x", "y"))

	server, tool, err := nt.Resolve("a-b-c")
	require.NoError(t, err)
	assert.Equal(t, "a-b", server)
	assert.Equal(t, "c", tool)

	// The later export of an ambiguous name wins.
	nt.Track("a", "b-c")
	server, tool, _ = nt.Resolve("a-b-c")
	assert.Equal(t, "a", server)
	assert.Equal(t, "b-c", tool)

	nt.Forget("a")
	_, _, err = nt.Resolve("a-b-c")
	assert.Error(t, err)
	assert.Equal(t, []string{"x-y"}, nt.Names())
}
