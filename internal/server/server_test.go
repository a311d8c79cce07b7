package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"mcpbridge/internal/api"
	"mcpbridge/internal/bridge"
	"mcpbridge/internal/config"
	"mcpbridge/internal/mcpserver/mcpservertest"
	"mcpbridge/internal/supervisor"
	"mcpbridge/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fixture struct {
	store   *config.MemoryStore
	factory *mcpservertest.Factory
	server  *Server
}

func newFixture(t *testing.T, cfgs ...api.ServerConfig) *fixture {
	t.Helper()
	f := &fixture{
		store:   config.NewMemoryStore(cfgs...),
		factory: mcpservertest.NewFactory(),
	}
	provider, err := telemetry.NewProvider("test")
	require.NoError(t, err)

	sup := supervisor.New(f.store, supervisor.Options{
		StartTimeout: 200 * time.Millisecond,
		PingTimeout:  100 * time.Millisecond,
		Factory:      f.factory.New,
		Observer:     provider.Observer(),
	})
	t.Cleanup(func() {
		sup.Shutdown(context.Background())
		_ = provider.Shutdown(context.Background())
	})
	f.server = New(Config{Metrics: provider}, bridge.New(f.store, sup, bridge.Options{}))
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func stdio(name string) api.ServerConfig {
	return api.ServerConfig{Name: name, Descriptor: api.ServerDescriptor{Command: name + "-cmd"}}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestList(t *testing.T) {
	f := newFixture(t, stdio("fs"), stdio("broken"))
	f.factory.Add("fs-cmd", mcpservertest.NewServer().WithTool("read", "Read a file", mcpservertest.Echo()))
	f.factory.Add("broken-cmd", mcpservertest.NewServer().FailInit(errors.New("exit status 127")))

	code, body := f.do(t, http.MethodGet, "/api/mcp-servers/list", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Nil(t, body["error"])

	servers := body["servers"].([]any)
	require.Len(t, servers, 2)

	broken := servers[0].(map[string]any)
	assert.Equal(t, "broken", broken["name"])
	assert.Equal(t, false, broken["running"])
	assert.Contains(t, broken["error"], "exit status 127")
	assert.NotContains(t, broken, "process")

	fs := servers[1].(map[string]any)
	assert.Equal(t, "fs", fs["name"])
	assert.Equal(t, true, fs["running"])
	assert.Nil(t, fs["error"])
	assert.Equal(t, map[string]any{"command": "fs-cmd"}, fs["config"])
	assert.Contains(t, fs["process"], "pid")
	tools := fs["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "read", tools[0].(map[string]any)["name"])
	assert.Contains(t, tools[0], "inputSchema")
}

func TestForceReload(t *testing.T) {
	f := newFixture(t, stdio("flaky"))
	flaky := f.factory.Add("flaky-cmd", mcpservertest.NewServer().FailInit(errors.New("busy")))

	_, body := f.do(t, http.MethodGet, "/api/mcp-servers/list", nil)
	assert.Equal(t, false, body["servers"].([]any)[0].(map[string]any)["running"])

	flaky.FailInit(nil)
	code, body := f.do(t, http.MethodGet, "/api/mcp-servers/force-reload", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["servers"].([]any)[0].(map[string]any)["running"])
}

func TestToggleAndDelete(t *testing.T) {
	f := newFixture(t, stdio("fs"))
	fs := f.factory.Add("fs-cmd", mcpservertest.NewServer())

	code, body := f.do(t, http.MethodPost, "/api/mcp-servers/toggle", map[string]any{"name": "fs"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"success": true, "error": nil}, body)
	assert.Equal(t, 1, fs.Live())

	code, body = f.do(t, http.MethodPost, "/api/mcp-servers/toggle", map[string]any{"name": "ghost"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "MCP server ghost not found in config file.", body["error"])

	code, _ = f.do(t, http.MethodPost, "/api/mcp-servers/delete", map[string]any{"name": "fs"})
	assert.Equal(t, http.StatusOK, code)
	assert.Zero(t, fs.Live())
	_, ok, _ := f.store.Get(context.Background(), "fs")
	assert.False(t, ok)

	code, _ = f.do(t, http.MethodPost, "/api/mcp-servers/delete", "not json")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreate(t *testing.T) {
	f := newFixture(t, stdio("existing"))

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantError  any
	}{
		{
			name:       "stdio server",
			body:       map[string]any{"name": "fs", "serverConfig": map[string]any{"command": "npx", "args": []string{"fs"}}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "duplicate",
			body:       map[string]any{"name": "existing", "serverConfig": map[string]any{"command": "npx"}},
			wantStatus: http.StatusConflict,
			wantError:  "MCP server with name 'existing' already exists.",
		},
		{
			name:       "invalid url",
			body:       map[string]any{"name": "remote", "serverConfig": map[string]any{"url": "not a url"}},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid URL format.",
		},
		{
			name:       "missing config",
			body:       map[string]any{"name": "empty"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Server configuration must be an object.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := f.do(t, http.MethodPost, "/api/mcp-servers/create", tt.body)
			assert.Equal(t, tt.wantStatus, code)
			if tt.wantError == nil {
				assert.Equal(t, true, body["success"])
				assert.Nil(t, body["error"])
				server := body["server"].(map[string]any)
				assert.Equal(t, "fs", server["name"])
				assert.Equal(t, "npx", server["config"].(map[string]any)["command"])
				return
			}
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantError, body["error"])
			assert.Nil(t, body["server"])
		})
	}
}

func TestParseInstallCommand(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/api/mcp-servers/parse-install-command",
		map[string]any{"command": "npx -y @smithery/cli@latest install @org/weather --key k1"})
	require.Equal(t, http.StatusOK, code)
	cfg := body["config"].(map[string]any)
	assert.Equal(t, "weather", cfg["name"])
	assert.Equal(t, "npx", cfg["serverConfig"].(map[string]any)["command"])

	code, body = f.do(t, http.MethodPost, "/api/mcp-servers/parse-install-command",
		map[string]any{"command": "brew install something"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
	assert.Nil(t, body["config"])
	assert.Contains(t, body["error"], "Unable to parse command")
}

func TestAgentPlugins(t *testing.T) {
	f := newFixture(t, stdio("fs"))
	f.factory.Add("fs-cmd", mcpservertest.NewServer().
		WithTool("read", "Read a file", mcpservertest.Echo()).
		WithTool("fail", "Always fails", mcpservertest.ToolError("denied")))

	code, body := f.do(t, http.MethodGet, "/api/agent/plugins", nil)
	require.Equal(t, http.StatusOK, code)
	plugins := body["plugins"].([]any)
	require.Len(t, plugins, 2)
	read := plugins[0].(map[string]any)
	assert.Equal(t, "fs-read", read["name"])
	assert.Equal(t, "fs", read["serverName"])
	assert.Equal(t, bridge.SchemaDraft07, read["parameters"].(map[string]any)["$schema"])

	code, body = f.do(t, http.MethodPost, "/api/agent/plugins/fs-read/invoke", map[string]any{"arguments": map[string]any{"input": "hi"}})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body["result"], `"text":"hi"`)

	_, body = f.do(t, http.MethodPost, "/api/agent/plugins/fs-fail/invoke", nil)
	assert.Equal(t, "The tool fs:fail failed with error: denied", body["result"])
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, stdio("fs"))
	f.factory.Add("fs-cmd", mcpservertest.NewServer())

	f.do(t, http.MethodGet, "/api/mcp-servers/list", nil)

	code, body := f.do(t, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, code)
	names := map[string]bool{}
	for _, m := range body["metrics"].([]any) {
		names[m.(map[string]any)["name"].(string)] = true
	}
	assert.True(t, names[telemetry.MetricStarts])
	assert.True(t, names[telemetry.MetricHealthChecks])
}

func TestStartShutdown(t *testing.T) {
	f := newFixture(t)
	f.server.config.ListenAddr = "127.0.0.1:0"

	require.NoError(t, f.server.Start())
	assert.Error(t, f.server.Start())

	resp, err := http.Get("http://" + f.server.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, f.server.Shutdown(context.Background()))
	assert.Empty(t, f.server.Addr())
	require.NoError(t, f.server.Shutdown(context.Background()))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, statusFor(""))
	assert.Equal(t, http.StatusBadGateway, statusFor(api.KindProcessTimeout))
	assert.Equal(t, http.StatusInternalServerError, statusFor(api.KindStorage))
}
