package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"mcpbridge/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behavior every Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("add get list remove", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		stdio := api.ServerConfig{Name: "fs", Descriptor: api.ServerDescriptor{
			Command: "npx", Args: []string{"-y", "fs"}, Env: map[string]string{"ROOT": "/tmp"},
		}}
		remote := api.ServerConfig{Name: "remote", Descriptor: api.ServerDescriptor{URL: "https://example.com/mcp"}}

		require.NoError(t, s.Add(ctx, remote))
		require.NoError(t, s.Add(ctx, stdio))

		got, ok, err := s.Get(ctx, "fs")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, stdio, got)

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []api.ServerConfig{stdio, remote}, list)

		require.NoError(t, s.Remove(ctx, "fs"))
		_, ok, err = s.Get(ctx, "fs")
		require.NoError(t, err)
		assert.False(t, ok)

		list, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []api.ServerConfig{remote}, list)
	})

	t.Run("empty command survives a reload", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		blank := api.ServerConfig{Name: "blank", Descriptor: api.ServerDescriptor{Command: ""}}
		require.NoError(t, s.Add(ctx, blank))

		got, ok, err := s.Get(ctx, "blank")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, api.TransportStdio, got.Descriptor.Transport())
		assert.Empty(t, got.Descriptor.Command)
	})

	t.Run("duplicate add leaves store untouched", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		original := api.ServerConfig{Name: "dup", Descriptor: api.ServerDescriptor{Command: "a"}}
		require.NoError(t, s.Add(ctx, original))

		err := s.Add(ctx, api.ServerConfig{Name: "dup", Descriptor: api.ServerDescriptor{Command: "b"}})
		require.Error(t, err)
		assert.True(t, api.IsKind(err, api.KindDuplicateName))
		assert.Equal(t, "MCP server with name 'dup' already exists.", err.Error())

		got, ok, err := s.Get(ctx, "dup")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, original, got)
	})

	t.Run("remove unknown", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		err := s.Remove(ctx, "ghost")
		require.Error(t, err)
		assert.True(t, api.IsNotFound(err))
	})

	t.Run("empty list", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("concurrent adds of one name yield one winner", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.Add(ctx, api.ServerConfig{
					Name:       "race",
					Descriptor: api.ServerDescriptor{Command: fmt.Sprintf("cmd-%d", i)},
				})
			}(i)
		}
		wg.Wait()

		successes := 0
		for _, err := range errs {
			if err == nil {
				successes++
			} else {
				assert.True(t, api.IsKind(err, api.KindDuplicateName))
			}
		}
		assert.Equal(t, 1, successes)
	})

	t.Run("concurrent adds of distinct names all land", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		const n = 10
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.Add(ctx, api.ServerConfig{
					Name:       fmt.Sprintf("srv-%02d", i),
					Descriptor: api.ServerDescriptor{Command: "x"},
				}))
			}(i)
		}
		wg.Wait()

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, n)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.List(cctx)
		assert.Error(t, err)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestFileStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewFileStore(filepath.Join(t.TempDir(), "nested", DefaultRegistryFile))
	})
}

func TestFileStore_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultRegistryFile)
	s := NewFileStore(path)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, api.ServerConfig{Name: "fs", Descriptor: api.ServerDescriptor{Command: "npx", Args: []string{"-y"}}}))
	require.NoError(t, s.Add(ctx, api.ServerConfig{Name: "web", Descriptor: api.ServerDescriptor{URL: "http://localhost:3000/mcp"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"mcpServers": {
			"fs": {"command": "npx", "args": ["-y"]},
			"web": {"url": "http://localhost:3000/mcp"}
		}
	}`, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_PreservesForeignContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultRegistryFile)
	initial := `{
		"version": 2,
		"mcpServers": {
			"legacy": {"command": "node", "args": ["server.js"], "disabled": false},
			"broken": {"args": ["no command"]}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o600))

	s := NewFileStore(path)
	ctx := context.Background()

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1, "invalid entries are skipped")
	assert.Equal(t, "legacy", list[0].Name)

	require.NoError(t, s.Add(ctx, api.ServerConfig{Name: "new", Descriptor: api.ServerDescriptor{Command: "x"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.JSONEq(t, `2`, string(doc["version"]))

	var servers map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["mcpServers"], &servers))
	assert.JSONEq(t, `{"command": "node", "args": ["server.js"], "disabled": false}`, string(servers["legacy"]))
	assert.Contains(t, servers, "broken")
	assert.Contains(t, servers, "new")

	require.NoError(t, s.Remove(ctx, "broken"))
}

func TestFileStore_MissingAndEmptyFile(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	list, err := NewFileStore(filepath.Join(dir, "absent.json")).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o600))
	list, err = NewFileStore(empty).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultRegistryFile)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := NewFileStore(path)
	ctx := context.Background()

	_, err := s.List(ctx)
	require.Error(t, err)
	assert.True(t, api.IsKind(err, api.KindStorage))

	err = s.Add(ctx, api.ServerConfig{Name: "x", Descriptor: api.ServerDescriptor{Command: "x"}})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data), "a failed write leaves the file untouched")
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(RegistryConfig{Backend: BackendFile, Path: filepath.Join(dir, "r.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = NewStore(RegistryConfig{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewStore(RegistryConfig{Backend: BackendSQLite, Path: filepath.Join(dir, "r.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = NewStore(RegistryConfig{Backend: "etcd"})
	assert.Error(t, err)
}
