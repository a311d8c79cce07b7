package config

import (
	"context"
	"fmt"
	"sort"

	"mcpbridge/internal/api"
)

// Store persists the server registry.
//
// Implementations serialize mutations: Add checks for a duplicate and writes
// under one lock, so concurrent management requests never interleave partial
// writes. Add fails with a KindDuplicateName error and Remove with a
// KindNotFound error; in both cases the registry is left untouched.
type Store interface {
	List(ctx context.Context) ([]api.ServerConfig, error)
	Get(ctx context.Context, name string) (api.ServerConfig, bool, error)
	Add(ctx context.Context, cfg api.ServerConfig) error
	Remove(ctx context.Context, name string) error
	Close() error
}

// NewStore opens the Store selected by cfg.
func NewStore(cfg RegistryConfig) (Store, error) {
	switch cfg.Backend {
	case BackendFile, "":
		return NewFileStore(cfg.Path), nil
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	case BackendRedis:
		return NewRedisStore(RedisStoreConfig{Addr: cfg.RedisAddr, Key: cfg.RedisKey})
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown registry backend %q", cfg.Backend)
	}
}

func sortConfigs(cfgs []api.ServerConfig) {
	sort.Slice(cfgs, func(i, j int) bool { return cfgs[i].Name < cfgs[j].Name })
}
