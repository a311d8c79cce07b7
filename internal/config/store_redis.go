package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mcpbridge/internal/api"
	"mcpbridge/pkg/logging"

	"github.com/redis/go-redis/v9"
)

// RedisStoreConfig configures the Redis-backed registry.
type RedisStoreConfig struct {
	Addr string
	// Key is the hash holding name -> descriptor JSON.
	Key string
	// Client, when set, is used instead of dialing Addr.
	Client *redis.Client
}

// RedisStore keeps the registry in a single Redis hash so several bridges on
// one host can share it. HSETNX makes the duplicate check and insert a single
// atomic command.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	rdb := cfg.Client
	if rdb == nil {
		if strings.TrimSpace(cfg.Addr) == "" {
			return nil, errors.New("redis registry address is required")
		}
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Addr})
	}
	key := cfg.Key
	if key == "" {
		key = DefaultRedisKey
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", cfg.Addr, err)
	}

	logging.Debug("ConfigStore", "Using redis registry %s at %s", key, cfg.Addr)
	return &RedisStore{rdb: rdb, key: key}, nil
}

func (s *RedisStore) List(ctx context.Context) ([]api.ServerConfig, error) {
	entries, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, api.NewStorageError("redis list servers", err)
	}

	out := make([]api.ServerConfig, 0, len(entries))
	for name, payload := range entries {
		cfg, err := decodeEntry(name, json.RawMessage(payload))
		if err != nil {
			logging.Warn("ConfigStore", "Skipping invalid registry entry %s: %v", name, err)
			continue
		}
		out = append(out, cfg)
	}
	sortConfigs(out)
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, name string) (api.ServerConfig, bool, error) {
	payload, err := s.rdb.HGet(ctx, s.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return api.ServerConfig{}, false, nil
	}
	if err != nil {
		return api.ServerConfig{}, false, api.NewStorageError("redis get server", err)
	}
	cfg, err := decodeEntry(name, json.RawMessage(payload))
	if err != nil {
		return api.ServerConfig{}, false, nil
	}
	return cfg, true, nil
}

func (s *RedisStore) Add(ctx context.Context, cfg api.ServerConfig) error {
	payload, err := json.Marshal(DescriptorToMap(cfg.Descriptor))
	if err != nil {
		return api.NewStorageError("failed to encode descriptor", err)
	}
	created, err := s.rdb.HSetNX(ctx, s.key, cfg.Name, payload).Result()
	if err != nil {
		return api.NewStorageError("redis insert server", err)
	}
	if !created {
		return api.NewDuplicateNameError(cfg.Name)
	}
	logging.Info("ConfigStore", "Added %s to redis registry", cfg.Name)
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, name string) error {
	n, err := s.rdb.HDel(ctx, s.key, name).Result()
	if err != nil {
		return api.NewStorageError("redis delete server", err)
	}
	if n == 0 {
		return api.NewNotFoundError(name)
	}
	logging.Info("ConfigStore", "Removed %s from redis registry", name)
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
