package config

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Set MCPBRIDGE_TEST_REDIS_ADDR to run these against a real server.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("MCPBRIDGE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MCPBRIDGE_TEST_REDIS_ADDR not set")
	}

	runStoreContract(t, func(t *testing.T) Store {
		key := fmt.Sprintf("mcpbridge:test:%d", time.Now().UnixNano())
		s, err := NewRedisStore(RedisStoreConfig{Addr: addr, Key: key})
		require.NoError(t, err)
		t.Cleanup(func() {
			rdb := redis.NewClient(&redis.Options{Addr: addr})
			defer rdb.Close()
			rdb.Del(context.Background(), key)
		})
		return s
	})
}

func TestRedisStore_Unreachable(t *testing.T) {
	_, err := NewRedisStore(RedisStoreConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)

	_, err = NewRedisStore(RedisStoreConfig{})
	require.Error(t, err)
}
