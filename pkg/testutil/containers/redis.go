//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"chequeverify/internal/platform/config"
	platformredis "chequeverify/internal/platform/redis"
)

const redisImage = "redis:7-alpine"

// RedisContainer is a throwaway admission store. Config carries the URL in
// the same shape the backend reads from REDIS_URL.
type RedisContainer struct {
	Container *tcredis.RedisContainer
	Config    config.Redis
	Client    *redis.Client
}

// NewRedisContainer starts Redis and connects through the platform client so
// pool settings match production.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcredis.Run(ctx, redisImage)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(context.Background())
		t.Fatalf("redis connection string: %v", err)
	}

	cfg := config.Redis{URL: url, PoolSize: 20, DialTimeout: 5 * time.Second}
	client, err := platformredis.New(ctx, cfg)
	if err != nil {
		_ = container.Terminate(context.Background())
		t.Fatalf("connect redis: %v", err)
	}

	return &RedisContainer{Container: container, Config: cfg, Client: client.Client}
}

// FlushAll empties every admission window.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
