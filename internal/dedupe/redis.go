package dedupe

import (
	"context"
	"fmt"
	"time"

	"tradechat-go/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisGuard shares delivery ids across server instances using SETNX.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(ctx context.Context, cfg models.RedisConfig) (*RedisGuard, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	zap.L().Info("Connected to Redis for delivery dedupe",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB))
	return newRedisGuard(client, cfg.Prefix, cfg.DeliveryTTL), nil
}

func newRedisGuard(client *redis.Client, prefix string, ttl time.Duration) *RedisGuard {
	if prefix == "" {
		prefix = "tradechat:delivery:"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{client: client, prefix: prefix, ttl: ttl}
}

func (g *RedisGuard) FirstDelivery(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}

	key := g.prefix + id
	ok, err := g.client.SetNX(ctx, key, "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("SETNX failed for %s: %w", key, err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	key := g.prefix + id
	if err := g.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("DEL failed for %s: %w", key, err)
	}
	return nil
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}
