package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"vaultScope/internal/model"
	"vaultScope/internal/storage"
)

const (
	KeyVaultView   = "vaultscope:vault"
	ChannelUnlocks = "vaultscope:unlockable"
)

// Cache keeps the latest view of each vault in Redis with a TTL and announces
// withdrawable vaults on a pub/sub channel.
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Cache{client: client, ttl: ttl}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Name() string {
	return "redis"
}

// PutSnapshots stores every refreshed view and publishes the withdrawable ones.
func (c *Cache) PutSnapshots(ctx context.Context, views []model.VaultView) error {
	pipe := c.client.Pipeline()
	queued := 0
	for _, view := range views {
		if view.RefreshedAt.IsZero() {
			continue
		}
		data, err := json.Marshal(view)
		if err != nil {
			return fmt.Errorf("cache marshal error: %w", err)
		}
		pipe.Set(ctx, ViewKey(view.Address), data, c.ttl)
		if view.Eligibility.CanWithdraw {
			pipe.Publish(ctx, ChannelUnlocks, view.Address)
		}
		queued++
	}
	if queued == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

// GetView returns the cached JSON view of a vault.
func (c *Cache) GetView(ctx context.Context, address string) (json.RawMessage, error) {
	val, err := c.client.Get(ctx, ViewKey(address)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get error: %w", err)
	}
	return json.RawMessage(val), nil
}

// ViewKey is the Redis key of a vault's latest view.
func ViewKey(address string) string {
	return fmt.Sprintf("%s:%s", KeyVaultView, address)
}
