package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	syncapp "github.com/sellersync/backend/internal/application/sync"
)

// RedisConfig holds the Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisItemSKUCache caches marketplace item id to seller SKU mappings in
// Redis. Item SKUs change rarely; a hit spares the pipeline an upstream item
// lookup, which is the expensive part of SKU enrichment. All cache failures
// degrade to a miss so Redis outages never break a run.
type RedisItemSKUCache struct {
	client     *redis.Client
	ownsClient bool
	ttl        time.Duration
	logger     *zap.Logger
}

var _ syncapp.ItemSKUCache = (*RedisItemSKUCache)(nil)

// NewRedisItemSKUCache creates a cache with its own Redis client
func NewRedisItemSKUCache(cfg RedisConfig, ttl time.Duration, logger *zap.Logger) (*RedisItemSKUCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := NewRedisItemSKUCacheWithClient(client, ttl, logger)
	cache.ownsClient = true
	return cache, nil
}

// NewRedisItemSKUCacheWithClient creates a cache over an existing client.
// The caller retains ownership of the client and is responsible for closing it.
func NewRedisItemSKUCacheWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisItemSKUCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisItemSKUCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func itemSKUKey(itemID string) string {
	return "item_sku:" + itemID
}

// Get returns the cached SKU for an item id
func (c *RedisItemSKUCache) Get(ctx context.Context, itemID string) (string, bool) {
	sku, err := c.client.Get(ctx, itemSKUKey(itemID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("Item SKU cache read failed",
				zap.String("item_id", itemID),
				zap.Error(err))
		}
		return "", false
	}
	return sku, true
}

// Set stores the SKU for an item id
func (c *RedisItemSKUCache) Set(ctx context.Context, itemID, sku string) {
	if sku == "" {
		return
	}
	if err := c.client.Set(ctx, itemSKUKey(itemID), sku, c.ttl).Err(); err != nil {
		c.logger.Debug("Item SKU cache write failed",
			zap.String("item_id", itemID),
			zap.Error(err))
	}
}

// Close releases the Redis client if the cache owns it
func (c *RedisItemSKUCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}
