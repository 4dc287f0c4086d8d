package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/mediapress/transcoder/pkg/models"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// NewCacheWithClient wraps an existing client, used by tests.
func NewCacheWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// SourceKey derives the cache identity of an input: the CMS asset
// reference when bound, otherwise the hash of the external URL.
func SourceKey(input *models.Input) string {
	if input == nil {
		return ""
	}
	if input.AssetID > 0 {
		return fmt.Sprintf("asset:%d", input.AssetID)
	}
	if hash := input.URLHash(); hash != "" {
		return fmt.Sprintf("url:%s", hash)
	}
	return ""
}

// JobKey derives the cache identity of a job, used when an input has
// no identity of its own.
func JobKey(jobID int64) string {
	return fmt.Sprintf("job:%d", jobID)
}

// Output Cache Operations
//
// Outputs are memoized under the identity of their source so lookups
// from CMS templates do not hit the database on every render.

// SetOutputs caches the outputs of a source
func (c *Cache) SetOutputs(ctx context.Context, sourceKey string, outputs []*models.Output, ttl time.Duration) error {
	if sourceKey == "" {
		return nil
	}

	data, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("failed to marshal outputs: %w", err)
	}

	key := fmt.Sprintf("outputs:%s", sourceKey)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetOutputs retrieves the outputs of a source from cache
func (c *Cache) GetOutputs(ctx context.Context, sourceKey string) ([]*models.Output, error) {
	key := fmt.Sprintf("outputs:%s", sourceKey)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get outputs from cache: %w", err)
	}

	var outputs []*models.Output
	if err := json.Unmarshal(data, &outputs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outputs: %w", err)
	}

	return outputs, nil
}

// DeleteOutputs removes a source's outputs from cache
func (c *Cache) DeleteOutputs(ctx context.Context, sourceKey string) error {
	key := fmt.Sprintf("outputs:%s", sourceKey)
	return c.client.Del(ctx, key).Err()
}

// Storage Cache Operations

// SetVolumeStorage caches the storage configuration resolved for a CMS
// volume so the resolution hooks run once per volume, not per job.
func (c *Cache) SetVolumeStorage(ctx context.Context, volumeID int64, storage *models.Storage, ttl time.Duration) error {
	data, err := json.Marshal(storage)
	if err != nil {
		return fmt.Errorf("failed to marshal storage: %w", err)
	}

	key := fmt.Sprintf("storage:volume:%d", volumeID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetVolumeStorage retrieves a volume's storage configuration from cache
func (c *Cache) GetVolumeStorage(ctx context.Context, volumeID int64) (*models.Storage, error) {
	key := fmt.Sprintf("storage:volume:%d", volumeID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get storage from cache: %w", err)
	}

	var storage models.Storage
	if err := json.Unmarshal(data, &storage); err != nil {
		return nil, fmt.Errorf("failed to unmarshal storage: %w", err)
	}

	return &storage, nil
}

// Locking Operations

// AcquireLock attempts to acquire a lock on a shared resource, held
// until released or until the TTL expires. It reports whether this
// caller got the lock.
func (c *Cache) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.SetNX(ctx, key, "locked", ttl).Result()
}

// ReleaseLock releases a lock acquired with AcquireLock.
func (c *Cache) ReleaseLock(ctx context.Context, resource string) error {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.Del(ctx, key).Err()
}

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
