package patient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/caio-healthchain/ms-patients/pkg/logger"
	"github.com/caio-healthchain/ms-patients/pkg/types"
)

const cacheKeyPrefix = "patient"

// RedisCache is the read-path cache in front of the read projection.
// Values are stored as JSON; invalidation is pattern-based because
// search pages are keyed by a filter signature and cannot be targeted
// individually.
type RedisCache struct {
	client *redis.Client
	logger *logger.Logger
}

// NewRedisCache creates a Redis-backed cache
func NewRedisCache(client *redis.Client, log *logger.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		logger: log,
	}
}

// Get loads the value stored under key into dest. The second return is
// false on a miss.
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache value decode failed: %w", err)
	}
	return true, nil
}

// Set stores value under key with the given TTL
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache value encode failed: %w", err)
	}

	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Invalidate removes every key matching the given pattern
func (c *RedisCache) Invalidate(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache invalidation failed: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan failed: %w", err)
	}
	return nil
}

// NoopCache disables caching. The system runs correctly, if less
// efficiently, with this implementation wired in.
type NoopCache struct{}

// NewNoopCache creates a cache that never hits
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

// Get always misses
func (c *NoopCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	return false, nil
}

// Set discards the value
func (c *NoopCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

// Invalidate does nothing
func (c *NoopCache) Invalidate(ctx context.Context, pattern string) error {
	return nil
}

// Cache key builders. Mutating commands invalidate the point keys of
// the affected patient plus every search page.

func cacheKeyID(id string) string {
	return fmt.Sprintf("%s:id:%s", cacheKeyPrefix, id)
}

func cacheKeyCPF(cpf string) string {
	return fmt.Sprintf("%s:cpf:%s", cacheKeyPrefix, cpf)
}

func cacheKeyMRN(mrn string) string {
	return fmt.Sprintf("%s:mrn:%s", cacheKeyPrefix, mrn)
}

func cacheKeySearchPattern() string {
	return fmt.Sprintf("%s:search:*", cacheKeyPrefix)
}

// cacheKeySearch derives a stable signature for a filter+pagination
// combination
func cacheKeySearch(filters *types.SearchFilters, pagination *types.Pagination) string {
	payload, _ := json.Marshal(struct {
		F *types.SearchFilters `json:"f"`
		P *types.Pagination    `json:"p"`
	}{filters, pagination})

	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%s:search:%s", cacheKeyPrefix, hex.EncodeToString(sum[:16]))
}
