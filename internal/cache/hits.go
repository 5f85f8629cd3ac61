package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/clone-sequence-server/internal/domain"
)

const keyPrefix = "cloneseq:hits:"

// Stats represents cache performance statistics
type Stats struct {
	MemoryHits   int64 `json:"memory_hits"`
	MemoryMisses int64 `json:"memory_misses"`
	RedisHits    int64 `json:"redis_hits"`
	RedisMisses  int64 `json:"redis_misses"`
	RedisErrors  int64 `json:"redis_errors"`
}

// cachedHits is the Redis envelope for one search result
type cachedHits struct {
	Hits     []domain.HitRecord `json:"hits"`
	CachedAt time.Time          `json:"cached_at"`
}

// HitCache keeps search results in two tiers: an in-process LRU for hot
// entries and an optional Redis instance shared between processes. Redis
// problems degrade to a miss and are never returned to callers.
type HitCache struct {
	memory   *expirable.LRU[string, []domain.HitRecord]
	redis    *redis.Client
	redisTTL time.Duration
	logger   *logrus.Logger

	statsMu sync.Mutex
	stats   Stats
}

// New creates a hit cache. Redis is only contacted when RedisURL is set.
func New(config domain.CacheConfig, logger *logrus.Logger) (*HitCache, error) {
	if config.RedisURL == "" {
		return NewWithClient(config, nil, logger), nil
	}

	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(config, client, logger), nil
}

// NewWithClient creates a hit cache around an existing Redis client, which may be nil
func NewWithClient(config domain.CacheConfig, client *redis.Client, logger *logrus.Logger) *HitCache {
	if config.MemoryEntries <= 0 {
		config.MemoryEntries = 1000
	}
	if config.MemoryTTL <= 0 {
		config.MemoryTTL = time.Hour
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 24 * time.Hour
	}

	return &HitCache{
		memory:   expirable.NewLRU[string, []domain.HitRecord](config.MemoryEntries, nil, config.MemoryTTL),
		redis:    client,
		redisTTL: config.DefaultTTL,
		logger:   logger,
	}
}

// Key derives the cache key for a normalized request against a resolved
// database. The hit cap is part of the key since it changes the result.
func Key(req domain.SearchRequest, database string, maxHits int) string {
	h := sha256.New()
	for _, part := range []string{string(req.Program), database, req.Sequence, strconv.Itoa(maxHits)} {
		h.Write([]byte(part))
		h.Write([]byte{'|'})
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get looks the key up in memory, then Redis. A Redis hit is promoted to memory.
func (c *HitCache) Get(ctx context.Context, key string) ([]domain.HitRecord, bool) {
	if hits, ok := c.memory.Get(key); ok {
		c.record(func(s *Stats) { s.MemoryHits++ })
		return cloneHits(hits), true
	}
	c.record(func(s *Stats) { s.MemoryMisses++ })

	if c.redis == nil {
		return nil, false
	}

	raw, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.record(func(s *Stats) { s.RedisMisses++ })
		return nil, false
	}
	if err != nil {
		c.record(func(s *Stats) { s.RedisErrors++ })
		c.logger.WithError(err).Warn("Hit cache lookup in Redis failed")
		return nil, false
	}

	var cached cachedHits
	if err := json.Unmarshal(raw, &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		c.record(func(s *Stats) { s.RedisMisses++ })
		return nil, false
	}

	c.record(func(s *Stats) { s.RedisHits++ })
	c.memory.Add(key, cloneHits(cached.Hits))
	return cached.Hits, true
}

// Set stores hits in both tiers
func (c *HitCache) Set(ctx context.Context, key string, hits []domain.HitRecord) {
	if hits == nil {
		hits = []domain.HitRecord{}
	}
	c.memory.Add(key, cloneHits(hits))

	if c.redis == nil {
		return
	}

	data, err := json.Marshal(cachedHits{Hits: hits, CachedAt: time.Now()})
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode hits for Redis")
		return
	}
	if err := c.redis.Set(ctx, key, data, c.redisTTL).Err(); err != nil {
		c.record(func(s *Stats) { s.RedisErrors++ })
		c.logger.WithError(err).Warn("Hit cache store in Redis failed")
	}
}

// Invalidate drops the key from both tiers
func (c *HitCache) Invalidate(ctx context.Context, key string) error {
	c.memory.Remove(key)
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, key).Err()
}

// Stats returns a snapshot of cache performance statistics
func (c *HitCache) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// HealthMetadata reports tier usage and hit statistics
func (c *HitCache) HealthMetadata() map[string]interface{} {
	stats := c.Stats()
	return map[string]interface{}{
		"memory_entries": c.memory.Len(),
		"redis_enabled":  c.redis != nil,
		"memory_hits":    stats.MemoryHits,
		"memory_misses":  stats.MemoryMisses,
		"redis_hits":     stats.RedisHits,
		"redis_misses":   stats.RedisMisses,
		"redis_errors":   stats.RedisErrors,
	}
}

// Ping checks the Redis tier. It is a no-op without Redis.
func (c *HitCache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

// Close releases the Redis connection pool
func (c *HitCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

func (c *HitCache) record(update func(*Stats)) {
	c.statsMu.Lock()
	update(&c.stats)
	c.statsMu.Unlock()
}

// callers may re-rank or trim results, so the cache never hands out its own slice
func cloneHits(hits []domain.HitRecord) []domain.HitRecord {
	return append([]domain.HitRecord{}, hits...)
}
