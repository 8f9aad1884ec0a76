// Package cache keeps the log-analysis statistics query in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/telhawk-systems/socdetect/internal/metrics"
	"github.com/telhawk-systems/socdetect/internal/models"
)

const statsKey = "socdetect:stats:log_analysis"

// NewClient connects to the Redis server at url (redis://host:port/db).
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// StatsCache caches LogAnalysisStats. A nil client disables it.
type StatsCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStatsCache creates a statistics cache whose entries expire after ttl.
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{redis: client, ttl: ttl}
}

// IsEnabled reports whether a Redis client is configured.
func (c *StatsCache) IsEnabled() bool {
	return c != nil && c.redis != nil
}

// Get returns the cached statistics. A miss returns (nil, false, nil).
func (c *StatsCache) Get(ctx context.Context) (*models.LogAnalysisStats, bool, error) {
	if !c.IsEnabled() {
		return nil, false, nil
	}

	data, err := c.redis.Get(ctx, statsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to get cached stats: %w", err)
	}

	var stats models.LogAnalysisStats
	if err := json.Unmarshal(data, &stats); err != nil {
		metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to unmarshal cached stats: %w", err)
	}
	metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
	return &stats, true, nil
}

// Set stores stats until the TTL expires.
func (c *StatsCache) Set(ctx context.Context, stats *models.LogAnalysisStats) error {
	if !c.IsEnabled() {
		return nil
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	if err := c.redis.Set(ctx, statsKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache stats: %w", err)
	}
	return nil
}

// Invalidate drops the cached statistics.
func (c *StatsCache) Invalidate(ctx context.Context) error {
	if !c.IsEnabled() {
		return nil
	}
	if err := c.redis.Del(ctx, statsKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached stats: %w", err)
	}
	return nil
}
