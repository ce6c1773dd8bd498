// Package cache implements the memoization boundary around the pure
// estimator. The engine itself never caches; repeated estimation of an
// identical rule set is deduplicated here, keyed by a canonical
// serialization of the rules.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radiusdt/vector-reach/internal/models"
)

const keyPrefix = "reach:estimate:"

// RedisEstimateCache stores estimates in Redis with a TTL.
type RedisEstimateCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisEstimateCache constructs an estimate cache.
func NewRedisEstimateCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisEstimateCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisEstimateCache{client: client, ttl: ttl, logger: logger}
}

// Get returns a cached estimate for the rule set, if present. Cache failures
// are treated as misses.
func (c *RedisEstimateCache) Get(ctx context.Context, rules *models.TargetingRules) (*models.AudienceEstimate, bool) {
	key, err := Key(rules)
	if err != nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("estimate cache get failed", zap.Error(err))
		}
		return nil, false
	}
	var est models.AudienceEstimate
	if err := json.Unmarshal(raw, &est); err != nil {
		c.logger.Debug("estimate cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &est, true
}

// Set stores an estimate. Best-effort: failures are logged, never surfaced.
func (c *RedisEstimateCache) Set(ctx context.Context, rules *models.TargetingRules, est *models.AudienceEstimate) {
	key, err := Key(rules)
	if err != nil {
		return
	}
	raw, err := json.Marshal(est)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Debug("estimate cache set failed", zap.Error(err))
	}
}

// Key derives the canonical cache key for a rule set: a SHA-256 over its
// JSON form. Identical rule sets always map to the same key.
func Key(rules *models.TargetingRules) (string, error) {
	if rules == nil {
		rules = &models.TargetingRules{}
	}
	raw, err := json.Marshal(rules)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return keyPrefix + hex.EncodeToString(sum[:]), nil
}
