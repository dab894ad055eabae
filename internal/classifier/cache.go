package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/as-progression-tracker/internal/domain"
)

const redisKeyPrefix = "as-tracker:proba:"

// SharedCache is a second-tier probability store shared between processes
type SharedCache interface {
	Get(ctx context.Context, key string) (float64, bool, error)
	Set(ctx context.Context, key string, probability float64) error
}

// CachingClassifier memoizes probabilities by feature vector. Only successful
// results are cached; the wrapped classifier must be deterministic.
type CachingClassifier struct {
	next      domain.Classifier
	namespace string
	memory    *lru.Cache
	shared    SharedCache
	logger    *logrus.Logger
}

// NewCachingClassifier wraps next with an LRU memory tier and an optional shared tier.
// namespace should identify the model so that a new artifact does not reuse old results.
func NewCachingClassifier(next domain.Classifier, namespace string, maxItems int, shared SharedCache, logger *logrus.Logger) (*CachingClassifier, error) {
	if maxItems <= 0 {
		maxItems = 1000
	}
	memory, err := lru.New(maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &CachingClassifier{
		next:      next,
		namespace: namespace,
		memory:    memory,
		shared:    shared,
		logger:    logger,
	}, nil
}

// PredictProba implements domain.Classifier
func (c *CachingClassifier) PredictProba(ctx context.Context, vector domain.FeatureVector) (float64, error) {
	key := CacheKey(c.namespace, vector)

	if cached, ok := c.memory.Get(key); ok {
		return cached.(float64), nil
	}

	if c.shared != nil {
		p, found, err := c.shared.Get(ctx, key)
		if err != nil {
			c.logger.WithError(err).Warn("Shared prediction cache read failed")
		} else if found {
			c.memory.Add(key, p)
			return p, nil
		}
	}

	p, err := c.next.PredictProba(ctx, vector)
	if err != nil {
		return 0, err
	}

	c.memory.Add(key, p)
	if c.shared != nil {
		if err := c.shared.Set(ctx, key, p); err != nil {
			c.logger.WithError(err).Warn("Shared prediction cache write failed")
		}
	}
	return p, nil
}

// Len returns the number of memoized vectors held in memory
func (c *CachingClassifier) Len() int {
	return c.memory.Len()
}

// CacheKey derives a stable key for a feature vector under a model namespace
func CacheKey(namespace string, vector domain.FeatureVector) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	for _, v := range vector.Values() {
		h.Write([]byte{'|'})
		h.Write([]byte(strconv.FormatFloat(v, 'g', -1, 64)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RedisCache stores probabilities in Redis
type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{redis: client, ttl: ttl}, nil
}

// Get implements SharedCache
func (r *RedisCache) Get(ctx context.Context, key string) (float64, bool, error) {
	val, err := r.redis.Get(ctx, redisKeyPrefix+key).Float64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read prediction cache: %w", err)
	}
	return val, true, nil
}

// Set implements SharedCache
func (r *RedisCache) Set(ctx context.Context, key string, probability float64) error {
	return r.redis.Set(ctx, redisKeyPrefix+key, probability, r.ttl).Err()
}

// Close releases the Redis connection pool
func (r *RedisCache) Close() error {
	return r.redis.Close()
}
