// Package cache provides the Redis-backed cache the compiled-program
// and schema documents are served through. It is an accelerator in
// front of Postgres and the compiler, never a source of truth: every
// caller treats a miss or a Redis failure as "compute it fresh".
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/caolo/simcore/config"
	"github.com/caolo/simcore/errors"
	"github.com/caolo/simcore/pkg/monitoring"
)

// CacheInterface is the contract the script store caches through:
// byte-valued get/set/delete plus the connectivity probe the health
// endpoint reports.
type CacheInterface interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Health(ctx context.Context) error
	Close() error
}

// RedisCache implements CacheInterface over a single Redis node or a
// cluster, selected by whether the configured host is a comma-joined
// address list. Lookup outcomes feed the shared prometheus cache
// counter rather than a private tally.
type RedisCache struct {
	client        *redis.Client
	clusterClient *redis.ClusterClient
	config        *config.RedisConfig
	logger        *zap.Logger
	metrics       *monitoring.Metrics
	isCluster     bool
	keyPrefix     string
}

const cacheMetricName = "redis"

// NewRedisCache connects to Redis per cfg and verifies connectivity
// before returning.
func NewRedisCache(cfg *config.RedisConfig, logger *zap.Logger, metrics *monitoring.Metrics) (*RedisCache, error) {
	cache := &RedisCache{
		config:    cfg,
		logger:    logger,
		metrics:   metrics,
		keyPrefix: "simcore:",
	}

	// Check if cluster mode is configured
	addresses := strings.Split(cfg.Host, ",")
	if len(addresses) > 1 {
		cache.isCluster = true
		cache.clusterClient = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:              addresses,
			Password:           cfg.Password,
			MaxRetries:         cfg.MaxRetries,
			MinRetryBackoff:    cfg.MinRetryBackoff,
			MaxRetryBackoff:    cfg.MaxRetryBackoff,
			DialTimeout:        cfg.DialTimeout,
			ReadTimeout:        cfg.ReadTimeout,
			WriteTimeout:       cfg.WriteTimeout,
			PoolSize:           cfg.PoolSize,
			MinIdleConns:       cfg.MinIdleConns,
			MaxConnAge:         cfg.MaxConnAge,
			PoolTimeout:        cfg.PoolTimeout,
			IdleTimeout:        cfg.IdleTimeout,
			IdleCheckFrequency: cfg.IdleCheckFrequency,
		})
	} else {
		cache.client = redis.NewClient(&redis.Options{
			Addr:               fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password:           cfg.Password,
			DB:                 cfg.Database,
			MaxRetries:         cfg.MaxRetries,
			MinRetryBackoff:    cfg.MinRetryBackoff,
			MaxRetryBackoff:    cfg.MaxRetryBackoff,
			DialTimeout:        cfg.DialTimeout,
			ReadTimeout:        cfg.ReadTimeout,
			WriteTimeout:       cfg.WriteTimeout,
			PoolSize:           cfg.PoolSize,
			MinIdleConns:       cfg.MinIdleConns,
			MaxConnAge:         cfg.MaxConnAge,
			PoolTimeout:        cfg.PoolTimeout,
			IdleTimeout:        cfg.IdleTimeout,
			IdleCheckFrequency: cfg.IdleCheckFrequency,
		})
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.Health(ctx); err != nil {
		return nil, errors.NewExternalError("redis", fmt.Sprintf("Failed to connect: %v", err))
	}

	logger.Info("Redis cache initialized successfully",
		zap.Bool("cluster_mode", cache.isCluster),
		zap.String("address", cfg.Host),
		zap.Int("database", cfg.Database))

	return cache, nil
}

func (r *RedisCache) observe(outcome string) {
	if r.metrics != nil {
		r.metrics.CacheHits.WithLabelValues(cacheMetricName, outcome).Inc()
	}
}

// Get retrieves a value from cache
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	fullKey := r.keyPrefix + key
	var result *redis.StringCmd

	if r.isCluster {
		result = r.clusterClient.Get(ctx, fullKey)
	} else {
		result = r.client.Get(ctx, fullKey)
	}

	value, err := result.Bytes()
	if err != nil {
		if err == redis.Nil {
			r.observe("miss")
			return nil, errors.NewNotFoundError("cache key")
		}
		r.observe("error")
		r.logger.Error("Cache get error", zap.String("key", key), zap.Error(err))
		return nil, errors.NewExternalError("redis", err.Error())
	}

	r.observe("hit")
	return value, nil
}

// Set stores a value in cache with expiration
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	fullKey := r.keyPrefix + key
	var serialized []byte
	var err error

	// Serialize value
	switch v := value.(type) {
	case []byte:
		serialized = v
	case string:
		serialized = []byte(v)
	default:
		serialized, err = json.Marshal(value)
		if err != nil {
			r.observe("error")
			return errors.NewInternalError(fmt.Sprintf("Failed to serialize cache value: %v", err))
		}
	}

	var result *redis.StatusCmd
	if r.isCluster {
		result = r.clusterClient.Set(ctx, fullKey, serialized, expiration)
	} else {
		result = r.client.Set(ctx, fullKey, serialized, expiration)
	}

	if err := result.Err(); err != nil {
		r.observe("error")
		r.logger.Error("Cache set error", zap.String("key", key), zap.Error(err))
		return errors.NewExternalError("redis", err.Error())
	}

	return nil
}

// Delete removes a key from cache
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	fullKey := r.keyPrefix + key
	var result *redis.IntCmd

	if r.isCluster {
		result = r.clusterClient.Del(ctx, fullKey)
	} else {
		result = r.client.Del(ctx, fullKey)
	}

	if err := result.Err(); err != nil {
		r.observe("error")
		r.logger.Error("Cache delete error", zap.String("key", key), zap.Error(err))
		return errors.NewExternalError("redis", err.Error())
	}

	return nil
}

// Health checks Redis connectivity
func (r *RedisCache) Health(ctx context.Context) error {
	var err error

	if r.isCluster {
		err = r.clusterClient.Ping(ctx).Err()
	} else {
		err = r.client.Ping(ctx).Err()
	}

	if err != nil {
		return errors.NewExternalError("redis", fmt.Sprintf("Health check failed: %v", err))
	}

	return nil
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	if r.isCluster {
		return r.clusterClient.Close()
	}
	return r.client.Close()
}
