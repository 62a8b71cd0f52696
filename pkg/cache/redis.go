package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient 按模式创建 Redis 客户端并检查连通性
func NewRedisClient(ctx context.Context, cfg *RedisConfig) (redis.UniversalClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	switch cfg.Mode {
	case RedisCluster:
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addrs,
			Username:     cfg.Username,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	case RedisSentinel:
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.MasterName,
			SentinelAddrs: cfg.Addrs,
			Username:      cfg.Username,
			Password:      cfg.Password,
			DB:            cfg.DB,
			PoolSize:      cfg.PoolSize,
			MinIdleConns:  cfg.MinIdleConns,
			MaxRetries:    cfg.MaxRetries,
			DialTimeout:   cfg.DialTimeout,
			ReadTimeout:   cfg.ReadTimeout,
			WriteTimeout:  cfg.WriteTimeout,
		})
	default:
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", ErrCacheConnection, err)
	}
	return client, nil
}

// redisCounter Redis 计数器
type redisCounter struct {
	client    redis.UniversalClient
	keyPrefix string
	closed    atomic.Bool
}

func newRedisCounter(cfg *Config) (Counter, error) {
	client, err := NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		return nil, err
	}
	return NewRedisCounter(client, cfg.KeyPrefix), nil
}

// NewRedisCounter 复用已有客户端创建计数器，Close 不会关闭客户端
func NewRedisCounter(client redis.UniversalClient, keyPrefix string) Counter {
	return &redisCounter{client: client, keyPrefix: keyPrefix}
}

// Incr 计数加一
func (r *redisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if r.closed.Load() {
		return 0, ErrCacheClosed
	}
	fullKey := r.keyPrefix + key

	val, err := r.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCacheOperation, err)
	}
	if val == 1 {
		if err := r.client.PExpire(ctx, fullKey, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrCacheOperation, err)
		}
	}
	return val, nil
}

// Reset 清除计数
func (r *redisCounter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheOperation, err)
	}
	return nil
}

// Ping 检查连接
func (r *redisCounter) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheConnection, err)
	}
	return nil
}

// Close 标记关闭
func (r *redisCounter) Close() error {
	r.closed.Store(true)
	return nil
}
