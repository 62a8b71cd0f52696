package cache

import (
	"fmt"
	"time"
)

// DriverType 驱动类型
type DriverType string

const (
	DriverRedis  DriverType = "redis"
	DriverMemory DriverType = "memory"
)

// RedisMode Redis 模式
type RedisMode string

const (
	RedisStandalone RedisMode = "standalone"
	RedisCluster    RedisMode = "cluster"
	RedisSentinel   RedisMode = "sentinel"
)

// Config 计数器配置
type Config struct {
	Driver    DriverType    `mapstructure:"driver" yaml:"driver"`
	Redis     *RedisConfig  `mapstructure:"redis" yaml:"redis,omitempty"`
	Memory    *MemoryConfig `mapstructure:"memory" yaml:"memory,omitempty"`
	KeyPrefix string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	Tracing   bool          `mapstructure:"tracing" yaml:"tracing"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`   // 地址（单机）
	Addrs        []string      `mapstructure:"addrs" yaml:"addrs"` // 地址列表（集群/哨兵）
	Mode         RedisMode     `mapstructure:"mode" yaml:"mode"`
	Username     string        `mapstructure:"username" yaml:"username"`
	Password     string        `mapstructure:"password" yaml:"password"`
	DB           int           `mapstructure:"db" yaml:"db"`
	PoolSize     int           `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// 哨兵模式
	MasterName string `mapstructure:"master_name" yaml:"master_name"`
}

// MemoryConfig 内存计数器配置
type MemoryConfig struct {
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Driver:    DriverMemory,
		Memory:    DefaultMemoryConfig(),
		KeyPrefix: "wsgate:rl:",
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		Mode:         RedisStandalone,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// DefaultMemoryConfig 返回默认内存配置
func DefaultMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		CleanupInterval: time.Minute,
	}
}

// Option 配置选项
type Option func(*Config)

// WithRedis 使用 Redis
func WithRedis(cfg *RedisConfig) Option {
	return func(c *Config) {
		c.Driver = DriverRedis
		c.Redis = cfg
	}
}

// WithMemory 使用进程内存
func WithMemory(cfg *MemoryConfig) Option {
	return func(c *Config) {
		c.Driver = DriverMemory
		c.Memory = cfg
	}
}

// WithKeyPrefix 设置键前缀
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}

// WithTracing 为每次操作创建 span
func WithTracing(enable bool) Option {
	return func(c *Config) {
		c.Tracing = enable
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverRedis:
		if c.Redis == nil {
			return fmt.Errorf("%w: redis config is required", ErrCacheInvalidConfig)
		}
		return c.Redis.Validate()
	case DriverMemory:
		return nil
	default:
		return fmt.Errorf("%w: invalid driver type %q", ErrCacheInvalidConfig, c.Driver)
	}
}

// Validate 验证 Redis 配置
func (c *RedisConfig) Validate() error {
	switch c.Mode {
	case RedisStandalone, "":
		if c.Addr == "" {
			return fmt.Errorf("%w: redis addr is required for standalone mode", ErrCacheInvalidConfig)
		}
	case RedisCluster:
		if len(c.Addrs) < 3 {
			return fmt.Errorf("%w: redis cluster requires at least 3 nodes", ErrCacheInvalidConfig)
		}
	case RedisSentinel:
		if len(c.Addrs) == 0 {
			return fmt.Errorf("%w: redis sentinel requires at least 1 sentinel node", ErrCacheInvalidConfig)
		}
		if c.MasterName == "" {
			return fmt.Errorf("%w: redis sentinel requires master name", ErrCacheInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: invalid redis mode %q", ErrCacheInvalidConfig, c.Mode)
	}
	return nil
}
