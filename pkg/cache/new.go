package cache

import "fmt"

// New 创建计数器
func New(cfg *Config) (Counter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		c   Counter
		err error
	)
	switch cfg.Driver {
	case DriverRedis:
		c, err = newRedisCounter(cfg)
	case DriverMemory:
		c = newMemoryCounter(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported driver type", ErrCacheInvalidConfig)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Tracing {
		c = NewTracing(c)
	}
	return c, nil
}

// NewWithOptions 使用 Options 模式创建计数器
func NewWithOptions(opts ...Option) (Counter, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return New(cfg)
}
