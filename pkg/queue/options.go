package queue

import (
	"time"

	"github.com/tokmz/wsgate/pkg/logger"
)

// CloseConnectionError 发送失败时关闭连接使用的状态码（RFC 6455 internal error）
const CloseConnectionError = 1011

// Config 队列配置
type Config struct {
	// StrictOrdering 客户端仍有积压时，新消息直接入队而不尝试直发
	StrictOrdering bool
	// FatalCloseCode 连接错误时使用的关闭码
	FatalCloseCode int
	// FilterCapacity 布隆过滤器预估的客户端数量
	FilterCapacity uint
	// FilterFalsePositive 布隆过滤器误判率
	FilterFalsePositive float64

	Logger logger.Logger
	Now    func() time.Time
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		FatalCloseCode:      CloseConnectionError,
		FilterCapacity:      100000,
		FilterFalsePositive: 0.01,
		Logger:              logger.Nop(),
		Now:                 time.Now,
	}
}

// Option 配置选项
type Option func(*Config)

// WithStrictOrdering 积压期间新消息排在积压之后
func WithStrictOrdering(enable bool) Option {
	return func(c *Config) {
		c.StrictOrdering = enable
	}
}

// WithFatalCloseCode 设置连接错误时的关闭码
func WithFatalCloseCode(code int) Option {
	return func(c *Config) {
		c.FatalCloseCode = code
	}
}

// WithFilter 设置布隆过滤器容量与误判率
func WithFilter(capacity uint, falsePositive float64) Option {
	return func(c *Config) {
		c.FilterCapacity = capacity
		c.FilterFalsePositive = falsePositive
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithClock 设置时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Now = now
	}
}
