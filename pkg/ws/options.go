package ws

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/tokmz/wsgate/pkg/logger"
	"github.com/tokmz/wsgate/pkg/queue"
)

// Config 网关配置
type Config struct {
	MaxConnections int  // 最大连接数（含握手中的连接）
	StrictPatterns bool // 重复路由模式视为错误
	EventQueueSize int  // 每条连接待处理事件缓冲

	Transport TransportConfig

	Queue          *queue.Queue
	Logger         logger.Logger
	Metrics        Metrics
	TracerProvider trace.TracerProvider
	IDGenerator    func() string

	transport Transport
}

// TransportConfig gorilla 传输层配置
type TransportConfig struct {
	ReadBufferSize    int           `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize   int           `mapstructure:"write_buffer_size" yaml:"write_buffer_size"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
	MaxMessageSize    int64         `mapstructure:"max_message_size" yaml:"max_message_size"`
	SendQueueSize     int           `mapstructure:"send_queue_size" yaml:"send_queue_size"` // 超过即背压
	WriteWait         time.Duration `mapstructure:"write_wait" yaml:"write_wait"`
	PingInterval      time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	PongWait          time.Duration `mapstructure:"pong_wait" yaml:"pong_wait"`
	CloseGracePeriod  time.Duration `mapstructure:"close_grace_period" yaml:"close_grace_period"`
	EnableCompression bool          `mapstructure:"enable_compression" yaml:"enable_compression"`
	// AllowedOrigins 为空时只允许同源，包含 "*" 时允许所有来源
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxConnections: 10000,
		EventQueueSize: 64,
		Transport:      DefaultTransportConfig(),
		Logger:         logger.Nop(),
		Metrics:        NoopMetrics{},
	}
}

// DefaultTransportConfig 默认传输层配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   512 * 1024,
		SendQueueSize:    256,
		WriteWait:        10 * time.Second,
		PingInterval:     30 * time.Second,
		PongWait:         90 * time.Second,
		CloseGracePeriod: 2 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.MaxConnections <= 0 {
		return fmt.Errorf("%w: MaxConnections must be positive, got %d", ErrInvalidConfig, c.MaxConnections)
	}
	if c.EventQueueSize <= 0 {
		return fmt.Errorf("%w: EventQueueSize must be positive, got %d", ErrInvalidConfig, c.EventQueueSize)
	}
	return c.Transport.Validate()
}

// Validate 验证传输层配置
func (c *TransportConfig) Validate() error {
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("%w: SendQueueSize must be positive, got %d", ErrInvalidConfig, c.SendQueueSize)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: MaxMessageSize must be positive, got %d", ErrInvalidConfig, c.MaxMessageSize)
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("%w: PingInterval must be positive, got %v", ErrInvalidConfig, c.PingInterval)
	}
	if c.PongWait <= c.PingInterval {
		return fmt.Errorf("%w: PongWait (%v) must be greater than PingInterval (%v)",
			ErrInvalidConfig, c.PongWait, c.PingInterval)
	}
	if c.WriteWait <= 0 {
		return fmt.Errorf("%w: WriteWait must be positive, got %v", ErrInvalidConfig, c.WriteWait)
	}
	return nil
}

// Option 配置选项
type Option func(*Config)

// WithMaxConnections 设置最大连接数
func WithMaxConnections(max int) Option {
	return func(c *Config) {
		c.MaxConnections = max
	}
}

// WithStrictPatterns 重复路由模式返回 ErrDuplicatePattern
func WithStrictPatterns(strict bool) Option {
	return func(c *Config) {
		c.StrictPatterns = strict
	}
}

// WithEventQueueSize 设置每条连接的事件缓冲
func WithEventQueueSize(size int) Option {
	return func(c *Config) {
		c.EventQueueSize = size
	}
}

// WithTransportConfig 设置传输层配置
func WithTransportConfig(tc TransportConfig) Option {
	return func(c *Config) {
		c.Transport = tc
	}
}

// WithSendQueueSize 设置传输层发送缓冲，超过即背压
func WithSendQueueSize(size int) Option {
	return func(c *Config) {
		c.Transport.SendQueueSize = size
	}
}

// WithAllowedOrigins 设置 Origin 白名单
// 示例：WithAllowedOrigins("https://example.com", "https://app.example.com")
func WithAllowedOrigins(origins ...string) Option {
	return func(c *Config) {
		c.Transport.AllowedOrigins = origins
	}
}

// WithAllowAllOrigins 允许所有来源（仅用于开发环境）
func WithAllowAllOrigins() Option {
	return WithAllowedOrigins("*")
}

// WithEnableCompression 启用 permessage-deflate
func WithEnableCompression(enable bool) Option {
	return func(c *Config) {
		c.Transport.EnableCompression = enable
	}
}

// WithQueue 设置持久化发送队列，默认使用内存存储
func WithQueue(q *queue.Queue) Option {
	return func(c *Config) {
		c.Queue = q
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMetrics 设置监控
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithTracerProvider 设置 TracerProvider，默认使用全局 provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) {
		c.TracerProvider = tp
	}
}

// WithIDGenerator 设置客户端 ID 生成器，默认 uuid v4
func WithIDGenerator(fn func() string) Option {
	return func(c *Config) {
		c.IDGenerator = fn
	}
}

// WithTransport 替换传输层，默认使用 gorilla/websocket
func WithTransport(t Transport) Option {
	return func(c *Config) {
		c.transport = t
	}
}
