package wsgate

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tokmz/wsgate/pkg/logger"
)

// ServerConfig 服务器配置
//
// 升级后的连接由网关自行管理读写超时，这里只限制握手前的请求头读取。
type ServerConfig struct {
	// Addr 监听地址，默认 ":8080"
	Addr string `mapstructure:"addr" yaml:"addr"`

	// ReadHeaderTimeout 读取请求头超时
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`

	// IdleTimeout keep-alive 空闲超时
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// MaxHeaderBytes 最大请求头字节数
	MaxHeaderBytes int `mapstructure:"max_header_bytes" yaml:"max_header_bytes"`
}

// ShutdownConfig 关机配置
type ShutdownConfig struct {
	// Timeout 关机超时时间，默认 10 秒
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// BeforeShutdown 关机前回调
	BeforeShutdown func() `mapstructure:"-" yaml:"-"`

	// AfterShutdown 关机后回调
	AfterShutdown func() `mapstructure:"-" yaml:"-"`
}

// AdminConfig 管理端点配置
type AdminConfig struct {
	// Enabled 是否注册 /healthz /stats /routes /metrics
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Prefix 管理端点前缀，默认为空
	Prefix string `mapstructure:"prefix" yaml:"prefix"`

	// MetricsPath Prometheus 抓取路径，默认 /metrics
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path"`
}

// Config 引擎配置
type Config struct {
	// Mode 运行模式：debug, release, test
	Mode string `mapstructure:"mode" yaml:"mode"`

	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Shutdown ShutdownConfig `mapstructure:"shutdown" yaml:"shutdown"`
	Admin    AdminConfig    `mapstructure:"admin" yaml:"admin"`

	// TrustedProxies 信任的代理 IP
	TrustedProxies []string `mapstructure:"trusted_proxies" yaml:"trusted_proxies"`

	// Tracing 是否为 HTTP 请求创建 Span
	Tracing bool `mapstructure:"tracing" yaml:"tracing"`

	// Banner 启动时是否打印 banner 与路由表
	Banner bool `mapstructure:"banner" yaml:"banner"`

	Logger   logger.Logger       `mapstructure:"-" yaml:"-"`
	Gatherer prometheus.Gatherer `mapstructure:"-" yaml:"-"`
}

// Option 配置选项函数
type Option func(*Config)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Mode: gin.ReleaseMode,
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1MB
		},
		Shutdown: ShutdownConfig{
			Timeout: 10 * time.Second,
		},
		Admin: AdminConfig{
			Enabled:     true,
			MetricsPath: "/metrics",
		},
		Banner: true,
	}
}

// WithConfig 整体替换配置，通常来自配置文件
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithMode 设置运行模式
func WithMode(mode string) Option {
	return func(c *Config) {
		c.Mode = mode
	}
}

// WithAddr 设置监听地址
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Server.Addr = addr
	}
}

// WithShutdownTimeout 设置关机超时时间
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Shutdown.Timeout = timeout
	}
}

// WithBeforeShutdown 设置关机前回调
func WithBeforeShutdown(fn func()) Option {
	return func(c *Config) {
		c.Shutdown.BeforeShutdown = fn
	}
}

// WithAfterShutdown 设置关机后回调
func WithAfterShutdown(fn func()) Option {
	return func(c *Config) {
		c.Shutdown.AfterShutdown = fn
	}
}

// WithTrustedProxies 设置信任的代理
func WithTrustedProxies(proxies ...string) Option {
	return func(c *Config) {
		c.TrustedProxies = proxies
	}
}

// WithAdmin 设置管理端点
func WithAdmin(enabled bool, prefix string) Option {
	return func(c *Config) {
		c.Admin.Enabled = enabled
		c.Admin.Prefix = prefix
	}
}

// WithTracing 为 HTTP 请求创建 Span
func WithTracing(enable bool) Option {
	return func(c *Config) {
		c.Tracing = enable
	}
}

// WithBanner 是否打印 banner
func WithBanner(enable bool) Option {
	return func(c *Config) {
		c.Banner = enable
	}
}

// WithLogger 设置日志实例
func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithGatherer 设置 /metrics 使用的 Gatherer，默认 prometheus.DefaultGatherer
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *Config) {
		c.Gatherer = g
	}
}
