package main

import (
	"time"

	"github.com/tokmz/wsgate"
	"github.com/tokmz/wsgate/pkg/cache"
	"github.com/tokmz/wsgate/pkg/eventsink"
	"github.com/tokmz/wsgate/pkg/logger"
	"github.com/tokmz/wsgate/pkg/orm"
	"github.com/tokmz/wsgate/pkg/tracing"
	"github.com/tokmz/wsgate/pkg/ws"
)

// Settings 示例网关的配置文件结构
type Settings struct {
	Engine    wsgate.Config     `mapstructure:"engine" yaml:"engine"`
	Log       LogSettings       `mapstructure:"log" yaml:"log"`
	Gateway   GatewaySettings   `mapstructure:"gateway" yaml:"gateway"`
	Queue     QueueSettings     `mapstructure:"queue" yaml:"queue"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit" yaml:"rate_limit"`
	Throttle  ThrottleSettings  `mapstructure:"throttle" yaml:"throttle"`
	Tracing   tracing.Config    `mapstructure:"tracing" yaml:"tracing"`
	EventSink eventsink.Config  `mapstructure:"event_sink" yaml:"event_sink"`
	// Tokens donation 路由接受的令牌，token -> 用户
	Tokens map[string]string `mapstructure:"tokens" yaml:"tokens"`
}

// LogSettings 日志配置
type LogSettings struct {
	Level   string               `mapstructure:"level" yaml:"level"`
	Format  string               `mapstructure:"format" yaml:"format"`
	Console bool                 `mapstructure:"console" yaml:"console"`
	Rotate  *logger.RotateConfig `mapstructure:"rotate" yaml:"rotate,omitempty"`
}

// GatewaySettings 网关配置
type GatewaySettings struct {
	MaxConnections int                `mapstructure:"max_connections" yaml:"max_connections"`
	StrictPatterns bool               `mapstructure:"strict_patterns" yaml:"strict_patterns"`
	EventQueueSize int                `mapstructure:"event_queue_size" yaml:"event_queue_size"`
	Transport      ws.TransportConfig `mapstructure:"transport" yaml:"transport"`
	// MetricsNamespace Prometheus 指标命名空间
	MetricsNamespace string `mapstructure:"metrics_namespace" yaml:"metrics_namespace"`
}

// QueueSettings 持久化发送队列配置
type QueueSettings struct {
	// Store memory / gorm / redis
	Store          string             `mapstructure:"store" yaml:"store"`
	StrictOrdering bool               `mapstructure:"strict_ordering" yaml:"strict_ordering"`
	Table          string             `mapstructure:"table" yaml:"table"`
	KeyPrefix      string             `mapstructure:"key_prefix" yaml:"key_prefix"`
	Database       orm.Config         `mapstructure:"database" yaml:"database"`
	Redis          *cache.RedisConfig `mapstructure:"redis" yaml:"redis,omitempty"`
}

// RateLimitSettings event 路由的限流配置
type RateLimitSettings struct {
	Limit   int64         `mapstructure:"limit" yaml:"limit"`
	Window  time.Duration `mapstructure:"window" yaml:"window"`
	Counter cache.Config  `mapstructure:"counter" yaml:"counter"`
}

// ThrottleSettings 每条连接的令牌桶
type ThrottleSettings struct {
	Enabled bool    `mapstructure:"enabled" yaml:"enabled"`
	Rate    float64 `mapstructure:"rate" yaml:"rate"` // 每秒消息数
	Burst   int     `mapstructure:"burst" yaml:"burst"`
}

// DefaultSettings 返回默认配置
func DefaultSettings() *Settings {
	gw := ws.DefaultConfig()
	return &Settings{
		Engine: *wsgate.DefaultConfig(),
		Log: LogSettings{
			Level:   "info",
			Format:  "console",
			Console: true,
		},
		Gateway: GatewaySettings{
			MaxConnections:   gw.MaxConnections,
			EventQueueSize:   gw.EventQueueSize,
			Transport:        gw.Transport,
			MetricsNamespace: "wsgate",
		},
		Queue: QueueSettings{
			Store:     "gorm",
			Table:     "messages",
			KeyPrefix: "wsgate:queue:",
			Database:  *orm.DefaultConfig(),
		},
		RateLimit: RateLimitSettings{
			Limit:   10,
			Window:  time.Minute,
			Counter: *cache.DefaultConfig(),
		},
		Throttle: ThrottleSettings{
			Enabled: true,
			Rate:    20,
			Burst:   40,
		},
		Tracing:   *tracing.DefaultConfig(),
		EventSink: *eventsink.DefaultConfig(),
		Tokens:    map[string]string{"demo-token": "demo"},
	}
}
