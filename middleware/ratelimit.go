package middleware

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/tokmz/wsgate/pkg/cache"
	"github.com/tokmz/wsgate/pkg/logger"
	"github.com/tokmz/wsgate/pkg/ws"
)

// RateLimitConfig 限流中间件配置
type RateLimitConfig struct {
	// Counter 计数器，内存或 Redis（必填）
	Counter cache.Counter

	// Limit 窗口内允许的消息数（默认 10）
	Limit int64

	// Window 固定窗口长度（默认 1 分钟）
	Window time.Duration

	// KeyFunc 限流 key（默认用户标识，未认证时用对端地址）
	KeyFunc func(c *ws.Conn) string

	// Message 超限时发给客户端的提示，为空则不发送
	Message string

	// Logger 日志实例
	Logger logger.Logger
}

// defaultRateLimitConfig 返回默认配置
func defaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Limit:   10,
		Window:  time.Minute,
		KeyFunc: defaultRateLimitKey,
		Message: "Rate limit exceeded",
	}
}

func defaultRateLimitKey(c *ws.Conn) string {
	if user, ok := c.Get(UserKey); ok && user != nil {
		return "user:" + fmt.Sprint(user)
	}
	return "addr:" + remoteHost(c.RemoteAddr())
}

// remoteHost 去掉端口，同一来源的多条连接共享额度
func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// RateLimit 按固定窗口限制 message 事件
//
// 计数器出错时放行并记录日志。
func RateLimit(cfg *RateLimitConfig) *ws.Middleware {
	if cfg == nil || cfg.Counter == nil {
		panic("wsgate/middleware: RateLimit requires a Counter")
	}
	def := defaultRateLimitConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = def.KeyFunc
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	return ws.NewMiddleware("rate-limit", func(ctx context.Context, ev *ws.Event) error {
		if ev.Type != ws.EventMessage {
			return nil
		}

		key := cfg.KeyFunc(ev.Conn)
		n, err := cfg.Counter.Incr(ctx, key, cfg.Window)
		if err != nil {
			cfg.Logger.WarnContext(ctx, "rate limit counter failed", zap.String("key", key), zap.Error(err))
			return nil
		}
		if n <= cfg.Limit {
			return nil
		}

		cfg.Logger.WarnContext(ctx, "rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", n),
			zap.Int64("limit", cfg.Limit),
		)
		if cfg.Message != "" {
			_, _ = ev.Conn.SendText(ctx, cfg.Message)
		}
		return ws.Reject("rate limit exceeded")
	})
}
