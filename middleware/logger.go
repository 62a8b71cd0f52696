package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/tokmz/wsgate/pkg/logger"
	"github.com/tokmz/wsgate/pkg/ws"
)

// LoggerConfig 事件日志中间件配置
type LoggerConfig struct {
	// Logger 日志实例（必填）
	Logger logger.Logger

	// SkipFunc 跳过日志的函数
	SkipFunc func(ev *ws.Event) bool

	// IncludeMessage 是否记录消息内容（默认 false，只记录大小）
	IncludeMessage bool
}

// DefaultLoggerConfig 返回默认配置
func DefaultLoggerConfig(log logger.Logger) *LoggerConfig {
	return &LoggerConfig{Logger: log}
}

// Logger 记录经过中间件链的 open 与 message 事件，从不拒绝
func Logger(log logger.Logger, cfgs ...*LoggerConfig) *ws.Middleware {
	cfg := DefaultLoggerConfig(log)
	if len(cfgs) > 0 && cfgs[0] != nil {
		cfg = cfgs[0]
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	return ws.NewMiddleware("logger", func(ctx context.Context, ev *ws.Event) error {
		if cfg.SkipFunc != nil && cfg.SkipFunc(ev) {
			return nil
		}

		c := ev.Conn
		fields := []zap.Field{
			zap.String("event", string(ev.Type)),
			zap.String("client_id", c.ID()),
			zap.String("path", c.Path()),
		}
		switch ev.Type {
		case ws.EventOpen:
			fields = append(fields,
				zap.String("remote_addr", c.RemoteAddr()),
				zap.String("user_agent", c.Header().Get("User-Agent")),
			)
			cfg.Logger.InfoContext(ctx, "connection opened", fields...)
		case ws.EventMessage:
			fields = append(fields,
				zap.Stringer("type", ev.Message.Type),
				zap.Int("size", len(ev.Message.Data)),
			)
			if cfg.IncludeMessage {
				fields = append(fields, zap.ByteString("data", ev.Message.Data))
			}
			cfg.Logger.DebugContext(ctx, "message received", fields...)
		}
		return nil
	})
}
