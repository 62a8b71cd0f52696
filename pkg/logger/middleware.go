package logger

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GinMiddleware 记录进入 HTTP 引擎的每个请求（包括 WebSocket 握手）
func GinMiddleware(l Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		upgrade := strings.EqualFold(c.GetHeader("Upgrade"), "websocket")

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.Bool("upgrade", upgrade),
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			l.ErrorContext(ctx, "http request", fields...)
		case status >= 400:
			l.WarnContext(ctx, "http request", fields...)
		default:
			l.DebugContext(ctx, "http request", fields...)
		}
	}
}
