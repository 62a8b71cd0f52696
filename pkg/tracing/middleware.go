package tracing

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "wsgate.http"

// middlewareConfig 中间件配置
type middlewareConfig struct {
	tracerName string
	filter     func(*gin.Context) bool
}

// MiddlewareOption 中间件选项
type MiddlewareOption func(*middlewareConfig)

// WithTracerName 设置 Tracer 名称（默认 "wsgate.http"）
func WithTracerName(name string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.tracerName = name
	}
}

// WithFilter 返回 false 的请求不追踪（如健康检查）
func WithFilter(fn func(*gin.Context) bool) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.filter = fn
	}
}

// GinMiddleware 为每个 HTTP 请求创建 Server Span
//
// 升级请求的 Span 在握手结束时结束，连接上的事件 Span 各自独立。
func GinMiddleware(opts ...MiddlewareOption) gin.HandlerFunc {
	cfg := &middlewareConfig{tracerName: tracerName}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *gin.Context) {
		if cfg.filter != nil && !cfg.filter(c) {
			c.Next()
			return
		}

		// 每次请求时获取，Provider 可能晚于中间件初始化
		tracer := otel.Tracer(cfg.tracerName)
		propagator := otel.GetTextMapPropagator()

		req := c.Request
		ctx := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		route := c.FullPath()
		if route == "" {
			route = req.URL.Path
		}
		upgrade := strings.EqualFold(req.Header.Get("Upgrade"), "websocket")

		ctx, span := tracer.Start(ctx, req.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(req.Method),
				semconv.URLPath(req.URL.Path),
				semconv.HTTPRouteKey.String(route),
				semconv.ServerAddress(req.Host),
				semconv.UserAgentOriginalKey.String(req.UserAgent()),
				attribute.String("http.client_ip", c.ClientIP()),
				attribute.Bool("ws.upgrade", upgrade),
			),
		)
		defer span.End()

		c.Request = req.WithContext(ctx)
		if !upgrade {
			propagator.Inject(ctx, propagation.HeaderCarrier(c.Writer.Header()))
		}
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCodeKey.Int(status))
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
	}
}
