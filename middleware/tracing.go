package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tokmz/wsgate/pkg/ws"
)

// TracingConfig 链路追踪中间件配置
type TracingConfig struct {
	// Propagator 从升级请求头提取上游 TraceContext（默认全局 Propagator）
	Propagator propagation.TextMapPropagator

	// UserKey 用户信息在扩展数据中的键（默认 user）
	UserKey string
}

// DefaultTracingConfig 返回默认配置
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{UserKey: UserKey}
}

// Tracing 为网关创建的事件 Span 补充连接属性
//
// open 时若升级请求带有 traceparent，则把上游 Span 作为 link 关联。
func Tracing(cfgs ...*TracingConfig) *ws.Middleware {
	cfg := DefaultTracingConfig()
	if len(cfgs) > 0 && cfgs[0] != nil {
		cfg = cfgs[0]
	}

	return ws.NewMiddleware("tracing", func(ctx context.Context, ev *ws.Event) error {
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return nil
		}

		c := ev.Conn
		attrs := []attribute.KeyValue{
			attribute.String("ws.path", c.Path()),
			attribute.String("ws.remote_addr", c.RemoteAddr()),
		}
		if user, ok := c.Get(cfg.UserKey); ok && user != nil {
			attrs = append(attrs, attribute.String("ws.user", fmt.Sprint(user)))
		}

		switch ev.Type {
		case ws.EventOpen:
			propagator := cfg.Propagator
			if propagator == nil {
				propagator = otel.GetTextMapPropagator()
			}
			upstream := trace.SpanContextFromContext(
				propagator.Extract(context.Background(), propagation.HeaderCarrier(c.Header())),
			)
			if upstream.IsValid() {
				span.AddLink(trace.Link{SpanContext: upstream})
			}
		case ws.EventMessage:
			attrs = append(attrs,
				attribute.String("ws.message.type", ev.Message.Type.String()),
				attribute.Int("ws.message.size", len(ev.Message.Data)),
			)
		}
		span.SetAttributes(attrs...)
		return nil
	})
}
