package cache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const cacheTracerName = "wsgate.cache"

// tracedCounter 链路追踪装饰器
type tracedCounter struct {
	Counter
	tracer trace.Tracer
}

// NewTracing 创建带链路追踪的计数器
func NewTracing(c Counter) Counter {
	return &tracedCounter{
		Counter: c,
		tracer:  otel.Tracer(cacheTracerName),
	}
}

func (t *tracedCounter) wrap(ctx context.Context, operation, key string, fn func(ctx context.Context) error) error {
	ctx, span := t.tracer.Start(ctx, "cache."+operation, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("cache.key", key),
		attribute.String("cache.operation", operation),
	)

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Incr 计数加一
func (t *tracedCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	var n int64
	err := t.wrap(ctx, "incr", key, func(ctx context.Context) error {
		var err error
		n, err = t.Counter.Incr(ctx, key, window)
		return err
	})
	return n, err
}

// Reset 清除计数
func (t *tracedCounter) Reset(ctx context.Context, key string) error {
	return t.wrap(ctx, "reset", key, func(ctx context.Context) error {
		return t.Counter.Reset(ctx, key)
	})
}
