package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

var (
	globalProvider *trace.TracerProvider
	providerMu     sync.Mutex
)

// NewTracerProvider 创建 TracerProvider 并设为全局
//
// 同时注册 W3C TraceContext 与 Baggage Propagator，网关的事件 Span
// 与 gin 中间件都从全局取 Tracer。
func NewTracerProvider(cfg *Config) (*trace.TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		cfg.ExporterType = ExporterNoop
	}

	ctx := context.Background()
	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithSampler(newSampler(cfg)),
		trace.WithSpanProcessor(trace.NewBatchSpanProcessor(exporter,
			trace.WithBatchTimeout(cfg.BatchTimeout),
			trace.WithMaxExportBatchSize(cfg.MaxExportBatchSize),
			trace.WithMaxQueueSize(cfg.MaxQueueSize),
		)),
		trace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	providerMu.Lock()
	globalProvider = tp
	providerMu.Unlock()
	return tp, nil
}

func newResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.ServiceVersion),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(cfg.Environment))
	}
	for k, v := range cfg.ResourceAttributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	attrs = append(attrs, parseResourceAttributes(os.Getenv("OTEL_RESOURCE_ATTRIBUTES"))...)

	return resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
	)
}

// parseResourceAttributes 格式 key1=value1,key2=value2
func parseResourceAttributes(s string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if ok {
			attrs = append(attrs, attribute.String(strings.TrimSpace(k), strings.TrimSpace(v)))
		}
	}
	return attrs
}

// Shutdown 导出剩余 Span 并关闭全局 TracerProvider
func Shutdown(ctx context.Context) error {
	providerMu.Lock()
	tp := globalProvider
	globalProvider = nil
	providerMu.Unlock()

	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// GetTracerProvider 获取全局 TracerProvider
func GetTracerProvider() *trace.TracerProvider {
	providerMu.Lock()
	defer providerMu.Unlock()
	return globalProvider
}
