package orm

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const tracerName = "wsgate.orm"

// TracingPlugin 为每条 SQL 创建 client span
type TracingPlugin struct{}

// NewTracingPlugin 创建追踪插件
func NewTracingPlugin() *TracingPlugin {
	return &TracingPlugin{}
}

// Name 插件名称
func (p *TracingPlugin) Name() string {
	return "wsgate:tracing"
}

// Initialize 注册回调
func (p *TracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	registrations := []struct {
		name string
		fn   func() error
	}{
		{"create", func() error {
			if err := cb.Create().Before("gorm:create").Register("wsgate:before_create", before("db.create")); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register("wsgate:after_create", after)
		}},
		{"query", func() error {
			if err := cb.Query().Before("gorm:query").Register("wsgate:before_query", before("db.query")); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register("wsgate:after_query", after)
		}},
		{"delete", func() error {
			if err := cb.Delete().Before("gorm:delete").Register("wsgate:before_delete", before("db.delete")); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register("wsgate:after_delete", after)
		}},
		{"update", func() error {
			if err := cb.Update().Before("gorm:update").Register("wsgate:before_update", before("db.update")); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register("wsgate:after_update", after)
		}},
		{"row", func() error {
			if err := cb.Row().Before("gorm:row").Register("wsgate:before_row", before("db.row")); err != nil {
				return err
			}
			return cb.Row().After("gorm:row").Register("wsgate:after_row", after)
		}},
		{"raw", func() error {
			if err := cb.Raw().Before("gorm:raw").Register("wsgate:before_raw", before("db.raw")); err != nil {
				return err
			}
			return cb.Raw().After("gorm:raw").Register("wsgate:after_raw", after)
		}},
	}
	for _, r := range registrations {
		if err := r.fn(); err != nil {
			return fmt.Errorf("orm: register %s callbacks: %w", r.name, err)
		}
	}
	return nil
}

func before(spanName string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, _ = otel.Tracer(tracerName).Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attribute.String("db.system", db.Dialector.Name())),
		)
		db.Statement.Context = ctx
	}
}

func after(db *gorm.DB) {
	span := trace.SpanFromContext(db.Statement.Context)
	if !span.IsRecording() {
		return
	}
	defer span.End()

	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.table", db.Statement.Table))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}
}
