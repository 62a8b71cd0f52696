package cache

import (
	"context"
	"time"
)

// Counter 固定窗口计数器（限流使用）
type Counter interface {
	// Incr 计数加一并返回当前值，窗口内首次计数时开始计时
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// Reset 清除计数
	Reset(ctx context.Context, key string) error
	// Ping 检查连接
	Ping(ctx context.Context) error
	// Close 释放资源
	Close() error
}
