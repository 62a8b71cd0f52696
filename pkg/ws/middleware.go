package ws

import (
	"context"
	"fmt"
)

// MiddlewareFunc 中间件函数
//
// 返回 nil 表示放行，返回错误表示拒绝并中断后续中间件与处理器。
// open 事件被拒绝时连接以 1008 关闭，message 事件被拒绝时消息被丢弃。
type MiddlewareFunc func(ctx context.Context, ev *Event) error

// Middleware 具名中间件，按指针去重
type Middleware struct {
	name string
	fn   MiddlewareFunc
}

// NewMiddleware 创建中间件
func NewMiddleware(name string, fn MiddlewareFunc) *Middleware {
	return &Middleware{name: name, fn: fn}
}

// Name 中间件名称
func (m *Middleware) Name() string {
	return m.name
}

// Handle 单独执行该中间件
func (m *Middleware) Handle(ctx context.Context, ev *Event) error {
	return m.fn(ctx, ev)
}

// Reject 构造拒绝错误
func Reject(reason string) error {
	return ErrMiddlewareRejected.WithMessage(reason)
}

// mergeMiddlewares 按顺序拼接并按指针去重，保留首次出现的位置
func mergeMiddlewares(groups ...[]*Middleware) []*Middleware {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	out := make([]*Middleware, 0, n)
	seen := make(map[*Middleware]struct{}, n)
	for _, g := range groups {
		for _, m := range g {
			if m == nil || m.fn == nil {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// runChain 从左到右执行，遇到第一个拒绝立即返回
func runChain(ctx context.Context, chain []*Middleware, ev *Event) error {
	for _, m := range chain {
		if err := m.fn(ctx, ev); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMiddlewareRejected, m.name, err)
		}
	}
	return nil
}
