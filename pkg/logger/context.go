package logger

import "context"

type contextKey int

const (
	loggerKey contextKey = iota
	clientIDKey
	routeKey
)

// NewContext 将 Logger 存入 Context
func NewContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext 取出 Context 中的 Logger，不存在时返回 fallback
func FromContext(ctx context.Context, fallback Logger) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return fallback
}

// WithClientID 在 Context 中记录连接的客户端 ID
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}

// ClientIDFrom 读取客户端 ID
func ClientIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey).(string)
	return id
}

// WithRoute 在 Context 中记录匹配到的路由模式
func WithRoute(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routeKey, pattern)
}

// RouteFrom 读取路由模式
func RouteFrom(ctx context.Context) string {
	route, _ := ctx.Value(routeKey).(string)
	return route
}
