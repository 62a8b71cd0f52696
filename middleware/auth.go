package middleware

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/tokmz/wsgate/pkg/logger"
	"github.com/tokmz/wsgate/pkg/ws"
)

// UserKey 认证通过后用户信息在扩展数据中的键
const UserKey = "user"

// TokenValidator 校验令牌并返回用户信息
type TokenValidator func(ctx context.Context, token string) (user any, err error)

// BearerAuthConfig 认证中间件配置
type BearerAuthConfig struct {
	// Validate 令牌校验函数（必填）
	Validate TokenValidator

	// Header 读取令牌的请求头（默认 Authorization）
	Header string

	// ContextKey 用户信息写入的扩展数据键（默认 user）
	ContextKey string

	// Logger 日志实例
	Logger logger.Logger
}

// BearerAuth 在 open 时校验升级请求的 Bearer 令牌
//
// 令牌缺失或校验失败时拒绝，连接以 1008 关闭。
// 之后的 message 事件只检查扩展数据中是否已有用户信息。
func BearerAuth(cfg *BearerAuthConfig) *ws.Middleware {
	if cfg == nil || cfg.Validate == nil {
		panic("wsgate/middleware: BearerAuth requires a Validate func")
	}
	header := cfg.Header
	if header == "" {
		header = "Authorization"
	}
	key := cfg.ContextKey
	if key == "" {
		key = UserKey
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return ws.NewMiddleware("bearer-auth", func(ctx context.Context, ev *ws.Event) error {
		c := ev.Conn
		if ev.Type != ws.EventOpen {
			if _, ok := c.Get(key); !ok {
				return ws.Reject("unauthenticated")
			}
			return nil
		}

		token, ok := strings.CutPrefix(c.Header().Get(header), "Bearer ")
		if !ok || token == "" {
			log.DebugContext(ctx, "missing bearer token", zap.String("path", c.Path()))
			return ws.Reject("missing bearer token")
		}

		user, err := cfg.Validate(ctx, token)
		if err != nil {
			log.InfoContext(ctx, "invalid bearer token", zap.String("path", c.Path()), zap.Error(err))
			return ws.Reject("invalid token")
		}
		c.Set(key, user)
		return nil
	})
}

// StaticTokens 固定令牌表，令牌映射到用户标识
func StaticTokens(tokens map[string]string) TokenValidator {
	return func(_ context.Context, token string) (any, error) {
		user, ok := tokens[token]
		if !ok {
			return nil, ws.Reject("unknown token")
		}
		return user, nil
	}
}
