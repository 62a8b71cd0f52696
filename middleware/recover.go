package middleware

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tokmz/wsgate/pkg/logger"
	"github.com/tokmz/wsgate/pkg/ws"
)

// Recover 包装中间件，将其 panic 转为拒绝
func Recover(log logger.Logger, mw *ws.Middleware) *ws.Middleware {
	if log == nil {
		log = logger.Nop()
	}
	return ws.NewMiddleware("recover("+mw.Name()+")", func(ctx context.Context, ev *ws.Event) (err error) {
		defer func() {
			if r := recover(); r != nil {
				fields := []zap.Field{
					zap.String("middleware", mw.Name()),
					zap.String("event", string(ev.Type)),
					zap.Any("panic", r),
					zap.Stack("stack"),
				}
				if ev.Conn != nil {
					fields = append(fields, zap.String("client_id", ev.Conn.ID()))
				}
				log.ErrorContext(ctx, "middleware panic", fields...)
				err = ws.Reject(fmt.Sprintf("middleware %s panicked", mw.Name()))
			}
		}()
		return mw.Handle(ctx, ev)
	})
}
