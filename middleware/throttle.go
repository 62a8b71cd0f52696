package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/tokmz/wsgate/pkg/ws"
)

const throttleKey = "wsgate.throttle"

// Throttle 每条连接一个令牌桶，超出速率的消息被丢弃
func Throttle(r rate.Limit, burst int) *ws.Middleware {
	return ws.NewMiddleware("throttle", func(ctx context.Context, ev *ws.Event) error {
		c := ev.Conn
		if ev.Type == ws.EventOpen {
			c.Set(throttleKey, rate.NewLimiter(r, burst))
			return nil
		}
		if ev.Type != ws.EventMessage {
			return nil
		}

		v, ok := c.Get(throttleKey)
		if !ok {
			v = rate.NewLimiter(r, burst)
			c.Set(throttleKey, v)
		}
		if !v.(*rate.Limiter).Allow() {
			return ws.Reject("throttled")
		}
		return nil
	})
}
