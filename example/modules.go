package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/tokmz/wsgate/middleware"
	"github.com/tokmz/wsgate/pkg/cache"
	"github.com/tokmz/wsgate/pkg/logger"
	"github.com/tokmz/wsgate/pkg/ws"
)

const topicKey = "topic"

// registerModules 注册 chat、event、donation、notification 四个模块
func registerModules(gw *ws.Gateway, s *Settings, counter cache.Counter, log logger.Logger) error {
	rateLimit := middleware.RateLimit(&middleware.RateLimitConfig{
		Counter: counter,
		Limit:   s.RateLimit.Limit,
		Window:  s.RateLimit.Window,
		Logger:  log,
	})
	auth := middleware.BearerAuth(&middleware.BearerAuthConfig{
		Validate: middleware.StaticTokens(s.Tokens),
		Logger:   log,
	})

	if err := gw.Register("chat/:roomId", chatHandler(log)); err != nil {
		return err
	}
	if err := gw.Register("event", eventHandler(), middleware.Recover(log, rateLimit)); err != nil {
		return err
	}
	if err := gw.Register("donation", donationHandler(gw), auth); err != nil {
		return err
	}
	return gw.Register("notification", notificationHandler())
}

// chatHandler 房间聊天：订阅 chat:<roomId>，消息转发给房间内其他连接
func chatHandler(log logger.Logger) *ws.Handler {
	return &ws.Handler{
		OnOpen: func(ctx context.Context, c *ws.Conn) error {
			topic := "chat:" + c.Param("roomId")
			c.Subscribe(topic)
			c.Set(topicKey, topic)
			log.InfoContext(ctx, "joined room", zap.String("client_id", c.ID()), zap.String("topic", topic))
			return nil
		},
		OnMessage: func(ctx context.Context, c *ws.Conn, msg ws.Message) error {
			c.Publish(c.GetString(topicKey), msg.Data, false)
			return nil
		},
		OnClose: func(ctx context.Context, c *ws.Conn, code int, reason string) error {
			log.InfoContext(ctx, "left room",
				zap.String("client_id", c.ID()),
				zap.String("topic", c.GetString(topicKey)),
				zap.Int("code", code))
			return nil
		},
	}
}

// eventHandler 回显消息
func eventHandler() *ws.Handler {
	return &ws.Handler{
		OnMessage: func(ctx context.Context, c *ws.Conn, msg ws.Message) error {
			_, err := c.Send(ctx, msg.Data, false)
			return err
		},
	}
}

// donationHandler 已认证用户的消息发布到 donation 主题
func donationHandler(gw *ws.Gateway) *ws.Handler {
	return &ws.Handler{
		OnOpen: func(ctx context.Context, c *ws.Conn) error {
			c.Subscribe("donation")
			_, err := c.SendJSON(ctx, map[string]any{"welcome": c.GetString(middleware.UserKey)})
			return err
		},
		OnMessage: func(ctx context.Context, c *ws.Conn, msg ws.Message) error {
			gw.Publish("donation", msg.Data, false)
			return nil
		},
	}
}

// notificationHandler 只接收广播
func notificationHandler() *ws.Handler {
	return &ws.Handler{
		OnOpen: func(ctx context.Context, c *ws.Conn) error {
			c.Subscribe(ws.BroadcastTopic)
			return nil
		},
	}
}
