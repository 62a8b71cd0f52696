package eventsink

import "context"

// Publisher 消息中间件发布端
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// nopPublisher 丢弃所有事件
type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Envelope) error { return nil }
func (nopPublisher) Close() error                            { return nil }
