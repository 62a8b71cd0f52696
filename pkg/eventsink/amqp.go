package eventsink

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel 发布所需的 channel 方法
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher 发布到 RabbitMQ 交换机
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	prefix   string
	mode     uint8
}

// NewAMQPPublisher 连接 RabbitMQ 并声明交换机
func NewAMQPPublisher(cfg *AMQPConfig) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublish, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrPublish, err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, cfg.ExchangeType, cfg.Durable, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: declare exchange: %w", ErrPublish, err)
	}

	p := newAMQPPublisher(ch, cfg)
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch amqpChannel, cfg *AMQPConfig) *AMQPPublisher {
	mode := amqp.Transient
	if cfg.Durable {
		mode = amqp.Persistent
	}
	return &AMQPPublisher{
		ch:       ch,
		exchange: cfg.Exchange,
		prefix:   cfg.RoutingPrefix,
		mode:     mode,
	}
}

// Publish 以 <prefix>.<event> 为路由键发布
func (p *AMQPPublisher) Publish(ctx context.Context, env Envelope) error {
	body, err := env.Encode()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return ErrClosed
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, env.RoutingKey(p.prefix), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: p.mode,
		Timestamp:    env.Time,
		Type:         string(env.Type),
		Headers:      amqp.Table{"client_id": env.ClientID},
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}

// Close 关闭 channel 与连接
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
