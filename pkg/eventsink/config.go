package eventsink

import (
	"fmt"
	"slices"
	"time"

	"github.com/tokmz/wsgate/pkg/ws"
)

// DriverType 转发目标
type DriverType string

const (
	DriverNone  DriverType = "none"
	DriverKafka DriverType = "kafka"
	DriverAMQP  DriverType = "amqp"
)

// Config 事件转发配置
type Config struct {
	Driver DriverType `mapstructure:"driver" yaml:"driver"`
	// Events 需要转发的事件类型，为空时转发 open 与 close
	Events []ws.EventType `mapstructure:"events" yaml:"events"`
	// IncludePayload message 事件是否携带消息内容
	IncludePayload bool          `mapstructure:"include_payload" yaml:"include_payload"`
	Workers        int           `mapstructure:"workers" yaml:"workers"`
	QueueSize      int           `mapstructure:"queue_size" yaml:"queue_size"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout" yaml:"publish_timeout"`
	// EnqueueTimeout open/close 事件在队列满时的最长等待
	EnqueueTimeout time.Duration `mapstructure:"enqueue_timeout" yaml:"enqueue_timeout"`

	Kafka KafkaConfig `mapstructure:"kafka" yaml:"kafka"`
	AMQP  AMQPConfig  `mapstructure:"amqp" yaml:"amqp"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers" yaml:"brokers"`
	Topic        string        `mapstructure:"topic" yaml:"topic"`
	ClientID     string        `mapstructure:"client_id" yaml:"client_id"`
	Version      string        `mapstructure:"version" yaml:"version"`
	RequiredAcks int           `mapstructure:"required_acks" yaml:"required_acks"`
	MaxRetry     int           `mapstructure:"max_retry" yaml:"max_retry"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// AMQPConfig RabbitMQ 配置
type AMQPConfig struct {
	URL          string `mapstructure:"url" yaml:"url"`
	Exchange     string `mapstructure:"exchange" yaml:"exchange"`
	ExchangeType string `mapstructure:"exchange_type" yaml:"exchange_type"`
	// RoutingPrefix 路由键前缀，路由键为 <prefix>.<event>
	RoutingPrefix string `mapstructure:"routing_prefix" yaml:"routing_prefix"`
	Durable       bool   `mapstructure:"durable" yaml:"durable"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Driver:         DriverNone,
		Events:         []ws.EventType{ws.EventOpen, ws.EventClose},
		Workers:        4,
		QueueSize:      1024,
		PublishTimeout: 5 * time.Second,
		EnqueueTimeout: 100 * time.Millisecond,
		Kafka: KafkaConfig{
			Topic:        "wsgate-events",
			ClientID:     "wsgate",
			RequiredAcks: 1,
			MaxRetry:     3,
			Timeout:      10 * time.Second,
		},
		AMQP: AMQPConfig{
			Exchange:      "wsgate.events",
			ExchangeType:  "topic",
			RoutingPrefix: "wsgate",
			Durable:       true,
		},
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Workers <= 0 || c.QueueSize <= 0 {
		return ErrInvalidConfig.WithMessage("workers and queue_size must be positive")
	}
	for _, t := range c.Events {
		if !slices.Contains([]ws.EventType{ws.EventOpen, ws.EventMessage, ws.EventDrain, ws.EventClose}, t) {
			return ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown event type %q", t))
		}
	}

	switch c.Driver {
	case DriverNone, "":
	case DriverKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return ErrInvalidConfig.WithMessage("kafka brokers and topic are required")
		}
	case DriverAMQP:
		if c.AMQP.URL == "" || c.AMQP.Exchange == "" {
			return ErrInvalidConfig.WithMessage("amqp url and exchange are required")
		}
	default:
		return ErrInvalidConfig.WithMessage(fmt.Sprintf("unsupported driver %q", c.Driver))
	}
	return nil
}

// NewPublisher 按驱动创建发布端
func NewPublisher(cfg *Config) (Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		pub Publisher = nopPublisher{}
		err error
	)
	switch cfg.Driver {
	case DriverKafka:
		pub, err = NewKafkaPublisher(&cfg.Kafka)
	case DriverAMQP:
		pub, err = NewAMQPPublisher(&cfg.AMQP)
	}
	if err != nil {
		return nil, err
	}
	return pub, nil
}
