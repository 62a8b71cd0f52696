package eventsink

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

// KafkaPublisher 以客户端标识为 key 同步写入 Kafka
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher 连接 Kafka
func NewKafkaPublisher(cfg *KafkaConfig) (*KafkaPublisher, error) {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	sc.Producer.Retry.Max = cfg.MaxRetry
	sc.Producer.Timeout = cfg.Timeout
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, ErrInvalidConfig.WithError(err)
		}
		sc.Version = v
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return NewKafkaPublisherWithProducer(producer, cfg.Topic), nil
}

// NewKafkaPublisherWithProducer 使用已有的 producer
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish 发送一条事件
func (p *KafkaPublisher) Publish(ctx context.Context, env Envelope) error {
	body, err := env.Encode()
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(env.Key()),
		Value:     sarama.ByteEncoder(body),
		Timestamp: env.Time,
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(env.Type)},
		},
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}

// Close 关闭 producer
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
