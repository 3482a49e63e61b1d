package mqx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Producer 把任意事件序列化成 JSON 投递到固定 topic
type Producer[T any] interface {
	Produce(ctx context.Context, evt T) error
	ProduceWithKey(ctx context.Context, key string, evt T) error
}

type GeneralProducer[T any] struct {
	producer *kafka.Producer
	topic    string
}

func NewGeneralProducer[T any](producer *kafka.Producer, topic string) (*GeneralProducer[T], error) {
	if topic == "" {
		return nil, fmt.Errorf("topic 不能为空")
	}
	return &GeneralProducer[T]{
		producer: producer,
		topic:    topic,
	}, nil
}

func (p *GeneralProducer[T]) Produce(ctx context.Context, evt T) error {
	return p.ProduceWithKey(ctx, "", evt)
}

// ProduceWithKey 指定分区键投递，同一个键的事件落在同一个分区
func (p *GeneralProducer[T]) ProduceWithKey(ctx context.Context, key string, evt T) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("序列化topic的消息失败 %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &p.topic,
			Partition: kafka.PartitionAny,
		},
		Value: data,
	}
	if key != "" {
		msg.Key = []byte(key)
	}

	deliveryChan := make(chan kafka.Event, 1)
	if err := p.producer.Produce(msg, deliveryChan); err != nil {
		return fmt.Errorf("投递消息失败: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case evt := <-deliveryChan:
		m, ok := evt.(*kafka.Message)
		if !ok {
			return fmt.Errorf("非预期的投递回执: %v", evt)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("投递消息失败: %w", m.TopicPartition.Error)
		}
		return nil
	}
}

func (p *GeneralProducer[T]) Close() {
	p.producer.Close()
}
