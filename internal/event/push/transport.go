package push

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	"gitee.com/flycash/push-platform/internal/pkg/mqx"
	"gitee.com/flycash/push-platform/internal/service/pipeline"
)

var _ pipeline.Transport = (*KafkaTransport)(nil)

// KafkaTransport 用两个专用主题实现管道的重投和死信操作。
// 分区键用幂等键，同一条消息的多次重投保持有序
type KafkaTransport struct {
	retryProducer      mqx.Producer[RetryEvent]
	deadLetterProducer mqx.Producer[domain.DeadLetterEntry]
	now                func() time.Time
}

func NewKafkaTransport(
	retryProducer mqx.Producer[RetryEvent],
	deadLetterProducer mqx.Producer[domain.DeadLetterEntry],
) *KafkaTransport {
	return &KafkaTransport{
		retryProducer:      retryProducer,
		deadLetterProducer: deadLetterProducer,
		now:                time.Now,
	}
}

func (t *KafkaTransport) NackWithDelay(ctx context.Context, msg domain.PushMessage, delay time.Duration) error {
	evt := RetryEvent{
		Message:            msg,
		DeliverAfterMillis: t.now().Add(delay).UnixMilli(),
	}
	if err := t.retryProducer.ProduceWithKey(ctx, msg.IdempotencyKey, evt); err != nil {
		return fmt.Errorf("投递重试事件失败: %w", err)
	}
	return nil
}

func (t *KafkaTransport) DeadLetter(ctx context.Context, entry domain.DeadLetterEntry) error {
	if err := t.deadLetterProducer.ProduceWithKey(ctx, entry.Message.IdempotencyKey, entry); err != nil {
		return fmt.Errorf("投递死信事件失败: %w", err)
	}
	return nil
}
