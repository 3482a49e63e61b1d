package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	"gitee.com/flycash/push-platform/internal/pkg/mqx"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/gotomicro/ego/core/elog"
)

const defaultPollInterval = time.Second

// DelayRetryConsumer 延迟重投主题的消费者。
// 消息还没到投递时间时暂停分区原地等待，到点后把内层消息送回主投递主题。
// 同一分区内 DeliverAfterMillis 基本单调递增（退避只会变长），原地等待不会饿死后续消息
type DelayRetryConsumer struct {
	consumer mqx.Consumer
	producer mqx.Producer[domain.PushMessage]
	logger   *elog.Component
	now      func() time.Time
}

func NewDelayRetryConsumer(consumer mqx.Consumer, producer mqx.Producer[domain.PushMessage]) *DelayRetryConsumer {
	return &DelayRetryConsumer{
		consumer: consumer,
		producer: producer,
		logger:   elog.DefaultLogger,
		now:      time.Now,
	}
}

func (c *DelayRetryConsumer) Start(ctx context.Context) {
	go func() {
		for {
			if ctx.Err() != nil {
				return
			}
			if err := c.Consume(ctx); err != nil {
				c.logger.Error("消费延迟重投事件失败", elog.FieldErr(err))
			}
		}
	}()
}

func (c *DelayRetryConsumer) Consume(ctx context.Context) error {
	msg, err := c.consumer.ReadMessage(readTimeout)
	if err != nil {
		var kerr kafka.Error
		if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
			return nil
		}
		return fmt.Errorf("获取消息失败: %w", err)
	}

	var evt RetryEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		c.logger.Warn("解析延迟重投事件失败",
			elog.FieldErr(err),
			elog.Any("msg", msg))
		// 解不开的信封没有重投价值，提交后跳过
		_, _ = c.consumer.CommitMessage(msg)
		return nil
	}

	if remaining := time.UnixMilli(evt.DeliverAfterMillis).Sub(c.now()); remaining > 0 {
		// 暂停分区消费，原地等到投递时间
		if err := c.consumer.Pause([]kafka.TopicPartition{msg.TopicPartition}); err != nil {
			c.logger.Warn("暂停分区失败",
				elog.FieldErr(err),
				elog.Any("msg", msg))
			return err
		}

		c.sleepAndPoll(remaining)

		if err := c.consumer.Resume([]kafka.TopicPartition{msg.TopicPartition}); err != nil {
			c.logger.Warn("恢复分区失败",
				elog.FieldErr(err),
				elog.Any("msg", msg))
			return err
		}
	}

	if err := c.producer.ProduceWithKey(ctx, evt.Message.IdempotencyKey, evt.Message); err != nil {
		c.logger.Warn("重投消息回主主题失败",
			elog.FieldErr(err),
			elog.Any("notificationID", evt.Message.NotificationID))
		return err
	}

	if _, err := c.consumer.CommitMessage(msg); err != nil {
		c.logger.Warn("提交消息失败",
			elog.FieldErr(err),
			elog.Any("msg", msg))
		return err
	}
	return nil
}

// sleepAndPoll 等待期间保持轮询，免得被判定掉线触发重平衡
func (c *DelayRetryConsumer) sleepAndPoll(subTime time.Duration) {
	const defaultPollDuration = 100
	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()
	timer := time.NewTimer(subTime)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return
		case <-ticker.C:
			c.consumer.Poll(defaultPollDuration)
		}
	}
}
