package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	"gitee.com/flycash/push-platform/internal/pkg/mqx"
	"gitee.com/flycash/push-platform/internal/service/pipeline"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/gotomicro/ego/core/elog"
)

const (
	defaultWorkerCount = 8
	readTimeout        = time.Second
)

// DeliveryEventConsumer 主投递主题的消费者。
// 单个读取协程拉消息，固定大小的工作池并发执行管道，
// 每条消息处理出终态后单独提交位点
type DeliveryEventConsumer struct {
	consumer    mqx.Consumer
	coordinator pipeline.Coordinator
	transport   pipeline.Transport
	workerCount int
	logger      *elog.Component
}

func NewDeliveryEventConsumer(
	consumer mqx.Consumer,
	coordinator pipeline.Coordinator,
	transport pipeline.Transport,
	workerCount int,
) *DeliveryEventConsumer {
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}
	return &DeliveryEventConsumer{
		consumer:    consumer,
		coordinator: coordinator,
		transport:   transport,
		workerCount: workerCount,
		logger:      elog.DefaultLogger,
	}
}

func (c *DeliveryEventConsumer) Start(ctx context.Context) {
	msgCh := make(chan *kafka.Message)
	for i := 0; i < c.workerCount; i++ {
		go c.work(ctx, msgCh)
	}
	go c.dispatch(ctx, msgCh)
}

func (c *DeliveryEventConsumer) dispatch(ctx context.Context, msgCh chan<- *kafka.Message) {
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := c.consumer.ReadMessage(readTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			c.logger.Error("读取投递事件失败", elog.FieldErr(err))
			continue
		}
		select {
		case msgCh <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (c *DeliveryEventConsumer) work(ctx context.Context, msgCh <-chan *kafka.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-msgCh:
			c.handle(ctx, msg)
		}
	}
}

func (c *DeliveryEventConsumer) handle(ctx context.Context, msg *kafka.Message) {
	var pushMsg domain.PushMessage
	if err := json.Unmarshal(msg.Value, &pushMsg); err != nil {
		c.logger.Warn("解析投递事件失败，送入死信",
			elog.FieldErr(err),
			elog.Any("msg", msg))
		// 毒消息重投多少次都解不开，死信后照常提交。
		// 原始载荷里没有可信的幂等键，用载荷哈希合成一个，
		// 不同的毒消息才不会在死信表的唯一索引上互相顶掉
		entry := domain.DeadLetterEntry{
			Reason:    "解析投递事件失败: " + err.Error(),
			CreatedAt: time.Now(),
		}
		entry.Message.IdempotencyKey = poisonKey(msg.Value)
		if err := c.transport.DeadLetter(ctx, entry); err != nil {
			c.logger.Error("毒消息死信失败", elog.FieldErr(err))
			return
		}
		c.commit(msg)
		return
	}

	if err := c.coordinator.HandleMessage(ctx, pushMsg); err != nil {
		// 不提交位点，等队列按至少一次语义重新投递
		c.logger.Error("处理投递事件失败",
			elog.FieldErr(err),
			elog.Any("notificationID", pushMsg.NotificationID))
		return
	}
	c.commit(msg)
}

// poisonKey 对原始载荷取哈希当幂等键，同一条毒消息重投后落到同一条死信
func poisonKey(payload []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(payload)
	return fmt.Sprintf("poison-%016x", h.Sum64())
}

func (c *DeliveryEventConsumer) commit(msg *kafka.Message) {
	if _, err := c.consumer.CommitMessage(msg); err != nil {
		c.logger.Warn("提交消息失败",
			elog.FieldErr(err),
			elog.Any("msg", msg))
	}
}
