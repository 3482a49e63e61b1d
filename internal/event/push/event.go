package push

import (
	"gitee.com/flycash/push-platform/internal/domain"
)

const (
	// DeliveryEventName 主投递主题，业务方把待推送消息写到这里
	DeliveryEventName = "push_delivery_events"
	// RetryEventName 延迟重投主题，管道把需要退避的消息写到这里
	RetryEventName = "push_delivery_retry_events"
	// DeadLetterEventName 死信主题
	DeadLetterEventName = "push_dead_letter_events"
)

// RetryEvent 延迟重投信封。延迟消费者扣住消息直到 DeliverAfterMillis，
// 再把内层消息原样送回主投递主题
type RetryEvent struct {
	Message domain.PushMessage `json:"message"`
	// DeliverAfterMillis 最早可投递时间（毫秒时间戳）
	DeliverAfterMillis int64 `json:"deliver_after"`
}
