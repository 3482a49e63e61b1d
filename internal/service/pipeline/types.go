package pipeline

import (
	"context"
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
)

//go:generate mockgen -source=./types.go -destination=./mocks/transport.mock.go -package=pipelinemocks -typed Transport

// Transport 管道对消息队列的反向依赖：延迟重投和死信投递。
// ack 由消费端提交位点完成，不在此接口内。
type Transport interface {
	// NackWithDelay 将消息重新投递，至少 delay 之后才会再次被消费
	NackWithDelay(ctx context.Context, msg domain.PushMessage, delay time.Duration) error
	// DeadLetter 投递死信
	DeadLetter(ctx context.Context, entry domain.DeadLetterEntry) error
}

type Config struct {
	// SendTimeout 单次网关调用超时
	SendTimeout time.Duration `json:"sendTimeout"`
	// RateLimitConsumesAttempt 限流重投是否计入尝试次数
	RateLimitConsumesAttempt bool `json:"rateLimitConsumesAttempt"`
	// PendingRequeueDelay 撞上处理中的重复消息时的重投间隔
	PendingRequeueDelay time.Duration `json:"pendingRequeueDelay"`
}

func DefaultConfig() Config {
	return Config{
		SendTimeout:         5 * time.Second,
		PendingRequeueDelay: 5 * time.Second,
	}
}
