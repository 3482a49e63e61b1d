package ratelimit

import (
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	"golang.org/x/net/context"
)

// Config 令牌桶参数。容量在 Window 内匀速恢复，Burst 是高峰期的临时加量
type Config struct {
	Capacity int64         `json:"capacity"`
	Window   time.Duration `json:"window"`
	Burst    int64         `json:"burst"`
}

func DefaultConfig() Config {
	const defaultCapacity = 100
	return Config{
		Capacity: defaultCapacity,
		Window:   time.Hour,
	}
}

// effectiveCapacity 桶的真实上限
func (c Config) effectiveCapacity() int64 {
	return c.Capacity + c.Burst
}

// refillPerMilli 每毫秒恢复的令牌数
func (c Config) refillPerMilli() float64 {
	return float64(c.Capacity) / float64(c.Window.Milliseconds())
}

type Decision struct {
	Admitted  bool
	Remaining int64
	// RetryAfter 被拒绝时距离下一个令牌可用的等待时间
	RetryAfter time.Duration
}

//go:generate mockgen -source=./types.go -package=limitmocks -destination=./mocks/limiter.mock.go -typed Limiter
type Limiter interface {
	// CheckAndConsume 检查并消费指定数量的令牌，同一个键上的并发调用串行生效
	CheckAndConsume(ctx context.Context, key string, cost int64) (Decision, error)
	// Snapshot 只读获取当前桶状态，不消费令牌
	Snapshot(ctx context.Context, key string) (domain.QuotaSnapshot, error)
	// Reset 管理操作，令牌回满、计时归零
	Reset(ctx context.Context, key string) error
}
