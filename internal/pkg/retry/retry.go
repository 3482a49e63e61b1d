package retry

import (
	"fmt"
	"time"
)

// Strategy 重试策略。入参是已经发生的尝试次数（从 0 开始计），
// 返回下一次重投前的延迟；ok 为 false 表示预算耗尽，不再重试。
// MaxRetries 是总尝试次数预算：首次投递也算一次，MaxRetries=3 意味着
// 最多 3 次网关调用（1 次首投 + 2 次重投）
type Strategy interface {
	NextDelay(attempted int32) (delay time.Duration, ok bool)
}

type Config struct {
	Type               string                    `json:"type"` // 重试策略
	FixedInterval      *FixedIntervalConfig      `json:"fixedInterval"`
	ExponentialBackoff *ExponentialBackoffConfig `json:"exponentialBackoff"`
}

type ExponentialBackoffConfig struct {
	// 初始重试间隔
	InitialInterval time.Duration `json:"initialInterval"`
	// 最大重试间隔，指数增长到它之后不再翻倍
	MaxInterval time.Duration `json:"maxInterval"`
	// 最大重试次数
	MaxRetries int32 `json:"maxRetries"`
}

type FixedIntervalConfig struct {
	MaxRetries int32         `json:"maxRetries"`
	Interval   time.Duration `json:"interval"`
}

// NewRetry 根据 config 中的字段来构建策略
func NewRetry(cfg Config) (Strategy, error) {
	switch cfg.Type {
	case "fixed":
		return NewFixedIntervalStrategy(cfg.FixedInterval.Interval, cfg.FixedInterval.MaxRetries), nil
	case "exponential":
		return NewExponentialBackoffStrategy(
			cfg.ExponentialBackoff.InitialInterval,
			cfg.ExponentialBackoff.MaxInterval,
			cfg.ExponentialBackoff.MaxRetries,
		), nil
	default:
		return nil, fmt.Errorf("unknown retry type: %s", cfg.Type)
	}
}

type fixedIntervalStrategy struct {
	interval   time.Duration
	maxRetries int32
}

func NewFixedIntervalStrategy(interval time.Duration, maxRetries int32) Strategy {
	return &fixedIntervalStrategy{interval: interval, maxRetries: maxRetries}
}

func (s *fixedIntervalStrategy) NextDelay(attempted int32) (time.Duration, bool) {
	// 当前这次失败也计入预算
	if attempted+1 >= s.maxRetries {
		return 0, false
	}
	return s.interval, true
}

type exponentialBackoffStrategy struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	maxRetries      int32
}

func NewExponentialBackoffStrategy(initialInterval, maxInterval time.Duration, maxRetries int32) Strategy {
	return &exponentialBackoffStrategy{
		initialInterval: initialInterval,
		maxInterval:     maxInterval,
		maxRetries:      maxRetries,
	}
}

func (s *exponentialBackoffStrategy) NextDelay(attempted int32) (time.Duration, bool) {
	// 当前这次失败也计入预算
	if attempted+1 >= s.maxRetries {
		return 0, false
	}
	delay := s.initialInterval << attempted
	// 位移溢出或超过上限都按上限处理
	if delay <= 0 || (s.maxInterval > 0 && delay > s.maxInterval) {
		delay = s.maxInterval
	}
	return delay, true
}
