package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	"gitee.com/flycash/push-platform/internal/errs"
)

// State 熔断器状态
type State string

const (
	StateClosed   State = "CLOSED"    // 正常放行
	StateOpen     State = "OPEN"      // 全部拒绝
	StateHalfOpen State = "HALF_OPEN" // 有限试探
)

type Config struct {
	// FailureThreshold 连续失败多少次后打开熔断
	FailureThreshold int32 `json:"failureThreshold"`
	// Cooldown 打开后经过多久允许进入半开试探
	Cooldown time.Duration `json:"cooldown"`
	// HalfOpenTrials 半开状态允许的试探请求数
	HalfOpenTrials int32 `json:"halfOpenTrials"`
}

func DefaultConfig() Config {
	const defaultThreshold = 3
	const defaultCooldown = 30 * time.Second
	return Config{
		FailureThreshold: defaultThreshold,
		Cooldown:         defaultCooldown,
		HalfOpenTrials:   1,
	}
}

// Snapshot 熔断器的只读快照
type Snapshot struct {
	State               State         `json:"state"`
	ConsecutiveFailures int32         `json:"consecutive_failures"`
	LastTransition      time.Time     `json:"last_transition"`
	// RetryAfter 打开状态下距离进入半开的剩余冷却时间
	RetryAfter time.Duration `json:"retry_after"`
}

// Breaker 单条路由的熔断器。只负责门控，从不自己发起重试
type Breaker struct {
	mu  sync.Mutex
	cfg Config

	state               State
	consecutiveFailures int32
	lastTransition      time.Time
	trialInFlight       int32

	now func() time.Time
}

func NewBreaker(cfg Config) *Breaker {
	return &Breaker{
		cfg:   cfg,
		state: StateClosed,
		now:   time.Now,
	}
}

// Acquire 申请一次放行。被拒绝时返回 errs.ErrCircuitOpen 或 errs.ErrTrialRejected，
// 拒绝原因里带上剩余冷却时间，调用方据此安排重投延迟
func (b *Breaker) Acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		remaining := b.remainingCooldown()
		if remaining > 0 {
			return fmt.Errorf("%w: 剩余冷却 %s", errs.ErrCircuitOpen, remaining)
		}
		// 冷却结束，转半开并把本次请求作为试探放行
		b.transitionTo(StateHalfOpen)
		b.trialInFlight = 1
		return nil
	case StateHalfOpen:
		if b.trialInFlight < b.cfg.HalfOpenTrials {
			b.trialInFlight++
			return nil
		}
		return fmt.Errorf("%w", errs.ErrTrialRejected)
	default:
		return fmt.Errorf("%w: %s", errs.ErrInvalidParameter, b.state)
	}
}

// MarkSuccess 上报一次成功结果
func (b *Breaker) MarkSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		// 试探成功，恢复正常
		b.transitionTo(StateClosed)
	case StateClosed:
		b.consecutiveFailures = 0
	case StateOpen:
		// 打开状态不应有放行的请求，忽略
	}
}

// MarkFailure 上报一次失败结果
func (b *Breaker) MarkFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		// 试探失败，重新打开并刷新冷却计时
		b.transitionTo(StateOpen)
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transitionTo(StateOpen)
		}
	case StateOpen:
	}
}

// Snapshot 读取当前状态
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot := Snapshot{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		LastTransition:      b.lastTransition,
	}
	if b.state == StateOpen {
		snapshot.RetryAfter = b.remainingCooldown()
	}
	return snapshot
}

// Reset 管理操作，强制恢复到关闭状态
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionTo(StateClosed)
}

func (b *Breaker) transitionTo(state State) {
	b.state = state
	b.lastTransition = b.now()
	b.trialInFlight = 0
	if state == StateClosed {
		b.consecutiveFailures = 0
	}
}

func (b *Breaker) remainingCooldown() time.Duration {
	elapsed := b.now().Sub(b.lastTransition)
	if elapsed >= b.cfg.Cooldown {
		return 0
	}
	return b.cfg.Cooldown - elapsed
}
