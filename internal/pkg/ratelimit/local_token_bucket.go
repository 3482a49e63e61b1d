package ratelimit

import (
	"math"
	"sync"
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/net/context"
)

var _ Limiter = (*LocalTokenBucketLimiter)(nil)

// LocalTokenBucketLimiter 进程内令牌桶实现，单节点部署和单元测试使用
// 桶按键惰性创建，闲置的桶由 go-cache 过期回收
type LocalTokenBucketLimiter struct {
	cfg     Config
	buckets *gocache.Cache
	// createMu 只保护桶的创建，消费走各自桶内的锁，互不竞争
	createMu sync.Mutex
	now      func() time.Time
}

func NewLocalTokenBucketLimiter(cfg Config) *LocalTokenBucketLimiter {
	const cleanupFactor = 2
	idle := cfg.Window * idleTTLFactor
	return &LocalTokenBucketLimiter{
		cfg:     cfg,
		buckets: gocache.New(idle, idle*cleanupFactor),
		now:     time.Now,
	}
}

type localBucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

func (l *LocalTokenBucketLimiter) CheckAndConsume(_ context.Context, key string, cost int64) (Decision, error) {
	b := l.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	l.refill(b, now)

	if b.tokens >= float64(cost) {
		b.tokens -= float64(cost)
		return Decision{
			Admitted:  true,
			Remaining: int64(b.tokens),
		}, nil
	}

	return Decision{
		Admitted:   false,
		Remaining:  int64(b.tokens),
		RetryAfter: l.waitFor(float64(cost) - b.tokens),
	}, nil
}

func (l *LocalTokenBucketLimiter) Snapshot(_ context.Context, key string) (domain.QuotaSnapshot, error) {
	b := l.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	l.refill(b, now)

	var retryAfter time.Duration
	if b.tokens < 1 {
		retryAfter = l.waitFor(1 - b.tokens)
	}
	return domain.QuotaSnapshot{
		UserID:     key,
		Remaining:  int64(b.tokens),
		Capacity:   l.cfg.effectiveCapacity(),
		LastRefill: b.lastRefill,
		RetryAfter: retryAfter,
	}, nil
}

func (l *LocalTokenBucketLimiter) Reset(_ context.Context, key string) error {
	b := l.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = float64(l.cfg.effectiveCapacity())
	b.lastRefill = l.now()
	return nil
}

func (l *LocalTokenBucketLimiter) bucket(key string) *localBucket {
	if v, ok := l.buckets.Get(key); ok {
		return v.(*localBucket)
	}

	l.createMu.Lock()
	defer l.createMu.Unlock()
	// 双重检查，避免并发重复建桶
	if v, ok := l.buckets.Get(key); ok {
		return v.(*localBucket)
	}
	b := &localBucket{
		tokens:     float64(l.cfg.effectiveCapacity()),
		lastRefill: l.now(),
	}
	l.buckets.SetDefault(key, b)
	return b
}

func (l *LocalTokenBucketLimiter) refill(b *localBucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(
		float64(l.cfg.effectiveCapacity()),
		b.tokens+float64(elapsed.Milliseconds())*l.cfg.refillPerMilli(),
	)
	b.lastRefill = now
}

// waitFor 恢复 missing 个令牌需要的时间
func (l *LocalTokenBucketLimiter) waitFor(missing float64) time.Duration {
	millis := math.Ceil(missing / l.cfg.refillPerMilli())
	return time.Duration(millis) * time.Millisecond
}
