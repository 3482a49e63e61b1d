package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, cfg Config) (*LocalTokenBucketLimiter, *time.Time) {
	t.Helper()
	limiter := NewLocalTokenBucketLimiter(cfg)
	current := time.Now()
	limiter.now = func() time.Time { return current }
	return limiter, &current
}

func TestLocalTokenBucket_容量耗尽后拒绝(t *testing.T) {
	t.Parallel()

	const capacity = 100
	limiter, _ := newTestLimiter(t, Config{Capacity: capacity, Window: time.Hour})

	ctx := t.Context()
	for i := 0; i < capacity; i++ {
		decision, err := limiter.CheckAndConsume(ctx, "user-1", 1)
		require.NoError(t, err)
		require.True(t, decision.Admitted, "第 %d 次请求应该放行", i+1)
	}

	// 第 101 次在无补充的情况下被拒绝，且带有正的等待时间
	decision, err := limiter.CheckAndConsume(ctx, "user-1", 1)
	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Positive(t, decision.RetryAfter)
	assert.Equal(t, int64(0), decision.Remaining)
}

func TestLocalTokenBucket_连续补充(t *testing.T) {
	t.Parallel()

	limiter, current := newTestLimiter(t, Config{Capacity: 100, Window: time.Hour})

	ctx := t.Context()
	for i := 0; i < 100; i++ {
		_, err := limiter.CheckAndConsume(ctx, "user-1", 1)
		require.NoError(t, err)
	}

	// 半小时恢复一半容量
	*current = current.Add(30 * time.Minute)
	snapshot, err := limiter.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.InDelta(t, 50, snapshot.Remaining, 1)

	// 超过窗口也不会超出容量上限
	*current = current.Add(10 * time.Hour)
	snapshot, err = limiter.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), snapshot.Remaining)
}

func TestLocalTokenBucket_并发不超卖(t *testing.T) {
	t.Parallel()

	const capacity = 10
	limiter := NewLocalTokenBucketLimiter(Config{Capacity: capacity, Window: time.Hour})

	const concurrency = 100
	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := limiter.CheckAndConsume(t.Context(), "user-1", 1)
			assert.NoError(t, err)
			if decision.Admitted {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(capacity), admitted)
}

func TestLocalTokenBucket_不同用户互不影响(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, Config{Capacity: 1, Window: time.Hour})

	ctx := t.Context()
	decision, err := limiter.CheckAndConsume(ctx, "user-a", 1)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)

	decision, err = limiter.CheckAndConsume(ctx, "user-a", 1)
	require.NoError(t, err)
	assert.False(t, decision.Admitted)

	decision, err = limiter.CheckAndConsume(ctx, "user-b", 1)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
}

func TestLocalTokenBucket_Reset回满(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, Config{Capacity: 5, Window: time.Hour})

	ctx := t.Context()
	for i := 0; i < 5; i++ {
		_, err := limiter.CheckAndConsume(ctx, "user-1", 1)
		require.NoError(t, err)
	}

	require.NoError(t, limiter.Reset(ctx, "user-1"))

	snapshot, err := limiter.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), snapshot.Remaining)
	assert.Zero(t, snapshot.RetryAfter)
}

func TestLocalTokenBucket_突发加量(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, Config{Capacity: 10, Window: time.Hour, Burst: 20})

	ctx := t.Context()
	snapshot, err := limiter.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), snapshot.Capacity)
	assert.Equal(t, int64(30), snapshot.Remaining)
}
