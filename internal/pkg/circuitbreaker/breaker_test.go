package circuitbreaker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gitee.com/flycash/push-platform/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(cfg Config) (*Breaker, *time.Time) {
	b := NewBreaker(cfg)
	current := time.Now()
	b.now = func() time.Time { return current }
	return b, &current
}

func TestBreaker_连续失败后打开(t *testing.T) {
	t.Parallel()

	b, _ := newTestBreaker(DefaultConfig())

	// 前两次失败仍然放行
	for i := 0; i < 2; i++ {
		require.NoError(t, b.Acquire())
		b.MarkFailure()
		assert.Equal(t, StateClosed, b.Snapshot().State)
	}

	// 第三次失败触发熔断
	require.NoError(t, b.Acquire())
	b.MarkFailure()
	assert.Equal(t, StateOpen, b.Snapshot().State)

	err := b.Acquire()
	assert.ErrorIs(t, err, errs.ErrCircuitOpen)
	assert.Positive(t, b.Snapshot().RetryAfter)
}

func TestBreaker_成功清零失败计数(t *testing.T) {
	t.Parallel()

	b, _ := newTestBreaker(DefaultConfig())

	b.MarkFailure()
	b.MarkFailure()
	b.MarkSuccess()
	b.MarkFailure()
	b.MarkFailure()
	// 中间的成功打断了连续失败，不应打开
	assert.Equal(t, StateClosed, b.Snapshot().State)
}

func TestBreaker_冷却后半开试探(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		trialSucceeds bool
		expectedState State
	}{
		{
			name:          "试探成功转关闭",
			trialSucceeds: true,
			expectedState: StateClosed,
		},
		{
			name:          "试探失败重新打开",
			trialSucceeds: false,
			expectedState: StateOpen,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b, current := newTestBreaker(DefaultConfig())
			for i := 0; i < 3; i++ {
				b.MarkFailure()
			}
			require.Equal(t, StateOpen, b.Snapshot().State)

			// 冷却未结束仍被拒绝
			*current = current.Add(10 * time.Second)
			assert.ErrorIs(t, b.Acquire(), errs.ErrCircuitOpen)

			// 冷却结束，下一次请求作为试探放行
			*current = current.Add(21 * time.Second)
			require.NoError(t, b.Acquire())
			assert.Equal(t, StateHalfOpen, b.Snapshot().State)

			if tc.trialSucceeds {
				b.MarkSuccess()
			} else {
				b.MarkFailure()
			}
			assert.Equal(t, tc.expectedState, b.Snapshot().State)

			if !tc.trialSucceeds {
				// 重新打开后冷却计时被刷新
				assert.ErrorIs(t, b.Acquire(), errs.ErrCircuitOpen)
				snapshot := b.Snapshot()
				assert.Positive(t, snapshot.RetryAfter)
			}
		})
	}
}

func TestBreaker_半开只放行一个试探(t *testing.T) {
	t.Parallel()

	b, current := newTestBreaker(DefaultConfig())
	for i := 0; i < 3; i++ {
		b.MarkFailure()
	}
	*current = current.Add(31 * time.Second)

	const concurrency = 10
	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Acquire() == nil {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), admitted)
}

func TestBreaker_手动重置(t *testing.T) {
	t.Parallel()

	b, _ := newTestBreaker(DefaultConfig())
	for i := 0; i < 3; i++ {
		b.MarkFailure()
	}
	require.Equal(t, StateOpen, b.Snapshot().State)

	b.Reset()
	assert.Equal(t, StateClosed, b.Snapshot().State)
	assert.NoError(t, b.Acquire())
}

func TestGroup_路由隔离(t *testing.T) {
	t.Parallel()

	g := NewGroup(DefaultConfig())
	android := g.Get("android")
	ios := g.Get("ios")

	for i := 0; i < 3; i++ {
		android.MarkFailure()
	}

	assert.ErrorIs(t, android.Acquire(), errs.ErrCircuitOpen)
	assert.NoError(t, ios.Acquire())

	snapshots := g.Snapshots()
	assert.Equal(t, StateOpen, snapshots["android"].State)
	assert.Equal(t, StateClosed, snapshots["ios"].State)

	// 同一个路由返回同一个实例
	assert.Same(t, android, g.Get("android"))
}
