package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRetry(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		cfg         Config
		expectError bool
	}{
		{
			name: "固定间隔策略",
			cfg: Config{
				Type:          "fixed",
				FixedInterval: &FixedIntervalConfig{MaxRetries: 3, Interval: time.Second},
			},
		},
		{
			name: "指数退避策略",
			cfg: Config{
				Type: "exponential",
				ExponentialBackoff: &ExponentialBackoffConfig{
					InitialInterval: time.Second,
					MaxInterval:     time.Minute,
					MaxRetries:      3,
				},
			},
		},
		{
			name:        "未知策略类型",
			cfg:         Config{Type: "unknown"},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			strategy, err := NewRetry(tc.cfg)
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, strategy)
		})
	}
}

func TestExponentialBackoff_延迟按尝试次数翻倍(t *testing.T) {
	t.Parallel()

	base := 2 * time.Second
	strategy := NewExponentialBackoffStrategy(base, time.Minute, 4)

	// 总预算 4 次尝试 = 首投 + 3 次重投，延迟依次是 base*1、base*2、base*4
	expected := []time.Duration{base, base * 2, base * 4}
	for attempted, want := range expected {
		delay, ok := strategy.NextDelay(int32(attempted))
		require.True(t, ok, "第 %d 次尝试后应该还能重试", attempted)
		assert.Equal(t, want, delay)
	}

	// 第 4 次尝试把预算用完
	_, ok := strategy.NextDelay(3)
	assert.False(t, ok)
}

func TestExponentialBackoff_预算按总尝试次数计(t *testing.T) {
	t.Parallel()

	// MaxRetries=3 含首投：只允许 2 次重投，第 3 次失败直接耗尽
	strategy := NewExponentialBackoffStrategy(time.Second, time.Minute, 3)

	_, ok := strategy.NextDelay(0)
	require.True(t, ok)
	_, ok = strategy.NextDelay(1)
	require.True(t, ok)
	_, ok = strategy.NextDelay(2)
	assert.False(t, ok)

	// 预算为 1 时首投失败即耗尽
	single := NewExponentialBackoffStrategy(time.Second, time.Minute, 1)
	_, ok = single.NextDelay(0)
	assert.False(t, ok)
}

func TestExponentialBackoff_上限封顶(t *testing.T) {
	t.Parallel()

	strategy := NewExponentialBackoffStrategy(time.Second, 5*time.Second, 10)

	delay, ok := strategy.NextDelay(8)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, delay)
}

func TestFixedInterval(t *testing.T) {
	t.Parallel()

	strategy := NewFixedIntervalStrategy(time.Second, 3)

	delay, ok := strategy.NextDelay(0)
	require.True(t, ok)
	assert.Equal(t, time.Second, delay)

	delay, ok = strategy.NextDelay(1)
	require.True(t, ok)
	assert.Equal(t, time.Second, delay)

	_, ok = strategy.NextDelay(2)
	assert.False(t, ok)
}
