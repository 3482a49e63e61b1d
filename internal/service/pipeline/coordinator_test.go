package pipeline_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	"gitee.com/flycash/push-platform/internal/errs"
	"gitee.com/flycash/push-platform/internal/pkg/circuitbreaker"
	"gitee.com/flycash/push-platform/internal/pkg/idempotent"
	"gitee.com/flycash/push-platform/internal/pkg/ratelimit"
	"gitee.com/flycash/push-platform/internal/pkg/retry"
	"gitee.com/flycash/push-platform/internal/service/gateway"
	gatewaymocks "gitee.com/flycash/push-platform/internal/service/gateway/mocks"
	"gitee.com/flycash/push-platform/internal/service/pipeline"
	pipelinemocks "gitee.com/flycash/push-platform/internal/service/pipeline/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testBaseDelay  = 100 * time.Millisecond
	testMaxDelay   = time.Minute
	testMaxRetries = 3
)

type requeuedMessage struct {
	Msg   domain.PushMessage
	Delay time.Duration
}

type fakeTransport struct {
	mu          sync.Mutex
	requeues    []requeuedMessage
	deadLetters []domain.DeadLetterEntry
}

func (f *fakeTransport) NackWithDelay(_ context.Context, msg domain.PushMessage, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeues = append(f.requeues, requeuedMessage{Msg: msg, Delay: delay})
	return nil
}

func (f *fakeTransport) DeadLetter(_ context.Context, entry domain.DeadLetterEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadLetters = append(f.deadLetters, entry)
	return nil
}

type fakeAudit struct {
	mu          sync.Mutex
	attempts    []domain.DeliveryAttempt
	deadLetters []domain.DeadLetterEntry
}

func (f *fakeAudit) RecordAttempt(_ context.Context, attempt domain.DeliveryAttempt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, attempt)
}

func (f *fakeAudit) RecordDeadLetter(_ context.Context, entry domain.DeadLetterEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadLetters = append(f.deadLetters, entry)
	return nil
}

type gatewayFunc func(ctx context.Context, req gateway.SendRequest) (gateway.SendResponse, error)

func (f gatewayFunc) Send(ctx context.Context, req gateway.SendRequest) (gateway.SendResponse, error) {
	return f(ctx, req)
}

type fixture struct {
	coordinator pipeline.Coordinator
	idem        idempotent.Service
	transport   *fakeTransport
	audit       *fakeAudit
	breakers    *circuitbreaker.Group
	sendCount   *int
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	pipeline  pipeline.Config
	ratelimit ratelimit.Config
	breaker   circuitbreaker.Config
	gateway   gatewayFunc
}

func withPipelineConfig(cfg pipeline.Config) fixtureOption {
	return func(c *fixtureConfig) { c.pipeline = cfg }
}

func withRateLimit(cfg ratelimit.Config) fixtureOption {
	return func(c *fixtureConfig) { c.ratelimit = cfg }
}

func withBreaker(cfg circuitbreaker.Config) fixtureOption {
	return func(c *fixtureConfig) { c.breaker = cfg }
}

func withGateway(fn gatewayFunc) fixtureOption {
	return func(c *fixtureConfig) { c.gateway = fn }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	sendCount := 0
	cfg := &fixtureConfig{
		pipeline:  pipeline.DefaultConfig(),
		ratelimit: ratelimit.DefaultConfig(),
		// 默认阈值调高，只有熔断相关的用例才关心它
		breaker: circuitbreaker.Config{FailureThreshold: 100, Cooldown: 30 * time.Second, HalfOpenTrials: 1},
		gateway: func(_ context.Context, req gateway.SendRequest) (gateway.SendResponse, error) {
			results := make([]domain.TokenResult, 0, len(req.Tokens))
			for _, token := range req.Tokens {
				results = append(results, domain.TokenResult{Token: token, Class: domain.OutcomeSuccess})
			}
			return gateway.SendResponse{Results: results}, nil
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	idem := idempotent.NewLocalIdempotencyService(24*time.Hour, time.Minute)
	transport := &fakeTransport{}
	auditSvc := &fakeAudit{}
	breakers := circuitbreaker.NewGroup(cfg.breaker)
	innerGateway := cfg.gateway
	counted := gatewayFunc(func(ctx context.Context, req gateway.SendRequest) (gateway.SendResponse, error) {
		sendCount++
		return innerGateway(ctx, req)
	})

	coordinator := pipeline.NewCoordinator(
		cfg.pipeline,
		idem,
		ratelimit.NewLocalTokenBucketLimiter(cfg.ratelimit),
		breakers,
		counted,
		retry.NewExponentialBackoffStrategy(testBaseDelay, testMaxDelay, testMaxRetries),
		transport,
		auditSvc,
	)
	return &fixture{
		coordinator: coordinator,
		idem:        idem,
		transport:   transport,
		audit:       auditSvc,
		breakers:    breakers,
		sendCount:   &sendCount,
	}
}

func newTestMessage(key string) domain.PushMessage {
	msg := domain.PushMessage{
		NotificationID: "ntf-" + key,
		IdempotencyKey: key,
		UserID:         "user-1",
		Platform:       domain.PlatformAndroid,
		Title:          "你好",
		Body:           "今晚八点开播",
		DeviceTokens:   []string{"token-1", "token-2"},
		TTLSeconds:     3600,
	}
	msg.EnqueuedAtMillis = time.Now().UnixMilli()
	return msg
}

func retryableGateway(_ context.Context, _ gateway.SendRequest) (gateway.SendResponse, error) {
	return gateway.SendResponse{}, fmt.Errorf("mock: %w", errs.ErrGatewayRetryable)
}

func TestCoordinator_SuccessAndDuplicate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	msg := newTestMessage("key-success")

	require.NoError(t, f.coordinator.HandleMessage(t.Context(), msg))
	assert.Equal(t, 1, *f.sendCount)
	assert.Empty(t, f.transport.requeues)
	assert.Empty(t, f.transport.deadLetters)

	require.Len(t, f.audit.attempts, 1)
	assert.Equal(t, domain.OutcomeSuccess, f.audit.attempts[0].Class)
	assert.Equal(t, 2, f.audit.attempts[0].TokenSucceeded)

	// 同一条消息再投一次：直接确认，网关不再被调用
	require.NoError(t, f.coordinator.HandleMessage(t.Context(), msg))
	assert.Equal(t, 1, *f.sendCount)

	decision, err := f.idem.Admit(t.Context(), msg.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, idempotent.StatusProcessed, decision.Status)
	assert.Equal(t, domain.TerminalDelivered, decision.Outcome.Status)
	assert.Equal(t, 2, decision.Outcome.TokenSucceeded)
}

func TestCoordinator_ConcurrentDuplicates(t *testing.T) {
	t.Parallel()

	const goroutines = 8
	f := newFixture(t)
	msg := newTestMessage("key-concurrent")

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_ = f.coordinator.HandleMessage(context.Background(), msg)
		}()
	}
	wg.Wait()

	// 至多一个协程真正调用网关，其余要么读到终态要么撞上处理中标记被重投
	assert.Equal(t, 1, *f.sendCount)
}

func TestCoordinator_RateLimited(t *testing.T) {
	t.Parallel()

	t.Run("默认不消耗尝试次数", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, withRateLimit(ratelimit.Config{Capacity: 1, Window: time.Hour}))

		require.NoError(t, f.coordinator.HandleMessage(t.Context(), newTestMessage("key-rl-1")))

		second := newTestMessage("key-rl-2")
		require.NoError(t, f.coordinator.HandleMessage(t.Context(), second))

		assert.Equal(t, 1, *f.sendCount)
		require.Len(t, f.transport.requeues, 1)
		requeued := f.transport.requeues[0]
		assert.Equal(t, int32(0), requeued.Msg.Attempts)
		assert.Positive(t, requeued.Delay)

		// 处理中标记已释放，重投回来还能正常走幂等检查
		decision, err := f.idem.Admit(t.Context(), second.IdempotencyKey)
		require.NoError(t, err)
		assert.Equal(t, idempotent.StatusProceed, decision.Status)
	})

	t.Run("配置后计入尝试次数", func(t *testing.T) {
		t.Parallel()

		cfg := pipeline.DefaultConfig()
		cfg.RateLimitConsumesAttempt = true
		f := newFixture(t,
			withPipelineConfig(cfg),
			withRateLimit(ratelimit.Config{Capacity: 1, Window: time.Hour}))

		require.NoError(t, f.coordinator.HandleMessage(t.Context(), newTestMessage("key-rlc-1")))
		require.NoError(t, f.coordinator.HandleMessage(t.Context(), newTestMessage("key-rlc-2")))

		require.Len(t, f.transport.requeues, 1)
		assert.Equal(t, int32(1), f.transport.requeues[0].Msg.Attempts)
	})
}

func TestCoordinator_RetryableBackoffSequence(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withGateway(retryableGateway))
	msg := newTestMessage("key-backoff")

	// 预算 3 次尝试含首投，前两次失败重投，退避依次是 base、base*2
	wantDelays := []time.Duration{testBaseDelay, 2 * testBaseDelay}
	for i, want := range wantDelays {
		require.NoError(t, f.coordinator.HandleMessage(t.Context(), msg))
		require.Len(t, f.transport.requeues, i+1)
		requeued := f.transport.requeues[i]
		assert.Equal(t, want, requeued.Delay)
		assert.Equal(t, int32(i+1), requeued.Msg.Attempts)
		msg = requeued.Msg
	}

	// 第三次尝试失败即耗尽预算，转死信并写入终态
	require.NoError(t, f.coordinator.HandleMessage(t.Context(), msg))
	require.Len(t, f.transport.deadLetters, 1)
	assert.Len(t, f.transport.requeues, len(wantDelays))
	assert.NotEmpty(t, f.transport.deadLetters[0].FailureHistory)

	// 网关总共只被调用了预算规定的次数
	assert.Equal(t, int(testMaxRetries), *f.sendCount)

	decision, err := f.idem.Admit(t.Context(), msg.IdempotencyKey)
	require.NoError(t, err)
	require.Equal(t, idempotent.StatusProcessed, decision.Status)
	assert.Equal(t, domain.TerminalDeadLettered, decision.Outcome.Status)

	// 审计里每次网关调用都有记录
	assert.Len(t, f.audit.attempts, len(wantDelays)+1)
	assert.Len(t, f.audit.deadLetters, 1)
}

func TestCoordinator_PermanentFailureDeadLettersImmediately(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withGateway(func(_ context.Context, _ gateway.SendRequest) (gateway.SendResponse, error) {
		return gateway.SendResponse{}, fmt.Errorf("mock: %w", errs.ErrGatewayPermanent)
	}))
	msg := newTestMessage("key-permanent")

	require.NoError(t, f.coordinator.HandleMessage(t.Context(), msg))

	assert.Empty(t, f.transport.requeues)
	require.Len(t, f.transport.deadLetters, 1)
	assert.Equal(t, msg.NotificationID, f.transport.deadLetters[0].Message.NotificationID)

	// 永久失败不应累积熔断失败计数
	snapshot := f.breakers.Get(string(msg.Platform)).Snapshot()
	assert.Equal(t, circuitbreaker.StateClosed, snapshot.State)
	assert.Equal(t, int32(0), snapshot.ConsecutiveFailures)
}

func TestCoordinator_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	const threshold = 3
	f := newFixture(t,
		withGateway(retryableGateway),
		withBreaker(circuitbreaker.Config{FailureThreshold: threshold, Cooldown: 30 * time.Second, HalfOpenTrials: 1}))

	for i := 0; i < threshold; i++ {
		require.NoError(t, f.coordinator.HandleMessage(t.Context(), newTestMessage(fmt.Sprintf("key-cb-%d", i))))
	}
	assert.Equal(t, threshold, *f.sendCount)
	assert.Equal(t, circuitbreaker.StateOpen, f.breakers.Get("android").Snapshot().State)

	// 熔断打开后网关不再被调用，重投延迟至少覆盖剩余冷却
	require.NoError(t, f.coordinator.HandleMessage(t.Context(), newTestMessage("key-cb-rejected")))
	assert.Equal(t, threshold, *f.sendCount)
	require.Len(t, f.transport.requeues, threshold+1)
	rejected := f.transport.requeues[threshold]
	assert.GreaterOrEqual(t, rejected.Delay, 29*time.Second)
}

func TestCoordinator_PartialTokenFailureNarrowsRetry(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withGateway(func(_ context.Context, req gateway.SendRequest) (gateway.SendResponse, error) {
		classes := []domain.OutcomeClass{domain.OutcomeSuccess, domain.OutcomeRetryable, domain.OutcomePermanent}
		results := make([]domain.TokenResult, len(req.Tokens))
		for i, token := range req.Tokens {
			results[i] = domain.TokenResult{Token: token, Class: classes[i%len(classes)]}
		}
		return gateway.SendResponse{Results: results}, nil
	}))

	msg := newTestMessage("key-partial")
	msg.DeviceTokens = []string{"tok-ok", "tok-retry", "tok-dead"}

	require.NoError(t, f.coordinator.HandleMessage(t.Context(), msg))

	// 只有临时失败的 token 被缩窄重投，成功和永久失败的不再发送
	require.Len(t, f.transport.requeues, 1)
	requeued := f.transport.requeues[0]
	assert.Equal(t, []string{"tok-retry"}, requeued.Msg.DeviceTokens)
	assert.Equal(t, int32(1), requeued.Msg.Attempts)

	require.Len(t, f.audit.attempts, 1)
	assert.Equal(t, domain.OutcomeRetryable, f.audit.attempts[0].Class)
	assert.Equal(t, 1, f.audit.attempts[0].TokenSucceeded)
	assert.Equal(t, 3, f.audit.attempts[0].TokenTotal)
}

func TestCoordinator_AllTokensPermanentDeadLetters(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withGateway(func(_ context.Context, req gateway.SendRequest) (gateway.SendResponse, error) {
		results := make([]domain.TokenResult, len(req.Tokens))
		for i, token := range req.Tokens {
			results[i] = domain.TokenResult{Token: token, Class: domain.OutcomePermanent, Reason: "unregistered"}
		}
		return gateway.SendResponse{Results: results}, nil
	}))
	msg := newTestMessage("key-all-permanent")

	require.NoError(t, f.coordinator.HandleMessage(t.Context(), msg))

	assert.Empty(t, f.transport.requeues)
	require.Len(t, f.transport.deadLetters, 1)

	decision, err := f.idem.Admit(t.Context(), msg.IdempotencyKey)
	require.NoError(t, err)
	require.Equal(t, idempotent.StatusProcessed, decision.Status)
	assert.Equal(t, domain.TerminalDeadLettered, decision.Outcome.Status)
}

func TestCoordinator_DeadLetterProduceFailureRedelivers(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockGateway := gatewaymocks.NewMockGateway(ctrl)
	mockGateway.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(gateway.SendResponse{}, fmt.Errorf("mock: %w", errs.ErrGatewayPermanent))
	mockTransport := pipelinemocks.NewMockTransport(ctrl)
	mockTransport.EXPECT().DeadLetter(gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("mock: %w", errs.ErrDeadLetterFailed))

	coordinator := pipeline.NewCoordinator(
		pipeline.DefaultConfig(),
		idempotent.NewLocalIdempotencyService(24*time.Hour, time.Minute),
		ratelimit.NewLocalTokenBucketLimiter(ratelimit.DefaultConfig()),
		circuitbreaker.NewGroup(circuitbreaker.Config{FailureThreshold: 100, Cooldown: 30 * time.Second, HalfOpenTrials: 1}),
		mockGateway,
		retry.NewExponentialBackoffStrategy(testBaseDelay, testMaxDelay, testMaxRetries),
		mockTransport,
		&fakeAudit{},
	)

	// 死信主题写入失败必须向上返回错误，让消费者不提交位点、等待重投
	err := coordinator.HandleMessage(t.Context(), newTestMessage("key-dlq-fail"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrDeadLetterFailed)
}

func TestCoordinator_ExpiredMessageDropped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	msg := newTestMessage("key-expired")
	msg.TTLSeconds = 1
	msg.EnqueuedAtMillis = time.Now().Add(-time.Minute).UnixMilli()

	require.NoError(t, f.coordinator.HandleMessage(t.Context(), msg))

	// 过期消息既不调网关也不进死信
	assert.Equal(t, 0, *f.sendCount)
	assert.Empty(t, f.transport.requeues)
	assert.Empty(t, f.transport.deadLetters)
}

func TestCoordinator_InvalidMessageDeadLetters(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	msg := newTestMessage("key-invalid")
	msg.Title = ""

	require.NoError(t, f.coordinator.HandleMessage(t.Context(), msg))

	assert.Equal(t, 0, *f.sendCount)
	require.Len(t, f.transport.deadLetters, 1)

	// 非法消息不写终态，幂等键保持未占用
	decision, err := f.idem.Admit(t.Context(), msg.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, idempotent.StatusProceed, decision.Status)
}
