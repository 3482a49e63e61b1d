package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	"gitee.com/flycash/push-platform/internal/errs"
	"gitee.com/flycash/push-platform/internal/pkg/circuitbreaker"
	"gitee.com/flycash/push-platform/internal/pkg/idempotent"
	"gitee.com/flycash/push-platform/internal/pkg/ratelimit"
	"gitee.com/flycash/push-platform/internal/pkg/retry"
	"gitee.com/flycash/push-platform/internal/service/audit"
	"gitee.com/flycash/push-platform/internal/service/gateway"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gotomicro/ego/core/elog"
	"github.com/prometheus/client_golang/prometheus"
)

// Coordinator 投递协调器。对每条消息依次执行幂等检查、限流、熔断门控和网关调用，
// 并根据结果决定确认、延迟重投还是死信。
// 返回非 nil error 表示本条消息不应提交位点，由队列按至少一次语义重新投递
type Coordinator interface {
	HandleMessage(ctx context.Context, msg domain.PushMessage) error
}

type coordinator struct {
	cfg       Config
	idem      idempotent.Service
	limiter   ratelimit.Limiter
	breakers  *circuitbreaker.Group
	gateway   gateway.Gateway
	strategy  retry.Strategy
	transport Transport
	audit     audit.Service

	events *prometheus.CounterVec
	logger *elog.Component
	now    func() time.Time
}

func NewCoordinator(
	cfg Config,
	idem idempotent.Service,
	limiter ratelimit.Limiter,
	breakers *circuitbreaker.Group,
	gw gateway.Gateway,
	strategy retry.Strategy,
	transport Transport,
	auditSvc audit.Service,
) Coordinator {
	return &coordinator{
		cfg:       cfg,
		idem:      idem,
		limiter:   limiter,
		breakers:  breakers,
		gateway:   gw,
		strategy:  strategy,
		transport: transport,
		audit:     auditSvc,
		events:    pipelineEventCounter(),
		logger:    elog.DefaultLogger,
		now:       time.Now,
	}
}

func (c *coordinator) HandleMessage(ctx context.Context, msg domain.PushMessage) error {
	if err := msg.Validate(); err != nil {
		c.observe(stageValidate, resultReject, msg.Platform)
		c.logger.Warn("消息校验失败，直接死信",
			elog.String("notificationID", msg.NotificationID),
			elog.FieldErr(err))
		// 非法消息没有可信的幂等键，不写终态
		return c.deadLetter(ctx, msg, err.Error(), nil, false)
	}

	if msg.Expired(c.now()) {
		c.observe(stageTTL, resultDrop, msg.Platform)
		c.logger.Info("消息已过期，丢弃",
			elog.String("notificationID", msg.NotificationID),
			elog.String("idempotencyKey", msg.IdempotencyKey),
			elog.Int64("ttlSeconds", msg.TTLSeconds),
			elog.FieldErr(errs.ErrMessageExpired))
		return nil
	}

	decision, err := c.idem.Admit(ctx, msg.IdempotencyKey)
	if err != nil {
		c.observe(stageIdempotent, resultError, msg.Platform)
		c.logger.Error("幂等检查失败",
			elog.String("idempotencyKey", msg.IdempotencyKey),
			elog.FieldErr(err))
		// 存储故障按可重试失败走退避，键未被占用，无需释放
		return c.scheduleRetry(ctx, msg, 0, fmt.Sprintf("幂等存储故障: %v", err), nil, false)
	}

	switch decision.Status {
	case idempotent.StatusProcessed:
		c.observe(stageIdempotent, resultDuplicate, msg.Platform)
		c.logger.Info("重复消息，直接确认",
			elog.String("notificationID", msg.NotificationID),
			elog.String("idempotencyKey", msg.IdempotencyKey),
			elog.String("cause", errs.ErrDuplicateKey.Error()),
			elog.Any("outcome", decision.Outcome))
		return nil
	case idempotent.StatusPending:
		// 另一个消费者正在处理同一个键，稍后再看结果，不占用尝试次数
		c.observe(stageIdempotent, resultDuplicate, msg.Platform)
		c.logger.Info("幂等键处理中，延迟重投",
			elog.String("notificationID", msg.NotificationID),
			elog.String("idempotencyKey", msg.IdempotencyKey),
			elog.String("cause", errs.ErrKeyInFlight.Error()))
		return c.transport.NackWithDelay(ctx, msg, c.cfg.PendingRequeueDelay)
	case idempotent.StatusProceed:
	}

	// 从这里开始当前消费者持有处理中标记，所有重投路径都要先释放它

	limit, err := c.limiter.CheckAndConsume(ctx, msg.UserID, 1)
	if err != nil {
		c.observe(stageRateLimit, resultError, msg.Platform)
		c.logger.Error("限流检查失败",
			elog.String("userID", msg.UserID),
			elog.FieldErr(err))
		return c.scheduleRetry(ctx, msg, 0, fmt.Sprintf("限流存储故障: %v", err), nil, true)
	}
	if !limit.Admitted {
		c.observe(stageRateLimit, resultReject, msg.Platform)
		c.logger.Info("触发用户限流，延迟重投",
			elog.String("userID", msg.UserID),
			elog.String("notificationID", msg.NotificationID),
			elog.Any("retryAfter", limit.RetryAfter))
		reason := fmt.Sprintf("%v: 用户 %s", errs.ErrRateLimited, msg.UserID)
		if c.cfg.RateLimitConsumesAttempt {
			return c.scheduleRetry(ctx, msg, limit.RetryAfter, reason, nil, true)
		}
		// 限流不消耗尝试次数，等到令牌恢复后原样重投
		return c.requeueUnchanged(ctx, msg, limit.RetryAfter)
	}

	breaker := c.breakers.Get(string(msg.Platform))
	if err := breaker.Acquire(); err != nil {
		c.observe(stageBreaker, resultReject, msg.Platform)
		c.logger.Info("熔断器拒绝放行",
			elog.String("platform", string(msg.Platform)),
			elog.String("notificationID", msg.NotificationID),
			elog.FieldErr(err))
		// 重投延迟至少覆盖剩余冷却时间
		return c.scheduleRetry(ctx, msg, breaker.Snapshot().RetryAfter, err.Error(), nil, true)
	}

	return c.send(ctx, msg, breaker)
}

// send 执行网关调用并处理结果，调用前熔断器已放行
func (c *coordinator) send(ctx context.Context, msg domain.PushMessage, breaker *circuitbreaker.Breaker) error {
	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.gateway.Send(sendCtx, gateway.SendRequest{
		Platform: msg.Platform,
		Tokens:   msg.DeviceTokens,
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     msg.Data,
		TTL:      time.Duration(msg.TTLSeconds) * time.Second,
	})
	latency := time.Since(start)

	if err != nil {
		class := classifyGatewayError(err)
		attempt := c.attemptRecord(msg, class, 0, latency, err.Error())
		c.audit.RecordAttempt(ctx, attempt)
		c.observe(stageGateway, resultError, msg.Platform)

		if class == domain.OutcomePermanent {
			// 网关明确拒绝了请求本身，不算路由故障
			breaker.MarkSuccess()
			c.logger.Warn("网关永久失败，直接死信",
				elog.String("notificationID", msg.NotificationID),
				elog.FieldErr(err))
			return c.deadLetter(ctx, msg, err.Error(), []domain.DeliveryAttempt{attempt}, true)
		}
		breaker.MarkFailure()
		return c.scheduleRetry(ctx, msg, 0, err.Error(), []domain.DeliveryAttempt{attempt}, true)
	}
	breaker.MarkSuccess()

	succeeded, retryable, permanent := resp.Split()
	total := len(msg.DeviceTokens)

	class := domain.OutcomeSuccess
	reason := ""
	if len(retryable) > 0 {
		class = domain.OutcomeRetryable
		reason = fmt.Sprintf("%d/%d 个 token 临时失败", len(retryable), total)
	}
	attempt := c.attemptRecord(msg, class, len(succeeded), latency, reason)
	c.audit.RecordAttempt(ctx, attempt)

	if len(retryable) == 0 {
		if len(succeeded) == 0 && len(permanent) > 0 {
			c.observe(stageGateway, resultReject, msg.Platform)
			reason = fmt.Sprintf("全部 %d 个 token 永久失败", total)
			return c.deadLetter(ctx, msg, reason, []domain.DeliveryAttempt{attempt}, true)
		}
		c.observe(stageGateway, resultPass, msg.Platform)
		return c.finish(ctx, msg, domain.Outcome{
			Status:         domain.TerminalDelivered,
			NotificationID: msg.NotificationID,
			TokenTotal:     total,
			TokenSucceeded: len(succeeded),
			Reason:         permanentReason(permanent),
			FinishedAt:     c.now(),
		})
	}

	// 部分 token 临时失败：成功和永久失败的不再重发，缩窄消息后重投
	narrowed := msg.WithTokens(slice.Map(retryable, func(_ int, src domain.TokenResult) string {
		return src.Token
	}))
	return c.scheduleRetry(ctx, narrowed, 0, reason, []domain.DeliveryAttempt{attempt}, true)
}

// scheduleRetry 安排一次延迟重投。预算耗尽时转死信。
// release 为 false 表示当前消费者没有持有处理中标记
func (c *coordinator) scheduleRetry(ctx context.Context, msg domain.PushMessage, minDelay time.Duration,
	reason string, history []domain.DeliveryAttempt, release bool,
) error {
	delay, ok := c.strategy.NextDelay(msg.Attempts)
	if !ok {
		c.observe(stageRetry, resultReject, msg.Platform)
		reason = fmt.Sprintf("%v: %s", errs.ErrAttemptExhausted, reason)
		return c.deadLetter(ctx, msg, reason, history, release)
	}
	if minDelay > delay {
		delay = minDelay
	}

	if release {
		if err := c.idem.Release(ctx, msg.IdempotencyKey); err != nil {
			// 释放失败只影响重投后的幂等检查，标记会在 TTL 后自行过期
			c.logger.Warn("释放处理中标记失败",
				elog.String("idempotencyKey", msg.IdempotencyKey),
				elog.FieldErr(err))
		}
	}

	msg.Attempts++
	c.observe(stageRetry, resultPass, msg.Platform)
	c.logger.Info("安排延迟重投",
		elog.String("notificationID", msg.NotificationID),
		elog.Any("attempts", msg.Attempts),
		elog.Any("delay", delay),
		elog.String("reason", reason))
	return c.transport.NackWithDelay(ctx, msg, delay)
}

// requeueUnchanged 原样重投，不递增尝试次数
func (c *coordinator) requeueUnchanged(ctx context.Context, msg domain.PushMessage, delay time.Duration) error {
	if err := c.idem.Release(ctx, msg.IdempotencyKey); err != nil {
		c.logger.Warn("释放处理中标记失败",
			elog.String("idempotencyKey", msg.IdempotencyKey),
			elog.FieldErr(err))
	}
	if delay <= 0 {
		delay = c.cfg.PendingRequeueDelay
	}
	return c.transport.NackWithDelay(ctx, msg, delay)
}

// deadLetter 把消息送入死信。死信主题是权威落点，投递失败会让消息整体重投；
// 审计库写入失败只记日志
func (c *coordinator) deadLetter(ctx context.Context, msg domain.PushMessage, reason string,
	history []domain.DeliveryAttempt, recordOutcome bool,
) error {
	entry := domain.DeadLetterEntry{
		Message:        msg,
		Reason:         reason,
		FailureHistory: history,
		CreatedAt:      c.now(),
	}
	if err := c.transport.DeadLetter(ctx, entry); err != nil {
		c.observe(stageDeadLetter, resultError, msg.Platform)
		c.logger.Error("死信投递失败",
			elog.String("notificationID", msg.NotificationID),
			elog.FieldErr(err))
		return fmt.Errorf("%w: %v", errs.ErrDeadLetterFailed, err)
	}
	if err := c.audit.RecordDeadLetter(ctx, entry); err != nil {
		c.logger.Error("死信审计入库失败",
			elog.String("notificationID", msg.NotificationID),
			elog.FieldErr(err))
	}
	c.observe(stageDeadLetter, resultPass, msg.Platform)
	c.logger.Warn("消息已死信",
		elog.String("notificationID", msg.NotificationID),
		elog.String("idempotencyKey", msg.IdempotencyKey),
		elog.Any("attempts", msg.Attempts),
		elog.String("reason", reason))

	if !recordOutcome {
		return nil
	}
	return c.finish(ctx, msg, domain.Outcome{
		Status:         domain.TerminalDeadLettered,
		NotificationID: msg.NotificationID,
		TokenTotal:     len(msg.DeviceTokens),
		Reason:         reason,
		FinishedAt:     c.now(),
	})
}

// finish 写入终态。写入失败只记日志：终态的副作用都已落地，
// 处理中标记过期后最坏情况是放过一次重复投递
func (c *coordinator) finish(ctx context.Context, msg domain.PushMessage, outcome domain.Outcome) error {
	if err := c.idem.Record(ctx, msg.IdempotencyKey, outcome); err != nil {
		c.logger.Error("写入终态失败",
			elog.String("idempotencyKey", msg.IdempotencyKey),
			elog.FieldErr(err))
		return nil
	}
	c.logger.Info("消息处理完成",
		elog.String("notificationID", msg.NotificationID),
		elog.String("status", string(outcome.Status)),
		elog.Int("tokenSucceeded", outcome.TokenSucceeded),
		elog.Int("tokenTotal", outcome.TokenTotal))
	return nil
}

func (c *coordinator) attemptRecord(msg domain.PushMessage, class domain.OutcomeClass,
	succeeded int, latency time.Duration, reason string,
) domain.DeliveryAttempt {
	return domain.DeliveryAttempt{
		NotificationID: msg.NotificationID,
		IdempotencyKey: msg.IdempotencyKey,
		UserID:         msg.UserID,
		Platform:       msg.Platform,
		Attempt:        msg.Attempts,
		Class:          class,
		TokenTotal:     len(msg.DeviceTokens),
		TokenSucceeded: succeeded,
		Latency:        latency,
		Reason:         reason,
		OccurredAt:     c.now(),
	}
}

func (c *coordinator) observe(stage, result string, platform domain.Platform) {
	c.events.WithLabelValues(stage, result, string(platform)).Inc()
}

// classifyGatewayError 对整次调用失败分类。只有网关明确给出的永久失败才是永久，
// 超时和未知错误一律按可重试处理
func classifyGatewayError(err error) domain.OutcomeClass {
	if errors.Is(err, errs.ErrGatewayPermanent) {
		return domain.OutcomePermanent
	}
	return domain.OutcomeRetryable
}

func permanentReason(permanent []domain.TokenResult) string {
	if len(permanent) == 0 {
		return ""
	}
	return fmt.Sprintf("%d 个 token 永久失败", len(permanent))
}
