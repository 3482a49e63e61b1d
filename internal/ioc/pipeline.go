package ioc

import (
	"time"

	"gitee.com/flycash/push-platform/internal/pkg/circuitbreaker"
	"gitee.com/flycash/push-platform/internal/pkg/idempotent"
	"gitee.com/flycash/push-platform/internal/pkg/ratelimit"
	"gitee.com/flycash/push-platform/internal/pkg/retry"
	"gitee.com/flycash/push-platform/internal/service/pipeline"
	"github.com/gotomicro/ego/core/econf"
	"github.com/redis/go-redis/v9"
)

func InitIdempotencyService(rdb *redis.Client) idempotent.Service {
	type Config struct {
		RecordTTLHours    int  `yaml:"recordTTLHours"`
		PendingTTLMinutes int  `yaml:"pendingTTLMinutes"`
		FailOpen          bool `yaml:"failOpen"`
	}
	cfg := Config{RecordTTLHours: 24, PendingTTLMinutes: 10}
	err := econf.UnmarshalKey("idempotent", &cfg)
	if err != nil {
		panic(err)
	}
	return idempotent.NewRedisIdempotencyService(rdb,
		time.Duration(cfg.RecordTTLHours)*time.Hour,
		time.Duration(cfg.PendingTTLMinutes)*time.Minute,
		cfg.FailOpen)
}

func InitRateLimiter(rdb *redis.Client) ratelimit.Limiter {
	type Config struct {
		Capacity      int64 `yaml:"capacity"`
		WindowMinutes int64 `yaml:"windowMinutes"`
		Burst         int64 `yaml:"burst"`
	}
	var cfg Config
	err := econf.UnmarshalKey("ratelimit", &cfg)
	if err != nil {
		panic(err)
	}
	limiterCfg := ratelimit.DefaultConfig()
	if cfg.Capacity > 0 {
		limiterCfg.Capacity = cfg.Capacity
	}
	if cfg.WindowMinutes > 0 {
		limiterCfg.Window = time.Duration(cfg.WindowMinutes) * time.Minute
	}
	limiterCfg.Burst = cfg.Burst
	return ratelimit.NewRedisTokenBucketLimiter(rdb, limiterCfg)
}

func InitBreakerGroup() *circuitbreaker.Group {
	type Config struct {
		FailureThreshold int32 `yaml:"failureThreshold"`
		CooldownSeconds  int64 `yaml:"cooldownSeconds"`
		HalfOpenTrials   int32 `yaml:"halfOpenTrials"`
	}
	var cfg Config
	err := econf.UnmarshalKey("breaker", &cfg)
	if err != nil {
		panic(err)
	}
	breakerCfg := circuitbreaker.DefaultConfig()
	if cfg.FailureThreshold > 0 {
		breakerCfg.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.CooldownSeconds > 0 {
		breakerCfg.Cooldown = time.Duration(cfg.CooldownSeconds) * time.Second
	}
	if cfg.HalfOpenTrials > 0 {
		breakerCfg.HalfOpenTrials = cfg.HalfOpenTrials
	}
	return circuitbreaker.NewGroup(breakerCfg)
}

func InitRetryStrategy() retry.Strategy {
	type Config struct {
		InitialIntervalMs int64 `yaml:"initialIntervalMs"`
		MaxIntervalMs     int64 `yaml:"maxIntervalMs"`
		MaxRetries        int32 `yaml:"maxRetries"`
	}
	cfg := Config{InitialIntervalMs: 1000, MaxIntervalMs: 60000, MaxRetries: 3}
	err := econf.UnmarshalKey("retry", &cfg)
	if err != nil {
		panic(err)
	}
	return retry.NewExponentialBackoffStrategy(
		time.Duration(cfg.InitialIntervalMs)*time.Millisecond,
		time.Duration(cfg.MaxIntervalMs)*time.Millisecond,
		cfg.MaxRetries)
}

func InitPipelineConfig() pipeline.Config {
	type Config struct {
		SendTimeoutMs            int64 `yaml:"sendTimeoutMs"`
		RateLimitConsumesAttempt bool  `yaml:"rateLimitConsumesAttempt"`
		PendingRequeueDelayMs    int64 `yaml:"pendingRequeueDelayMs"`
	}
	var cfg Config
	err := econf.UnmarshalKey("pipeline", &cfg)
	if err != nil {
		panic(err)
	}
	pipelineCfg := pipeline.DefaultConfig()
	if cfg.SendTimeoutMs > 0 {
		pipelineCfg.SendTimeout = time.Duration(cfg.SendTimeoutMs) * time.Millisecond
	}
	if cfg.PendingRequeueDelayMs > 0 {
		pipelineCfg.PendingRequeueDelay = time.Duration(cfg.PendingRequeueDelayMs) * time.Millisecond
	}
	pipelineCfg.RateLimitConsumesAttempt = cfg.RateLimitConsumesAttempt
	return pipelineCfg
}
