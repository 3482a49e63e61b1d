package ratelimit

import (
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	"gitee.com/flycash/push-platform/internal/errs"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/context"
)

var (
	//go:embed lua/token_bucket.lua
	tokenBucketScript string

	//go:embed lua/bucket_snapshot.lua
	bucketSnapshotScript string

	_ Limiter = (*RedisTokenBucketLimiter)(nil)
)

// idleTTLFactor 闲置桶的过期时间是补满窗口的倍数，静默用户的桶随之消失
const idleTTLFactor = 2

type RedisTokenBucketLimiter struct {
	cmd       redis.Cmdable
	cfg       Config
	keyPrefix string
}

// NewRedisTokenBucketLimiter 创建一个基于Redis的令牌桶限流器
func NewRedisTokenBucketLimiter(cmd redis.Cmdable, cfg Config) *RedisTokenBucketLimiter {
	return &RedisTokenBucketLimiter{
		cmd:       cmd,
		cfg:       cfg,
		keyPrefix: "ratelimit:bucket:",
	}
}

func (r *RedisTokenBucketLimiter) CheckAndConsume(ctx context.Context, key string, cost int64) (Decision, error) {
	if cost <= 0 {
		return Decision{}, fmt.Errorf("%w: cost = %d", errs.ErrInvalidParameter, cost)
	}

	res, err := r.cmd.Eval(ctx, tokenBucketScript,
		[]string{r.bucketKey(key)},
		r.cfg.effectiveCapacity(),
		r.cfg.refillPerMilli(),
		time.Now().UnixMilli(),
		cost,
		r.idleTTL().Milliseconds(),
	).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", errs.ErrStoreUnavailable, err)
	}

	const expectedResults = 3
	if len(res) != expectedResults {
		return Decision{}, fmt.Errorf("%w: 限流脚本返回了 %d 个值", errs.ErrStoreUnavailable, len(res))
	}

	admitted, _ := res[0].(int64)
	remaining, err := strconv.ParseFloat(res[1].(string), 64)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: 解析剩余令牌失败: %w", errs.ErrStoreUnavailable, err)
	}
	retryAfterMillis, _ := res[2].(int64)

	return Decision{
		Admitted:   admitted == 1,
		Remaining:  int64(remaining),
		RetryAfter: time.Duration(retryAfterMillis) * time.Millisecond,
	}, nil
}

func (r *RedisTokenBucketLimiter) Snapshot(ctx context.Context, key string) (domain.QuotaSnapshot, error) {
	res, err := r.cmd.Eval(ctx, bucketSnapshotScript,
		[]string{r.bucketKey(key)},
		r.cfg.effectiveCapacity(),
		r.cfg.refillPerMilli(),
		time.Now().UnixMilli(),
	).Slice()
	if err != nil {
		return domain.QuotaSnapshot{}, fmt.Errorf("%w: %w", errs.ErrStoreUnavailable, err)
	}

	const expectedResults = 3
	if len(res) != expectedResults {
		return domain.QuotaSnapshot{}, fmt.Errorf("%w: 快照脚本返回了 %d 个值", errs.ErrStoreUnavailable, len(res))
	}

	remaining, err := strconv.ParseFloat(res[0].(string), 64)
	if err != nil {
		return domain.QuotaSnapshot{}, fmt.Errorf("%w: 解析剩余令牌失败: %w", errs.ErrStoreUnavailable, err)
	}
	retryAfterMillis, _ := res[1].(int64)
	lastRefillMillis, _ := res[2].(int64)

	return domain.QuotaSnapshot{
		UserID:     key,
		Remaining:  int64(remaining),
		Capacity:   r.cfg.effectiveCapacity(),
		LastRefill: time.UnixMilli(lastRefillMillis),
		RetryAfter: time.Duration(retryAfterMillis) * time.Millisecond,
	}, nil
}

// Reset 直接删除桶，下一次请求惰性重建为满桶
func (r *RedisTokenBucketLimiter) Reset(ctx context.Context, key string) error {
	err := r.cmd.Del(ctx, r.bucketKey(key)).Err()
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisTokenBucketLimiter) idleTTL() time.Duration {
	return r.cfg.Window * idleTTLFactor
}

func (r *RedisTokenBucketLimiter) bucketKey(key string) string {
	return r.keyPrefix + key
}
