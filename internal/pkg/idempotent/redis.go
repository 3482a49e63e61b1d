package idempotent

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	"gitee.com/flycash/push-platform/internal/errs"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var (
	//go:embed lua/admit.lua
	admitScript string

	//go:embed lua/release.lua
	releaseScript string

	_ Service = (*RedisIdempotencyService)(nil)
)

// pendingMark 处理中占位值，终态写入前键里存的就是它
const pendingMark = "__pending__"

type RedisIdempotencyService struct {
	client    redis.Cmdable
	keyPrefix string
	// recordTTL 终态记录的保留时间，过期后同一个键被视为新消息
	recordTTL time.Duration
	// pendingTTL 处理中标记的保留时间，防止崩溃的 worker 永久占用键
	pendingTTL time.Duration
	// failOpen 存储不可用时放行（true）还是拒绝（false），默认拒绝
	failOpen bool
}

func NewRedisIdempotencyService(
	client redis.Cmdable,
	recordTTL time.Duration,
	pendingTTL time.Duration,
	failOpen bool,
) *RedisIdempotencyService {
	return &RedisIdempotencyService{
		client:     client,
		keyPrefix:  "idempotent:",
		recordTTL:  recordTTL,
		pendingTTL: pendingTTL,
		failOpen:   failOpen,
	}
}

func (s *RedisIdempotencyService) Admit(ctx context.Context, key string) (Decision, error) {
	if key == "" {
		return Decision{}, fmt.Errorf("%w: 幂等键为空", errs.ErrInvalidParameter)
	}

	res, err := s.client.Eval(ctx, admitScript,
		[]string{s.key(key)},
		pendingMark,
		s.pendingTTL.Milliseconds(),
	).Text()
	if err != nil {
		return s.storeFailure(err)
	}

	switch res {
	case "":
		return Decision{Status: StatusProceed}, nil
	case pendingMark:
		return Decision{Status: StatusPending}, nil
	default:
		var outcome domain.Outcome
		if err := json.Unmarshal([]byte(res), &outcome); err != nil {
			return Decision{}, errors.Wrap(err, "解析幂等终态失败")
		}
		return Decision{Status: StatusProcessed, Outcome: &outcome}, nil
	}
}

func (s *RedisIdempotencyService) Record(ctx context.Context, key string, outcome domain.Outcome) error {
	val, err := json.Marshal(outcome)
	if err != nil {
		return errors.Wrap(err, "序列化幂等终态失败")
	}
	err = s.client.Set(ctx, s.key(key), val, s.recordTTL).Err()
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisIdempotencyService) Release(ctx context.Context, key string) error {
	err := s.client.Eval(ctx, releaseScript, []string{s.key(key)}, pendingMark).Err()
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisIdempotencyService) storeFailure(err error) (Decision, error) {
	if s.failOpen {
		return Decision{Status: StatusProceed}, nil
	}
	return Decision{}, fmt.Errorf("%w: %w", errs.ErrStoreUnavailable, err)
}

func (s *RedisIdempotencyService) key(key string) string {
	return s.keyPrefix + key
}
