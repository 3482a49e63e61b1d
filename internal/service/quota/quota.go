package quota

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	"gitee.com/flycash/push-platform/internal/errs"
	"gitee.com/flycash/push-platform/internal/pkg/ratelimit"
)

// CheckResult 查询配额水位的结果
type CheckResult struct {
	Remaining  int64         `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after"`
}

// Service 配额读服务，给外层查询接口用，不消费令牌
//
//go:generate mockgen -source=./quota.go -destination=./mocks/quota.mock.go -package=quotamocks -typed Service
type Service interface {
	GetQuota(ctx context.Context, userID string) (domain.QuotaSnapshot, error)
	CheckQuota(ctx context.Context, userID string) (CheckResult, error)
	// ResetQuota 管理操作，把用户的令牌桶恢复为满
	ResetQuota(ctx context.Context, userID string) error
}

type service struct {
	limiter ratelimit.Limiter
}

func NewService(limiter ratelimit.Limiter) Service {
	return &service{limiter: limiter}
}

func (s *service) GetQuota(ctx context.Context, userID string) (domain.QuotaSnapshot, error) {
	if userID == "" {
		return domain.QuotaSnapshot{}, fmt.Errorf("%w: userID 为空", errs.ErrInvalidParameter)
	}
	return s.limiter.Snapshot(ctx, userID)
}

func (s *service) CheckQuota(ctx context.Context, userID string) (CheckResult, error) {
	snapshot, err := s.GetQuota(ctx, userID)
	if err != nil {
		return CheckResult{}, err
	}
	return CheckResult{
		Remaining:  snapshot.Remaining,
		RetryAfter: snapshot.RetryAfter,
	}, nil
}

func (s *service) ResetQuota(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: userID 为空", errs.ErrInvalidParameter)
	}
	return s.limiter.Reset(ctx, userID)
}
