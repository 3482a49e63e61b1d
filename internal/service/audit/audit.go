package audit

import (
	"context"

	"gitee.com/flycash/push-platform/internal/domain"
	"gitee.com/flycash/push-platform/internal/repository"
	"github.com/gotomicro/ego/core/elog"
)

// Service 审计服务。对投递管线来说写入是 fire-and-forget 的：
// 流水写失败只记日志，不影响投递决策；死信写失败必须上抛
//
//go:generate mockgen -source=./audit.go -destination=./mocks/audit.mock.go -package=auditmocks -typed Service
type Service interface {
	RecordAttempt(ctx context.Context, attempt domain.DeliveryAttempt)
	RecordDeadLetter(ctx context.Context, entry domain.DeadLetterEntry) error
}

type service struct {
	repo   repository.AuditRepository
	logger *elog.Component
}

func NewService(repo repository.AuditRepository) Service {
	return &service{
		repo:   repo,
		logger: elog.DefaultLogger,
	}
}

func (s *service) RecordAttempt(ctx context.Context, attempt domain.DeliveryAttempt) {
	if err := s.repo.AppendAttempt(ctx, attempt); err != nil {
		s.logger.Warn("写入投递流水失败",
			elog.FieldErr(err),
			elog.String("notificationID", attempt.NotificationID),
			elog.Any("attempt", attempt.Attempt))
	}
}

func (s *service) RecordDeadLetter(ctx context.Context, entry domain.DeadLetterEntry) error {
	return s.repo.AppendDeadLetter(ctx, entry)
}
