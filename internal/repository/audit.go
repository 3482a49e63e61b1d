package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	"gitee.com/flycash/push-platform/internal/errs"
	id "gitee.com/flycash/push-platform/internal/pkg/id_generator"
	"gitee.com/flycash/push-platform/internal/repository/dao"
	"github.com/ecodeclub/ekit/slice"
)

// AuditRepository 审计仓储接口
type AuditRepository interface {
	// AppendAttempt 追加一条投递尝试流水
	AppendAttempt(ctx context.Context, attempt domain.DeliveryAttempt) error
	// AppendDeadLetter 写入死信快照
	AppendDeadLetter(ctx context.Context, entry domain.DeadLetterEntry) error
	// PurgeAttemptsBefore 清理过期流水，返回删除行数
	PurgeAttemptsBefore(ctx context.Context, before time.Time, limit int) (int64, error)
	FindDeadLetters(ctx context.Context, offset, limit int) ([]domain.DeadLetterEntry, error)
}

type auditRepository struct {
	d     dao.AuditDAO
	idGen *id.Generator
}

func NewAuditRepository(d dao.AuditDAO, idGen *id.Generator) AuditRepository {
	return &auditRepository{d: d, idGen: idGen}
}

func (r *auditRepository) AppendAttempt(ctx context.Context, attempt domain.DeliveryAttempt) error {
	entity := dao.DeliveryAttempt{
		ID:             r.idGen.GenerateID(attempt.UserID, attempt.IdempotencyKey),
		NotificationID: attempt.NotificationID,
		IdempotencyKey: attempt.IdempotencyKey,
		UserID:         attempt.UserID,
		Platform:       string(attempt.Platform),
		Attempt:        attempt.Attempt,
		Class:          string(attempt.Class),
		TokenTotal:     attempt.TokenTotal,
		TokenSucceeded: attempt.TokenSucceeded,
		LatencyMillis:  attempt.Latency.Milliseconds(),
		Reason:         attempt.Reason,
	}
	if err := r.d.CreateAttempt(ctx, entity); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrAuditAppendFailed, err)
	}
	return nil
}

func (r *auditRepository) AppendDeadLetter(ctx context.Context, entry domain.DeadLetterEntry) error {
	message, err := json.Marshal(entry.Message)
	if err != nil {
		return fmt.Errorf("%w: 序列化消息快照失败: %w", errs.ErrDeadLetterFailed, err)
	}
	history, err := json.Marshal(entry.FailureHistory)
	if err != nil {
		return fmt.Errorf("%w: 序列化失败历史失败: %w", errs.ErrDeadLetterFailed, err)
	}

	entity := dao.DeadLetter{
		ID:             r.idGen.GenerateID(entry.Message.UserID, entry.Message.IdempotencyKey),
		NotificationID: entry.Message.NotificationID,
		IdempotencyKey: entry.Message.IdempotencyKey,
		Message:        string(message),
		Reason:         entry.Reason,
		FailureHistory: string(history),
	}
	if err := r.d.CreateDeadLetter(ctx, entity); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrDeadLetterFailed, err)
	}
	return nil
}

func (r *auditRepository) PurgeAttemptsBefore(ctx context.Context, before time.Time, limit int) (int64, error) {
	return r.d.PurgeAttemptsBefore(ctx, before, limit)
}

func (r *auditRepository) FindDeadLetters(ctx context.Context, offset, limit int) ([]domain.DeadLetterEntry, error) {
	entities, err := r.d.FindDeadLetters(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return slice.Map(entities, func(_ int, src dao.DeadLetter) domain.DeadLetterEntry {
		return r.toDomain(src)
	}), nil
}

func (r *auditRepository) toDomain(entity dao.DeadLetter) domain.DeadLetterEntry {
	entry := domain.DeadLetterEntry{
		ID:        entity.ID,
		Reason:    entity.Reason,
		CreatedAt: time.UnixMilli(entity.Ctime),
	}
	// 快照损坏时保留死信本身，消息体留空
	_ = json.Unmarshal([]byte(entity.Message), &entry.Message)
	_ = json.Unmarshal([]byte(entity.FailureHistory), &entry.FailureHistory)
	return entry
}
