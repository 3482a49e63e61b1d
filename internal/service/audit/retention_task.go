package audit

import (
	"context"
	"time"

	"gitee.com/flycash/push-platform/internal/pkg/loopjob"
	"gitee.com/flycash/push-platform/internal/repository"
	"github.com/meoying/dlock-go"
)

// RetentionTask 定期清理超过保留期的投递流水，死信永久保留
type RetentionTask struct {
	dclient   dlock.Client
	repo      repository.AuditRepository
	retention time.Duration
}

func NewRetentionTask(dclient dlock.Client, repo repository.AuditRepository, retention time.Duration) *RetentionTask {
	return &RetentionTask{
		dclient:   dclient,
		repo:      repo,
		retention: retention,
	}
}

func (t *RetentionTask) Start(ctx context.Context) {
	const key = "audit_attempt_retention"
	lj := loopjob.NewInfiniteLoop(t.dclient, t.purgeOnce, key)
	lj.Run(ctx)
}

func (t *RetentionTask) purgeOnce(ctx context.Context) error {
	const batchSize = 100
	const defaultSleepTime = time.Minute * 10
	cnt, err := t.repo.PurgeAttemptsBefore(ctx, time.Now().Add(-t.retention), batchSize)
	if err != nil {
		return err
	}
	// 过期数据不多，可以休息一会
	if cnt < batchSize {
		time.Sleep(defaultSleepTime)
	}
	return nil
}
