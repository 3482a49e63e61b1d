package ioc

import (
	"context"

	"gitee.com/flycash/push-platform/internal/service/audit"
)

// Task 后台任务，Start 内部自行循环直到 ctx 取消
type Task interface {
	Start(ctx context.Context)
}

func InitTasks(t1 *audit.RetentionTask) []Task {
	return []Task{
		t1,
	}
}
