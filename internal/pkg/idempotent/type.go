package idempotent

import (
	"context"

	"gitee.com/flycash/push-platform/internal/domain"
)

type Status string

const (
	// StatusProceed 首次见到该键，已原子地标记为处理中，调用方可以继续执行副作用
	StatusProceed Status = "PROCEED"
	// StatusPending 该键正在被其他调用方处理，尚无终态
	StatusPending Status = "PENDING"
	// StatusProcessed 该键已处理完毕，Outcome 携带当时的终态
	StatusProcessed Status = "PROCESSED"
)

type Decision struct {
	Status  Status
	Outcome *domain.Outcome
}

//go:generate mockgen -source=./type.go -package=idempotentmocks -destination=./mocks/idempotent.mock.go -typed Service
type Service interface {
	// Admit 检查并占用幂等键。并发提交同一个键时至多一个调用方拿到 StatusProceed
	Admit(ctx context.Context, key string) (Decision, error)
	// Record 写入终态并开始记录过期计时，之后的 Admit 返回 StatusProcessed
	Record(ctx context.Context, key string, outcome domain.Outcome) error
	// Release 撤销处理中标记，消息将被重投时必须调用，否则该键会被挡到标记过期
	Release(ctx context.Context, key string) error
}
