package errs

import (
	"errors"
)

// 定义统一的错误类型
var (
	ErrInvalidParameter = errors.New("参数错误")
	ErrInvalidMessage   = errors.New("消息校验失败")

	ErrDuplicateKey     = errors.New("幂等键已处理过")
	ErrKeyInFlight      = errors.New("幂等键正在处理中")
	ErrRateLimited      = errors.New("触发用户限流")
	ErrCircuitOpen      = errors.New("熔断器已打开")
	ErrTrialRejected    = errors.New("熔断器半开试探名额已满")
	ErrMessageExpired   = errors.New("消息已过期")
	ErrAttemptExhausted = errors.New("重试次数已耗尽")

	ErrGatewayRetryable = errors.New("推送网关临时故障")
	ErrGatewayPermanent = errors.New("推送网关永久失败")
	ErrStoreUnavailable = errors.New("存储不可用")

	ErrUnknownRoute      = errors.New("未知的推送路由")
	ErrDeadLetterFailed  = errors.New("写入死信失败")
	ErrAuditAppendFailed = errors.New("写入审计记录失败")
)
